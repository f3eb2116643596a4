package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice/internal/billing"
	"backoffice/internal/model"
)

// InvoiceStats aggregates invoices dated inside a period.
type InvoiceStats struct {
	Count        int64
	Amount       decimal.Decimal
	PaidCount    int64
	PendingCount int64
	PaidAmount   decimal.Decimal
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter DocumentFilter, page, limit int) ([]model.Invoice, int64, error)
	ListAll(ctx context.Context, filter DocumentFilter) ([]model.Invoice, error)
	UpdateHeader(ctx context.Context, invoice *model.Invoice) error
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceItem) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to billing.InvoiceStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	NextNumber(ctx context.Context, prefix string) (string, error)
	Stats(ctx context.Context, from, to time.Time) (*InvoiceStats, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

var invoiceOrdering = []string{"date", "number", "total_ttc", "created_at"}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	for i := range invoice.Items {
		invoice.Items[i].Position = i
	}
	return GetDB(ctx, r.db).Omit("Client", "CreatedBy").Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Preload("Client").Preload("CreatedBy").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDForUpdate locks the invoice row until the surrounding transaction ends.
func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", id).Order("position ASC").Find(&invoice.Items).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter DocumentFilter, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	query := applyDocumentFilter(GetDB(ctx, r.db).Model(&model.Invoice{}), "invoices", filter,
		"invoices.number", "clients.name")

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.
		Preload("Client").Preload("CreatedBy").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order(orderClause("invoices", filter.Ordering, invoiceOrdering...)).
		Offset(offset).Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) ListAll(ctx context.Context, filter DocumentFilter) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := applyDocumentFilter(GetDB(ctx, r.db).Model(&model.Invoice{}), "invoices", filter,
		"invoices.number", "clients.name").
		Preload("Client").Preload("CreatedBy").
		Order(orderClause("invoices", filter.Ordering, invoiceOrdering...)).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// UpdateHeader saves the invoice columns without touching its items.
func (r *invoiceRepository) UpdateHeader(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(invoice).Error
}

// ReplaceItems deletes the invoice lines and inserts items in their place.
func (r *invoiceRepository) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []model.InvoiceItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].InvoiceID = invoiceID
		items[i].Position = i
	}
	return db.Create(&items).Error
}

// UpdateStatus moves the invoice from one status to another. It reports false
// when the row was not in the expected status anymore.
func (r *invoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to billing.InvoiceStatus) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", id).Delete(&model.InvoiceItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Invoice{}).Error
}

func (r *invoiceRepository) NextNumber(ctx context.Context, prefix string) (string, error) {
	return nextNumber(ctx, r.db, &model.Invoice{}, prefix)
}

// Stats aggregates invoices with from <= date < to.
func (r *invoiceRepository) Stats(ctx context.Context, from, to time.Time) (*InvoiceStats, error) {
	var row struct {
		Count        int64
		Amount       decimal.Decimal
		PaidCount    int64
		PendingCount int64
		PaidAmount   decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select(`COUNT(*) AS count,
			COALESCE(SUM(total_ttc), 0) AS amount,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS paid_count,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS pending_count,
			COALESCE(SUM(CASE WHEN status = ? THEN total_ttc ELSE 0 END), 0) AS paid_amount`,
			billing.InvoicePaid,
			[]billing.InvoiceStatus{billing.InvoiceDraft, billing.InvoiceFinalized},
			billing.InvoicePaid).
		Where("date >= ? AND date < ?", from, to).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	stats := InvoiceStats(row)
	return &stats, nil
}
