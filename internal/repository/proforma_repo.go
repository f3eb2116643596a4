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

// ProformaStats aggregates proformas dated inside a period.
type ProformaStats struct {
	Count     int64
	Amount    decimal.Decimal
	Accepted  int64
	Pending   int64
	Converted int64
}

type ProformaRepository interface {
	Create(ctx context.Context, proforma *model.Proforma) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Proforma, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Proforma, error)
	List(ctx context.Context, filter DocumentFilter, page, limit int) ([]model.Proforma, int64, error)
	UpdateHeader(ctx context.Context, proforma *model.Proforma) error
	ReplaceItems(ctx context.Context, proformaID uuid.UUID, items []model.ProformaItem) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to billing.ProformaStatus) (bool, error)
	MarkConverted(ctx context.Context, id uuid.UUID, from billing.ProformaStatus, invoiceID uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	NextNumber(ctx context.Context, prefix string) (string, error)
	Stats(ctx context.Context, from, to time.Time) (*ProformaStats, error)
}

type proformaRepository struct {
	db *gorm.DB
}

func NewProformaRepository(db *gorm.DB) ProformaRepository {
	return &proformaRepository{db: db}
}

var proformaOrdering = []string{"date", "number", "total_ttc", "created_at"}

func (r *proformaRepository) Create(ctx context.Context, proforma *model.Proforma) error {
	for i := range proforma.Items {
		proforma.Items[i].Position = i
	}
	return GetDB(ctx, r.db).Omit("Client", "CreatedBy").Create(proforma).Error
}

func (r *proformaRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Proforma, error) {
	var proforma model.Proforma
	err := GetDB(ctx, r.db).
		Preload("Client").Preload("CreatedBy").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&proforma, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &proforma, nil
}

// FindByIDForUpdate locks the proforma row until the surrounding transaction ends.
func (r *proformaRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Proforma, error) {
	var proforma model.Proforma
	err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&proforma).Error
	if err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("proforma_id = ?", id).Order("position ASC").Find(&proforma.Items).Error; err != nil {
		return nil, err
	}
	return &proforma, nil
}

func (r *proformaRepository) List(ctx context.Context, filter DocumentFilter, page, limit int) ([]model.Proforma, int64, error) {
	var proformas []model.Proforma
	var total int64

	query := applyDocumentFilter(GetDB(ctx, r.db).Model(&model.Proforma{}), "proformas", filter,
		"proformas.number", "clients.name")

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.
		Preload("Client").Preload("CreatedBy").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order(orderClause("proformas", filter.Ordering, proformaOrdering...)).
		Offset(offset).Limit(limit).
		Find(&proformas).Error
	if err != nil {
		return nil, 0, err
	}

	return proformas, total, nil
}

func (r *proformaRepository) UpdateHeader(ctx context.Context, proforma *model.Proforma) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(proforma).Error
}

func (r *proformaRepository) ReplaceItems(ctx context.Context, proformaID uuid.UUID, items []model.ProformaItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("proforma_id = ?", proformaID).Delete(&model.ProformaItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ProformaID = proformaID
		items[i].Position = i
	}
	return db.Create(&items).Error
}

func (r *proformaRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to billing.ProformaStatus) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Proforma{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkConverted flips the proforma to converted and links the invoice, provided
// it is still in status from.
func (r *proformaRepository) MarkConverted(ctx context.Context, id uuid.UUID, from billing.ProformaStatus, invoiceID uuid.UUID) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Proforma{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":               billing.ProformaConverted,
			"converted_invoice_id": invoiceID,
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *proformaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("proforma_id = ?", id).Delete(&model.ProformaItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Proforma{}).Error
}

func (r *proformaRepository) NextNumber(ctx context.Context, prefix string) (string, error) {
	return nextNumber(ctx, r.db, &model.Proforma{}, prefix)
}

func (r *proformaRepository) Stats(ctx context.Context, from, to time.Time) (*ProformaStats, error) {
	var row struct {
		Count     int64
		Amount    decimal.Decimal
		Accepted  int64
		Pending   int64
		Converted int64
	}
	err := GetDB(ctx, r.db).Model(&model.Proforma{}).
		Select(`COUNT(*) AS count,
			COALESCE(SUM(total_ttc), 0) AS amount,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS accepted,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS converted`,
			billing.ProformaAccepted,
			[]billing.ProformaStatus{billing.ProformaDraft, billing.ProformaSent},
			billing.ProformaConverted).
		Where("date >= ? AND date < ?", from, to).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	stats := ProformaStats(row)
	return &stats, nil
}
