package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice/internal/model"
)

type DeliveryNoteRepository interface {
	Create(ctx context.Context, note *model.DeliveryNote) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.DeliveryNote, error)
	List(ctx context.Context, filter DocumentFilter, page, limit int) ([]model.DeliveryNote, int64, error)
	UpdateHeader(ctx context.Context, note *model.DeliveryNote) error
	ReplaceItems(ctx context.Context, noteID uuid.UUID, items []model.DeliveryNoteItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	NextNumber(ctx context.Context, prefix string) (string, error)
}

type deliveryNoteRepository struct {
	db *gorm.DB
}

func NewDeliveryNoteRepository(db *gorm.DB) DeliveryNoteRepository {
	return &deliveryNoteRepository{db: db}
}

var deliveryNoteOrdering = []string{"date", "number", "created_at"}

func (r *deliveryNoteRepository) Create(ctx context.Context, note *model.DeliveryNote) error {
	for i := range note.Items {
		note.Items[i].Position = i
	}
	return GetDB(ctx, r.db).Omit("Client", "CreatedBy").Create(note).Error
}

func (r *deliveryNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.DeliveryNote, error) {
	var note model.DeliveryNote
	err := GetDB(ctx, r.db).
		Preload("Client").Preload("CreatedBy").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&note, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *deliveryNoteRepository) List(ctx context.Context, filter DocumentFilter, page, limit int) ([]model.DeliveryNote, int64, error) {
	var notes []model.DeliveryNote
	var total int64

	// Delivery notes have no status.
	filter.Status = ""
	query := applyDocumentFilter(GetDB(ctx, r.db).Model(&model.DeliveryNote{}), "delivery_notes", filter,
		"delivery_notes.number", "clients.name", "delivery_notes.delivered_by")

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.
		Preload("Client").Preload("CreatedBy").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order(orderClause("delivery_notes", filter.Ordering, deliveryNoteOrdering...)).
		Offset(offset).Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, 0, err
	}

	return notes, total, nil
}

func (r *deliveryNoteRepository) UpdateHeader(ctx context.Context, note *model.DeliveryNote) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(note).Error
}

func (r *deliveryNoteRepository) ReplaceItems(ctx context.Context, noteID uuid.UUID, items []model.DeliveryNoteItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("delivery_note_id = ?", noteID).Delete(&model.DeliveryNoteItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].DeliveryNoteID = noteID
		items[i].Position = i
	}
	return db.Create(&items).Error
}

func (r *deliveryNoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("delivery_note_id = ?", id).Delete(&model.DeliveryNoteItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.DeliveryNote{}).Error
}

func (r *deliveryNoteRepository) NextNumber(ctx context.Context, prefix string) (string, error) {
	return nextNumber(ctx, r.db, &model.DeliveryNote{}, prefix)
}
