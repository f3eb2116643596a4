package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice/internal/model"
)

type IdempotencyRepository interface {
	// Reserve inserts a pending record. It returns the already stored record
	// and false when the key was taken.
	Reserve(ctx context.Context, rec *model.IdempotencyKey) (*model.IdempotencyKey, bool, error)
	Complete(ctx context.Context, key, userID string, status int, body []byte) error
	Release(ctx context.Context, key, userID string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type idempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

func (r *idempotencyRepository) Reserve(ctx context.Context, rec *model.IdempotencyKey) (*model.IdempotencyKey, bool, error) {
	db := GetDB(ctx, r.db)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return rec, true, nil
	}

	var existing model.IdempotencyKey
	if err := db.Where("key = ? AND user_id = ?", rec.Key, rec.UserID).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key, userID string, status int, body []byte) error {
	now := time.Now().UTC()
	return GetDB(ctx, r.db).Model(&model.IdempotencyKey{}).
		Where("key = ? AND user_id = ?", key, userID).
		Updates(map[string]interface{}{
			"response_status": status,
			"response_body":   body,
			"completed_at":    &now,
		}).Error
}

func (r *idempotencyRepository) Release(ctx context.Context, key, userID string) error {
	return GetDB(ctx, r.db).Where("key = ? AND user_id = ?", key, userID).Delete(&model.IdempotencyKey{}).Error
}

func (r *idempotencyRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("created_at < ?", cutoff).Delete(&model.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
