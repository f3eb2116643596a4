package model

import "time"

// IdempotencyKey stores the first response produced for an Idempotency-Key
// header so that a retried request gets the same answer. Keys are scoped to
// the user that sent them.
type IdempotencyKey struct {
	Key            string     `gorm:"type:varchar(128);primaryKey" json:"key"`
	UserID         string     `gorm:"type:varchar(64);primaryKey" json:"user_id"`
	RequestHash    string     `gorm:"type:varchar(64);not null" json:"request_hash"` // sha256 of method|path|body|user
	Method         string     `gorm:"type:varchar(10);not null" json:"method"`
	Path           string     `gorm:"type:varchar(255);not null" json:"path"`
	ResponseStatus int        `json:"response_status"` // 0 while the first request is still running
	ResponseBody   []byte     `json:"-"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}
