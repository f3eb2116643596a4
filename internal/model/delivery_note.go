package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backoffice/internal/billing"
)

// DeliveryNote records goods handed over to a client. It carries no prices.
type DeliveryNote struct {
	ID            uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	Number        string                `gorm:"type:varchar(20);uniqueIndex;not null" json:"number"`
	ClientID      uuid.UUID             `gorm:"type:uuid;not null;index" json:"client_id"`
	Client        *Client               `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	CreatedByID   uuid.UUID             `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedBy     *User                 `gorm:"foreignKey:CreatedByID" json:"-"`
	Date          time.Time             `gorm:"type:date;not null;index" json:"date"`
	PaymentMethod billing.PaymentMethod `gorm:"type:varchar(20)" json:"payment_method"`
	DeliveredBy   string                `gorm:"type:varchar(200)" json:"delivered_by"`
	Notes         string                `gorm:"type:text" json:"notes"`
	Items         []DeliveryNoteItem    `gorm:"foreignKey:DeliveryNoteID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func (d *DeliveryNote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// DeliveryNoteItem is one delivered line.
type DeliveryNoteItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DeliveryNoteID uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ProductID      *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	Position       int             `gorm:"not null;default:0" json:"-"`
	Description    string          `gorm:"type:varchar(500);not null" json:"description"`
	Quantity       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	Observation    string          `gorm:"type:varchar(500)" json:"observation"`
}

func (it *DeliveryNoteItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&it.ID)
	return nil
}
