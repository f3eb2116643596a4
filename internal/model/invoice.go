package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backoffice/internal/billing"
)

// Invoice is a billing document. Totals are derived from Items and are
// rewritten every time the items are saved.
type Invoice struct {
	ID               uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	Number           string                `gorm:"type:varchar(20);uniqueIndex;not null" json:"number"`
	ClientID         uuid.UUID             `gorm:"type:uuid;not null;index" json:"client_id"`
	Client           *Client               `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	CreatedByID      uuid.UUID             `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedBy        *User                 `gorm:"foreignKey:CreatedByID" json:"-"`
	Status           billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Date             time.Time             `gorm:"type:date;not null;index" json:"date"`
	DueDate          *time.Time            `gorm:"type:date" json:"due_date"`
	Notes            string                `gorm:"type:text" json:"notes"`
	TotalHT          decimal.Decimal       `gorm:"column:total_ht;type:decimal(15,2);not null;default:0" json:"total_ht"`
	TotalTVA         decimal.Decimal       `gorm:"column:total_tva;type:decimal(15,2);not null;default:0" json:"total_tva"`
	TotalTTC         decimal.Decimal       `gorm:"column:total_ttc;type:decimal(15,2);not null;default:0" json:"total_ttc"`
	SourceProformaID *uuid.UUID            `gorm:"type:uuid;index" json:"source_proforma_id"`
	Items            []InvoiceItem         `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	if i.Status == "" {
		i.Status = billing.InvoiceDraft
	}
	return nil
}

// LineItems returns the items in calculator form.
func (i *Invoice) LineItems() []billing.LineItem {
	out := make([]billing.LineItem, len(i.Items))
	for n := range i.Items {
		out[n] = i.Items[n].LineItem()
	}
	return out
}

// ApplyTotals recomputes every line total and the document totals from the items.
func (i *Invoice) ApplyTotals() {
	for n := range i.Items {
		i.Items[n].setTotals(billing.ComputeLine(i.Items[n].LineItem()))
	}
	t := billing.ComputeTotals(i.LineItems())
	i.TotalHT, i.TotalTVA, i.TotalTTC = t.TotalHT, t.TotalTVA, t.TotalTTC
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	Position    int             `gorm:"not null;default:0" json:"-"`
	Description string          `gorm:"type:varchar(500);not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	TVARate     decimal.Decimal `gorm:"column:tva_rate;type:decimal(5,2);not null" json:"tva_rate"`
	TotalHT     decimal.Decimal `gorm:"column:total_ht;type:decimal(15,2);not null;default:0" json:"total_ht"`
	TotalTVA    decimal.Decimal `gorm:"column:total_tva;type:decimal(15,2);not null;default:0" json:"total_tva"`
	TotalTTC    decimal.Decimal `gorm:"column:total_ttc;type:decimal(15,2);not null;default:0" json:"total_ttc"`
}

func (it *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&it.ID)
	return nil
}

func (it *InvoiceItem) LineItem() billing.LineItem {
	return billing.LineItem{
		Description: it.Description,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		TVARate:     it.TVARate,
	}
}

func (it *InvoiceItem) setTotals(t billing.LineTotals) {
	it.TotalHT, it.TotalTVA, it.TotalTTC = t.TotalHT, t.TotalTVA, t.TotalTTC
}
