package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backoffice/internal/billing"
)

// Proforma is a quotation. Once converted it points at the invoice it produced.
type Proforma struct {
	ID                 uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	Number             string                 `gorm:"type:varchar(20);uniqueIndex;not null" json:"number"`
	ClientID           uuid.UUID              `gorm:"type:uuid;not null;index" json:"client_id"`
	Client             *Client                `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	CreatedByID        uuid.UUID              `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedBy          *User                  `gorm:"foreignKey:CreatedByID" json:"-"`
	Status             billing.ProformaStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	Date               time.Time              `gorm:"type:date;not null;index" json:"date"`
	ValidityDate       *time.Time             `gorm:"type:date" json:"validity_date"`
	Notes              string                 `gorm:"type:text" json:"notes"`
	TotalHT            decimal.Decimal        `gorm:"column:total_ht;type:decimal(15,2);not null;default:0" json:"total_ht"`
	TotalTVA           decimal.Decimal        `gorm:"column:total_tva;type:decimal(15,2);not null;default:0" json:"total_tva"`
	TotalTTC           decimal.Decimal        `gorm:"column:total_ttc;type:decimal(15,2);not null;default:0" json:"total_ttc"`
	ConvertedInvoiceID *uuid.UUID             `gorm:"type:uuid;index" json:"converted_invoice_id"`
	Items              []ProformaItem         `gorm:"foreignKey:ProformaID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

func (p *Proforma) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = billing.ProformaDraft
	}
	return nil
}

func (p *Proforma) LineItems() []billing.LineItem {
	out := make([]billing.LineItem, len(p.Items))
	for n := range p.Items {
		out[n] = p.Items[n].LineItem()
	}
	return out
}

// ApplyTotals recomputes every line total and the document totals from the items.
func (p *Proforma) ApplyTotals() {
	for n := range p.Items {
		p.Items[n].setTotals(billing.ComputeLine(p.Items[n].LineItem()))
	}
	t := billing.ComputeTotals(p.LineItems())
	p.TotalHT, p.TotalTVA, p.TotalTTC = t.TotalHT, t.TotalTVA, t.TotalTTC
}

// ProformaItem is one line of a proforma.
type ProformaItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProformaID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
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

func (it *ProformaItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&it.ID)
	return nil
}

func (it *ProformaItem) LineItem() billing.LineItem {
	return billing.LineItem{
		Description: it.Description,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		TVARate:     it.TVARate,
	}
}

func (it *ProformaItem) setTotals(t billing.LineTotals) {
	it.TotalHT, it.TotalTVA, it.TotalTTC = t.TotalHT, t.TotalTVA, t.TotalTTC
}
