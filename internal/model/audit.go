package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionLogin = "LOGIN"

	ActionCreateClient  = "CREATE_CLIENT"
	ActionUpdateClient  = "UPDATE_CLIENT"
	ActionDeleteClient  = "DELETE_CLIENT"
	ActionCreateProduct = "CREATE_PRODUCT"
	ActionUpdateProduct = "UPDATE_PRODUCT"
	ActionDeleteProduct = "DELETE_PRODUCT"

	ActionCreateUser     = "CREATE_USER"
	ActionUpdateUser     = "UPDATE_USER"
	ActionDeleteUser     = "DELETE_USER"
	ActionChangePassword = "CHANGE_PASSWORD"

	ActionCreateInvoice   = "CREATE_INVOICE"
	ActionUpdateInvoice   = "UPDATE_INVOICE"
	ActionDeleteInvoice   = "DELETE_INVOICE"
	ActionFinalizeInvoice = "FINALIZE_INVOICE"
	ActionMarkInvoicePaid = "MARK_INVOICE_PAID"
	ActionCancelInvoice   = "CANCEL_INVOICE"

	ActionCreateProforma  = "CREATE_PROFORMA"
	ActionUpdateProforma  = "UPDATE_PROFORMA"
	ActionDeleteProforma  = "DELETE_PROFORMA"
	ActionSendProforma    = "SEND_PROFORMA"
	ActionAcceptProforma  = "ACCEPT_PROFORMA"
	ActionRejectProforma  = "REJECT_PROFORMA"
	ActionConvertProforma = "CONVERT_PROFORMA"

	ActionCreateDeliveryNote = "CREATE_DELIVERY_NOTE"
	ActionUpdateDeliveryNote = "UPDATE_DELIVERY_NOTE"
	ActionDeleteDeliveryNote = "DELETE_DELIVERY_NOTE"

	ActionUpdateRolePermissions = "UPDATE_ROLE_PERMISSIONS"
)

// AuditLog records who changed what, and when.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
