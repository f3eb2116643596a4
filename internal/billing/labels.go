package billing

// Display labels and badge colors. Screens and PDFs read these instead of
// keeping their own tables.

var invoiceLabels = map[InvoiceStatus]string{
	InvoiceDraft:     "Brouillon",
	InvoiceFinalized: "Finalisée",
	InvoicePaid:      "Payée",
	InvoiceCancelled: "Annulée",
}

var invoiceColors = map[InvoiceStatus]string{
	InvoiceDraft:     "gray",
	InvoiceFinalized: "blue",
	InvoicePaid:      "green",
	InvoiceCancelled: "red",
}

func (s InvoiceStatus) Label() string {
	if l, ok := invoiceLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s InvoiceStatus) Color() string {
	if c, ok := invoiceColors[s]; ok {
		return c
	}
	return "gray"
}

var proformaLabels = map[ProformaStatus]string{
	ProformaDraft:     "Brouillon",
	ProformaSent:      "Envoyée",
	ProformaAccepted:  "Acceptée",
	ProformaRejected:  "Refusée",
	ProformaConverted: "Convertie en facture",
}

var proformaColors = map[ProformaStatus]string{
	ProformaDraft:     "gray",
	ProformaSent:      "blue",
	ProformaAccepted:  "green",
	ProformaRejected:  "red",
	ProformaConverted: "purple",
}

func (s ProformaStatus) Label() string {
	if l, ok := proformaLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s ProformaStatus) Color() string {
	if c, ok := proformaColors[s]; ok {
		return c
	}
	return "gray"
}

// PaymentMethod is how a delivery was paid for.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCheck    PaymentMethod = "check"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentMobile   PaymentMethod = "mobile"
	PaymentCredit   PaymentMethod = "credit"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentCash:     "Espèces",
	PaymentCheck:    "Chèque",
	PaymentTransfer: "Virement",
	PaymentMobile:   "Mobile Money",
	PaymentCredit:   "Crédit",
}

// Valid accepts the known methods and the empty value (not specified).
func (m PaymentMethod) Valid() bool {
	if m == "" {
		return true
	}
	_, ok := paymentLabels[m]
	return ok
}

func (m PaymentMethod) Label() string {
	if l, ok := paymentLabels[m]; ok {
		return l
	}
	return ""
}

// Role is a user account role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

var roleLabels = map[Role]string{
	RoleAdmin: "Administrateur",
	RoleAgent: "Agent Commercial",
}

func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}
