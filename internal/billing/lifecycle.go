package billing

import (
	"strings"
	"unicode/utf8"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceFinalized InvoiceStatus = "finalized"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// InvoiceAction is a user-triggered invoice transition.
type InvoiceAction string

const (
	ActionFinalize InvoiceAction = "finalize"
	ActionMarkPaid InvoiceAction = "mark_paid"
	ActionCancel   InvoiceAction = "cancel"
)

var invoiceTransitions = map[InvoiceStatus]map[InvoiceAction]InvoiceStatus{
	InvoiceDraft: {
		ActionFinalize: InvoiceFinalized,
		ActionCancel:   InvoiceCancelled,
	},
	InvoiceFinalized: {
		ActionMarkPaid: InvoicePaid,
	},
}

var invoiceActionOrder = []InvoiceAction{ActionFinalize, ActionMarkPaid, ActionCancel}

// InvoiceStatuses lists every invoice status.
var InvoiceStatuses = []InvoiceStatus{InvoiceDraft, InvoiceFinalized, InvoicePaid, InvoiceCancelled}

func (s InvoiceStatus) Valid() bool {
	for _, st := range InvoiceStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s InvoiceStatus) IsTerminal() bool {
	return len(invoiceTransitions[s]) == 0
}

// CanEdit reports whether header and items of an invoice in s may be changed.
func (s InvoiceStatus) CanEdit() bool {
	return s == InvoiceDraft
}

// NextInvoiceStatus returns the status reached by applying action to current.
func NextInvoiceStatus(current InvoiceStatus, action InvoiceAction) (InvoiceStatus, error) {
	next, ok := invoiceTransitions[current][action]
	if !ok {
		return current, Errorf(ErrInvalidTransition, "cannot %s an invoice in status %s", action, current)
	}
	return next, nil
}

// InvoiceActions lists the actions legal from s, in a stable order.
func InvoiceActions(s InvoiceStatus) []InvoiceAction {
	actions := make([]InvoiceAction, 0, 2)
	for _, a := range invoiceActionOrder {
		if _, ok := invoiceTransitions[s][a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}

// FinalizeInvoice checks that a draft invoice with items may be finalized.
func FinalizeInvoice(current InvoiceStatus, items []LineItem) (InvoiceStatus, error) {
	next, err := NextInvoiceStatus(current, ActionFinalize)
	if err != nil {
		return current, err
	}
	if err := ValidateItems(items); err != nil {
		return current, err
	}
	return next, nil
}

// ProformaStatus is the lifecycle state of a proforma.
type ProformaStatus string

const (
	ProformaDraft     ProformaStatus = "draft"
	ProformaSent      ProformaStatus = "sent"
	ProformaAccepted  ProformaStatus = "accepted"
	ProformaRejected  ProformaStatus = "rejected"
	ProformaConverted ProformaStatus = "converted"
)

// ProformaAction is a user-triggered proforma transition.
type ProformaAction string

const (
	ActionSend    ProformaAction = "send"
	ActionAccept  ProformaAction = "accept"
	ActionReject  ProformaAction = "reject"
	ActionConvert ProformaAction = "convert_to_invoice"
)

var proformaTransitions = map[ProformaStatus]map[ProformaAction]ProformaStatus{
	ProformaDraft: {
		ActionSend:    ProformaSent,
		ActionConvert: ProformaConverted,
	},
	ProformaSent: {
		ActionAccept:  ProformaAccepted,
		ActionReject:  ProformaRejected,
		ActionConvert: ProformaConverted,
	},
	ProformaAccepted: {
		ActionConvert: ProformaConverted,
	},
}

var proformaActionOrder = []ProformaAction{ActionSend, ActionAccept, ActionReject, ActionConvert}

// ProformaStatuses lists every proforma status.
var ProformaStatuses = []ProformaStatus{ProformaDraft, ProformaSent, ProformaAccepted, ProformaRejected, ProformaConverted}

func (s ProformaStatus) Valid() bool {
	for _, st := range ProformaStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s ProformaStatus) IsTerminal() bool {
	return len(proformaTransitions[s]) == 0
}

func (s ProformaStatus) CanEdit() bool {
	return s == ProformaDraft
}

// NextProformaStatus returns the status reached by applying action to current.
// Converting an already converted proforma is a conflict rather than a plain
// invalid transition.
func NextProformaStatus(current ProformaStatus, action ProformaAction) (ProformaStatus, error) {
	if action == ActionConvert && current == ProformaConverted {
		return current, ErrAlreadyConverted
	}
	next, ok := proformaTransitions[current][action]
	if !ok {
		return current, Errorf(ErrInvalidTransition, "cannot %s a proforma in status %s", action, current)
	}
	return next, nil
}

// ProformaActions lists the actions legal from s, in a stable order.
func ProformaActions(s ProformaStatus) []ProformaAction {
	actions := make([]ProformaAction, 0, 3)
	for _, a := range proformaActionOrder {
		if _, ok := proformaTransitions[s][a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}

// SendProforma checks that a draft proforma with items may be sent.
func SendProforma(current ProformaStatus, items []LineItem) (ProformaStatus, error) {
	next, err := NextProformaStatus(current, ActionSend)
	if err != nil {
		return current, err
	}
	if err := ValidateItems(items); err != nil {
		return current, err
	}
	return next, nil
}

// Conversion is the invoice a proforma turns into.
type Conversion struct {
	ProformaStatus ProformaStatus
	InvoiceStatus  InvoiceStatus
	Items          []LineItem
	Totals         Totals
}

// PlanConversion checks the conversion preconditions and returns the
// resulting states: the proforma becomes converted and a draft invoice carries
// the same lines with freshly computed totals.
func PlanConversion(current ProformaStatus, items []LineItem) (Conversion, error) {
	next, err := NextProformaStatus(current, ActionConvert)
	if err != nil {
		return Conversion{}, err
	}
	if err := ValidateItems(items); err != nil {
		return Conversion{}, err
	}
	copied := make([]LineItem, len(items))
	copy(copied, items)
	return Conversion{
		ProformaStatus: next,
		InvoiceStatus:  InvoiceDraft,
		Items:          copied,
		Totals:         ComputeTotals(copied),
	}, nil
}

// MaxDescriptionLength bounds a line description, in characters.
const MaxDescriptionLength = 500

// ValidateItems enforces the item rules a document must satisfy before it is
// persisted or leaves draft: at least one line, and every line has a
// description, a positive quantity, a non-negative price and rate.
// Quantities and prices are limited to cents.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for i, item := range items {
		switch {
		case strings.TrimSpace(item.Description) == "":
			return Errorf(ErrInvalidLineItem, "line %d: description is required", i+1)
		case utf8.RuneCountInString(item.Description) > MaxDescriptionLength:
			return Errorf(ErrInvalidLineItem, "line %d: description must be at most %d characters", i+1, MaxDescriptionLength)
		case !item.Quantity.IsPositive():
			return Errorf(ErrInvalidLineItem, "line %d: quantity must be greater than 0", i+1)
		case item.UnitPrice.IsNegative():
			return Errorf(ErrInvalidLineItem, "line %d: unit price must not be negative", i+1)
		case item.TVARate.IsNegative():
			return Errorf(ErrInvalidLineItem, "line %d: tva rate must not be negative", i+1)
		case !HasCentPrecision(item.Quantity):
			return Errorf(ErrInvalidLineItem, "line %d: quantity must have at most 2 decimals", i+1)
		case !HasCentPrecision(item.UnitPrice):
			return Errorf(ErrInvalidLineItem, "line %d: unit price must have at most 2 decimals", i+1)
		}
	}
	return nil
}
