package billing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItems() []LineItem {
	return []LineItem{line("Ciment", "2", "1000", "18")}
}

func TestFinalizeInvoice(t *testing.T) {
	next, err := FinalizeInvoice(InvoiceDraft, validItems())
	require.NoError(t, err)
	assert.Equal(t, InvoiceFinalized, next)

	_, err = FinalizeInvoice(InvoiceFinalized, validItems())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	_, err = FinalizeInvoice(InvoiceDraft, nil)
	assert.ErrorIs(t, err, ErrEmptyItems)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = FinalizeInvoice(InvoiceDraft, []LineItem{line("", "1", "10", "18")})
	assert.ErrorIs(t, err, ErrInvalidLineItem)
}

func TestNextInvoiceStatus(t *testing.T) {
	tests := []struct {
		from    InvoiceStatus
		action  InvoiceAction
		want    InvoiceStatus
		wantErr bool
	}{
		{InvoiceDraft, ActionFinalize, InvoiceFinalized, false},
		{InvoiceDraft, ActionCancel, InvoiceCancelled, false},
		{InvoiceDraft, ActionMarkPaid, InvoiceDraft, true},
		{InvoiceFinalized, ActionMarkPaid, InvoicePaid, false},
		{InvoiceFinalized, ActionFinalize, InvoiceFinalized, true},
		{InvoiceFinalized, ActionCancel, InvoiceFinalized, true},
		{InvoicePaid, ActionMarkPaid, InvoicePaid, true},
		{InvoicePaid, ActionCancel, InvoicePaid, true},
		{InvoiceCancelled, ActionFinalize, InvoiceCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := NextInvoiceStatus(tt.from, tt.action)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvoiceStatusHelpers(t *testing.T) {
	assert.True(t, InvoicePaid.IsTerminal())
	assert.True(t, InvoiceCancelled.IsTerminal())
	assert.False(t, InvoiceDraft.IsTerminal())
	assert.True(t, InvoiceDraft.CanEdit())
	assert.False(t, InvoiceFinalized.CanEdit())
	assert.False(t, InvoiceStatus("archived").Valid())

	assert.Equal(t, []InvoiceAction{ActionFinalize, ActionCancel}, InvoiceActions(InvoiceDraft))
	assert.Equal(t, []InvoiceAction{ActionMarkPaid}, InvoiceActions(InvoiceFinalized))
	assert.Empty(t, InvoiceActions(InvoicePaid))
}

func TestNextProformaStatus(t *testing.T) {
	tests := []struct {
		from    ProformaStatus
		action  ProformaAction
		want    ProformaStatus
		wantErr error
	}{
		{ProformaDraft, ActionSend, ProformaSent, nil},
		{ProformaDraft, ActionAccept, ProformaDraft, ErrInvalidTransition},
		{ProformaSent, ActionAccept, ProformaAccepted, nil},
		{ProformaSent, ActionReject, ProformaRejected, nil},
		{ProformaSent, ActionSend, ProformaSent, ErrInvalidTransition},
		{ProformaDraft, ActionConvert, ProformaConverted, nil},
		{ProformaSent, ActionConvert, ProformaConverted, nil},
		{ProformaAccepted, ActionConvert, ProformaConverted, nil},
		{ProformaRejected, ActionConvert, ProformaRejected, ErrInvalidTransition},
		{ProformaRejected, ActionAccept, ProformaRejected, ErrInvalidTransition},
		{ProformaConverted, ActionConvert, ProformaConverted, ErrAlreadyConverted},
		{ProformaConverted, ActionSend, ProformaConverted, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := NextProformaStatus(tt.from, tt.action)
			assert.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSendProforma_RequiresItems(t *testing.T) {
	_, err := SendProforma(ProformaDraft, nil)
	assert.ErrorIs(t, err, ErrEmptyItems)

	next, err := SendProforma(ProformaDraft, validItems())
	require.NoError(t, err)
	assert.Equal(t, ProformaSent, next)
}

func TestPlanConversion(t *testing.T) {
	conv, err := PlanConversion(ProformaDraft, validItems())
	require.NoError(t, err)
	assert.Equal(t, ProformaConverted, conv.ProformaStatus)
	assert.Equal(t, InvoiceDraft, conv.InvoiceStatus)
	require.Len(t, conv.Items, 1)
	assertDecimal(t, "2000", conv.Totals.TotalHT, "TotalHT")
	assertDecimal(t, "360", conv.Totals.TotalTVA, "TotalTVA")
	assertDecimal(t, "2360", conv.Totals.TotalTTC, "TotalTTC")

	_, err = PlanConversion(ProformaConverted, validItems())
	assert.ErrorIs(t, err, ErrAlreadyConverted)
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = PlanConversion(ProformaRejected, validItems())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = PlanConversion(ProformaAccepted, nil)
	assert.ErrorIs(t, err, ErrEmptyItems)
}

func TestValidateItems(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		want  error
	}{
		{"empty", nil, ErrEmptyItems},
		{"blank description", []LineItem{line("  ", "1", "1", "18")}, ErrInvalidLineItem},
		{"zero quantity", []LineItem{line("A", "0", "1", "18")}, ErrInvalidLineItem},
		{"negative quantity", []LineItem{line("A", "-1", "1", "18")}, ErrInvalidLineItem},
		{"negative price", []LineItem{line("A", "1", "-1", "18")}, ErrInvalidLineItem},
		{"negative rate", []LineItem{line("A", "1", "1", "-18")}, ErrInvalidLineItem},
		{"free line is fine", []LineItem{line("Gift", "1", "0", "0")}, nil},
		{"quantity beyond cents", []LineItem{line("Ciment", "1.005", "1000", "0")}, ErrInvalidLineItem},
		{"price beyond cents", []LineItem{line("Vis", "3", "0.335", "18")}, ErrInvalidLineItem},
		{"trailing zeros are fine", []LineItem{line("Vis", "1.500", "0.10", "18")}, nil},
		{"description too long", []LineItem{line(strings.Repeat("a", 501), "1", "1", "18")}, ErrInvalidLineItem},
		{"description at limit", []LineItem{line(strings.Repeat("é", 500), "1", "1", "18")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItems(tt.items)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Finalisée", InvoiceFinalized.Label())
	assert.Equal(t, "green", InvoicePaid.Color())
	assert.Equal(t, "Convertie en facture", ProformaConverted.Label())
	assert.Equal(t, "Mobile Money", PaymentMobile.Label())
	assert.True(t, PaymentMethod("").Valid())
	assert.False(t, PaymentMethod("barter").Valid())
	assert.Equal(t, "Agent Commercial", RoleAgent.Label())
}
