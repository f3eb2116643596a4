package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/testutil"
)

func (f *fixture) draftInvoice(t *testing.T, items ...LineItemRequest) InvoiceResponse {
	t.Helper()
	if len(items) == 0 {
		items = []LineItemRequest{productLine(f.cement, "2")}
	}
	inv, err := f.invoice.CreateInvoice(context.Background(), principal(f.agent), InvoiceRequest{
		Client: f.client.ID.String(),
		Items:  items,
	})
	require.NoError(t, err)
	return inv
}

func TestInvoiceService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.invoice.CreateInvoice(ctx, principal(f.agent), InvoiceRequest{
		Client:  f.client.ID.String(),
		Date:    "2026-03-10",
		DueDate: strPtr("2026-04-10"),
		Notes:   "Chantier Pikine",
		Items: []LineItemRequest{
			productLine(f.cement, "2"),
			freeLine("Transport", "1", "5000", "0"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-001", inv.Number)
	assert.Equal(t, "draft", inv.Status)
	assert.Equal(t, "Brouillon", inv.StatusDisplay)
	assert.Equal(t, []string{"finalize", "cancel"}, inv.Actions)
	assert.Equal(t, "2026-03-10", inv.Date)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, "2026-04-10", *inv.DueDate)
	assert.Equal(t, "7000.00", inv.TotalHT)
	assert.Equal(t, "360.00", inv.TotalTVA)
	assert.Equal(t, "7360.00", inv.TotalTTC)
	require.NotNil(t, inv.ClientDetail)
	assert.Equal(t, "Sotrac", inv.ClientDetail.Name)
	assert.Equal(t, "Test AWA", inv.CreatedByName)

	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Ciment CEM II", inv.Items[0].Description)
	assert.Equal(t, "1000.00", inv.Items[0].UnitPrice)
	assert.Equal(t, "18.00", inv.Items[0].TVARate)
	assert.Equal(t, "2360.00", inv.Items[0].TotalTTC)
	require.NotNil(t, inv.Items[0].Product)
	assert.Equal(t, f.cement.ID.String(), *inv.Items[0].Product)
	assert.Nil(t, inv.Items[1].Product)

	second := f.draftInvoice(t)
	assert.Equal(t, "FAC-2026-002", second.Number)
	assert.Equal(t, "2026-03-15", second.Date)
	assert.Contains(t, f.events.types(), "invoice.created")
}

func TestInvoiceService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.agent)

	tests := []struct {
		name string
		req  InvoiceRequest
		want error
	}{
		{"no client", InvoiceRequest{Items: []LineItemRequest{productLine(f.cement, "1")}}, billing.ErrClientRequired},
		{"unknown client", InvoiceRequest{Client: "6f1c2a57-8f43-4a55-9b8f-3f9d8a1b2c3d", Items: []LineItemRequest{productLine(f.cement, "1")}}, billing.ErrValidation},
		{"no items", InvoiceRequest{Client: f.client.ID.String()}, billing.ErrEmptyItems},
		{"zero quantity", InvoiceRequest{Client: f.client.ID.String(), Items: []LineItemRequest{productLine(f.cement, "0")}}, billing.ErrInvalidLineItem},
		{"blank description", InvoiceRequest{Client: f.client.ID.String(), Items: []LineItemRequest{freeLine(" ", "1", "10", "18")}}, billing.ErrInvalidLineItem},
		{"rate outside offer", InvoiceRequest{Client: f.client.ID.String(), Items: []LineItemRequest{freeLine("Service", "1", "10", "10")}}, billing.ErrInvalidLineItem},
		{"quantity beyond cents", InvoiceRequest{Client: f.client.ID.String(), Items: []LineItemRequest{freeLine("Ciment", "1.005", "1000", "0")}}, billing.ErrInvalidLineItem},
		{"catalog line beyond cents", InvoiceRequest{Client: f.client.ID.String(), Items: []LineItemRequest{productLine(f.cement, "2.125")}}, billing.ErrInvalidLineItem},
		{"price beyond cents", InvoiceRequest{Client: f.client.ID.String(), Items: []LineItemRequest{freeLine("Vis", "3", "0.335", "18")}}, billing.ErrInvalidLineItem},
		{"description too long", InvoiceRequest{Client: f.client.ID.String(), Items: []LineItemRequest{freeLine(strings.Repeat("a", 501), "1", "10", "18")}}, billing.ErrInvalidLineItem},
		{"bad date", InvoiceRequest{Client: f.client.ID.String(), Date: "15/03/2026", Items: []LineItemRequest{productLine(f.cement, "1")}}, billing.ErrValidation},
		{"due before date", InvoiceRequest{Client: f.client.ID.String(), Date: "2026-03-10", DueDate: strPtr("2026-03-01"), Items: []LineItemRequest{productLine(f.cement, "1")}}, billing.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.invoice.CreateInvoice(ctx, actor, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	missing := "0b7c4c1e-1d2f-4f67-a1a9-6c1f4f7d9e21"
	_, err := f.invoice.CreateInvoice(ctx, actor, InvoiceRequest{
		Client: f.client.ID.String(),
		Items:  []LineItemRequest{{Product: &missing, Quantity: testutil.Dec("1")}},
	})
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))

	var count int64
	require.NoError(t, f.db.Model(&model.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInvoiceService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.agent)
	inv := f.draftInvoice(t)

	_, err := f.invoice.MarkPaid(ctx, actor, inv.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)

	finalized, err := f.invoice.Finalize(ctx, actor, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "finalized", finalized.Status)
	assert.Equal(t, []string{"mark_paid"}, finalized.Actions)

	_, err = f.invoice.Finalize(ctx, actor, inv.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)
	_, err = f.invoice.Cancel(ctx, actor, inv.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)

	paid, err := f.invoice.MarkPaid(ctx, actor, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Status)
	assert.Empty(t, paid.Actions)
	assert.Equal(t, inv.TotalTTC, paid.TotalTTC)

	logs, total, err := f.audits.GetAuditLogs(ctx, AuditListQuery{EntityID: inv.ID}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	actions := []string{logs[0].Action, logs[1].Action, logs[2].Action}
	assert.ElementsMatch(t, []string{model.ActionCreateInvoice, model.ActionFinalizeInvoice, model.ActionMarkInvoicePaid}, actions)
	assert.Equal(t, "awa", logs[0].Username)

	assert.Contains(t, f.events.types(), "invoice.finalized")
	assert.Contains(t, f.events.types(), "invoice.paid")
}

func TestInvoiceService_FinalizeRequiresValidItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draftInvoice(t)

	invoiceID := inv.ID
	require.NoError(t, f.db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceItem{}).Error)

	_, err := f.invoice.Finalize(ctx, principal(f.agent), invoiceID)
	assert.ErrorIs(t, err, billing.ErrEmptyItems)

	got, err := f.invoice.GetInvoice(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Status)
}

func TestInvoiceService_CancelDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draftInvoice(t)

	cancelled, err := f.invoice.Cancel(ctx, principal(f.agent), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "Annulée", cancelled.StatusDisplay)

	_, err = f.invoice.Finalize(ctx, principal(f.agent), inv.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)
}

func TestInvoiceService_UpdateAndDeleteOnlyDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.agent)
	inv := f.draftInvoice(t)

	updated, err := f.invoice.UpdateInvoice(ctx, actor, inv.ID, InvoiceRequest{
		Client: f.client.ID.String(),
		Date:   "2026-03-12",
		Items:  []LineItemRequest{productLine(f.sand, "10"), productLine(f.cement, "1")},
	})
	require.NoError(t, err)
	assert.Equal(t, inv.Number, updated.Number)
	assert.Equal(t, "2500.00", updated.TotalHT)
	assert.Equal(t, "180.00", updated.TotalTVA)
	assert.Equal(t, "2680.00", updated.TotalTTC)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Sable", updated.Items[0].Description)

	var items int64
	require.NoError(t, f.db.Model(&model.InvoiceItem{}).Where("invoice_id = ?", inv.ID).Count(&items).Error)
	assert.EqualValues(t, 2, items)

	_, err = f.invoice.Finalize(ctx, actor, inv.ID)
	require.NoError(t, err)

	_, err = f.invoice.UpdateInvoice(ctx, actor, inv.ID, InvoiceRequest{
		Client: f.client.ID.String(),
		Items:  []LineItemRequest{productLine(f.sand, "1")},
	})
	assert.ErrorIs(t, err, billing.ErrNotEditable)
	assert.ErrorIs(t, f.invoice.DeleteInvoice(ctx, actor, inv.ID), billing.ErrNotEditable)

	draft := f.draftInvoice(t)
	require.NoError(t, f.invoice.DeleteInvoice(ctx, actor, draft.ID))
	_, err = f.invoice.GetInvoice(ctx, draft.ID)
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))
}

func TestInvoiceService_GetErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.invoice.GetInvoice(ctx, "not-a-uuid")
	assert.Equal(t, billing.KindValidation, billing.KindOf(err))

	_, err = f.invoice.GetInvoice(ctx, "9a4b3c2d-1e0f-4a1b-8c7d-6e5f4a3b2c1d")
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))
}

func TestInvoiceService_ListAndDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.agent)

	a := f.draftInvoice(t)
	b := f.draftInvoice(t, productLine(f.sand, "4"))
	_, err := f.invoice.Finalize(ctx, actor, a.ID)
	require.NoError(t, err)
	_, err = f.invoice.MarkPaid(ctx, actor, a.ID)
	require.NoError(t, err)

	list, total, err := f.invoice.ListInvoices(ctx, DocumentListQuery{Status: "draft"}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	list, _, err = f.invoice.ListInvoices(ctx, DocumentListQuery{Search: "sotr", Ordering: "number"}, 1, 20)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.Number, list[0].Number)

	_, _, err = f.invoice.ListInvoices(ctx, DocumentListQuery{StartDate: "yesterday"}, 1, 20)
	assert.ErrorIs(t, err, billing.ErrValidation)

	dash, err := f.invoice.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, dash.TotalInvoicesMonth)
	assert.Equal(t, "2960.00", dash.TotalAmountMonth)
	assert.EqualValues(t, 1, dash.PaidInvoices)
	assert.EqualValues(t, 1, dash.PendingInvoices)
	assert.Equal(t, "2360.00", dash.PaidAmount)
}

func TestInvoiceService_ExportAndPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.draftInvoice(t)

	xlsx, err := f.invoice.Export(ctx, DocumentListQuery{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx, []byte("PK")))

	out, name, err := f.invoice.RenderPDF(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-001.pdf", name)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestPreviewTotals(t *testing.T) {
	preview := PreviewTotals([]LineItemRequest{
		freeLine("Ciment", "2", "1000", "18"),
		freeLine("Vis", "3", "0.335", "18"),
		{Description: "incomplete"},
	})
	require.Len(t, preview.Lines, 3)
	assert.Equal(t, "2360.00", preview.Lines[0].TotalTTC)
	assert.Equal(t, "1.19", preview.Lines[1].TotalTTC)
	assert.Equal(t, "0.00", preview.Lines[2].TotalTTC)
	assert.Equal(t, "2001.01", preview.TotalHT)
	assert.Equal(t, "360.18", preview.TotalTVA)
	assert.Equal(t, "2361.19", preview.TotalTTC)
}
