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
)

func (f *fixture) draftProforma(t *testing.T, notes string) ProformaResponse {
	t.Helper()
	p, err := f.profo.CreateProforma(context.Background(), principal(f.agent), ProformaRequest{
		Client:       f.client.ID.String(),
		ValidityDate: strPtr("2026-04-15"),
		Notes:        notes,
		Items: []LineItemRequest{
			productLine(f.cement, "2"),
			productLine(f.sand, "10"),
		},
	})
	require.NoError(t, err)
	return p
}

func TestProformaService_Create(t *testing.T) {
	f := newFixture(t)
	p := f.draftProforma(t, "")

	assert.Equal(t, "PRO-2026-001", p.Number)
	assert.Equal(t, "draft", p.Status)
	assert.Equal(t, []string{"send", "convert_to_invoice"}, p.Actions)
	assert.Equal(t, "3500.00", p.TotalHT)
	assert.Equal(t, "360.00", p.TotalTVA)
	assert.Equal(t, "3860.00", p.TotalTTC)
	require.NotNil(t, p.ValidityDate)
	assert.Equal(t, "2026-04-15", *p.ValidityDate)
	assert.Nil(t, p.ConvertedInvoice)

	_, err := f.profo.CreateProforma(context.Background(), principal(f.agent), ProformaRequest{
		Client:       f.client.ID.String(),
		Date:         "2026-03-15",
		ValidityDate: strPtr("2026-03-01"),
		Items:        []LineItemRequest{productLine(f.cement, "1")},
	})
	assert.ErrorIs(t, err, billing.ErrValidation)
}

func TestProformaService_SendAcceptReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.agent)

	p := f.draftProforma(t, "")
	_, err := f.profo.Accept(ctx, actor, p.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)

	sent, err := f.profo.Send(ctx, actor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "sent", sent.Status)
	assert.Equal(t, "Envoyée", sent.StatusDisplay)
	assert.Equal(t, []string{"accept", "reject", "convert_to_invoice"}, sent.Actions)

	_, err = f.profo.UpdateProforma(ctx, actor, p.ID, ProformaRequest{
		Client: f.client.ID.String(),
		Items:  []LineItemRequest{productLine(f.sand, "1")},
	})
	assert.ErrorIs(t, err, billing.ErrNotEditable)

	accepted, err := f.profo.Accept(ctx, actor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "accepted", accepted.Status)
	assert.Equal(t, []string{"convert_to_invoice"}, accepted.Actions)

	other := f.draftProforma(t, "")
	_, err = f.profo.Send(ctx, actor, other.ID)
	require.NoError(t, err)
	rejected, err := f.profo.Reject(ctx, actor, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Empty(t, rejected.Actions)

	_, err = f.profo.ConvertToInvoice(ctx, actor, other.ID)
	assert.ErrorIs(t, err, billing.ErrInvalidTransition)

	assert.Contains(t, f.events.types(), "proforma.sent")
	assert.Contains(t, f.events.types(), "proforma.rejected")
}

func TestProformaService_ConvertToInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.admin)

	p := f.draftProforma(t, "Livraison sous 48h")
	_, err := f.profo.Send(ctx, principal(f.agent), p.ID)
	require.NoError(t, err)

	res, err := f.profo.ConvertToInvoice(ctx, actor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Proforma convertie en facture", res.Message)
	assert.Equal(t, "FAC-2026-001", res.InvoiceNumber)

	inv, err := f.invoice.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "draft", inv.Status)
	assert.Equal(t, p.Client, inv.Client)
	assert.Equal(t, f.admin.ID.String(), inv.CreatedBy)
	assert.Equal(t, "2026-03-15", inv.Date)
	assert.Equal(t, "Convertie depuis proforma PRO-2026-001\nLivraison sous 48h", inv.Notes)
	require.NotNil(t, inv.SourceProforma)
	assert.Equal(t, p.ID, *inv.SourceProforma)
	assert.Equal(t, p.TotalHT, inv.TotalHT)
	assert.Equal(t, p.TotalTVA, inv.TotalTVA)
	assert.Equal(t, p.TotalTTC, inv.TotalTTC)
	require.Len(t, inv.Items, len(p.Items))
	for i := range p.Items {
		assert.Equal(t, p.Items[i].Description, inv.Items[i].Description)
		assert.Equal(t, p.Items[i].Quantity, inv.Items[i].Quantity)
		assert.Equal(t, p.Items[i].UnitPrice, inv.Items[i].UnitPrice)
		assert.Equal(t, p.Items[i].TVARate, inv.Items[i].TVARate)
		assert.Equal(t, p.Items[i].Product, inv.Items[i].Product)
		assert.NotEqual(t, p.Items[i].ID, inv.Items[i].ID)
	}

	converted, err := f.profo.GetProforma(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "converted", converted.Status)
	require.NotNil(t, converted.ConvertedInvoice)
	assert.Equal(t, res.InvoiceID, *converted.ConvertedInvoice)
	assert.Empty(t, converted.Actions)

	_, err = f.profo.ConvertToInvoice(ctx, actor, p.ID)
	assert.ErrorIs(t, err, billing.ErrAlreadyConverted)
	assert.Equal(t, billing.KindConflict, billing.KindOf(err))

	var invoices int64
	require.NoError(t, f.db.Model(&model.Invoice{}).Count(&invoices).Error)
	assert.EqualValues(t, 1, invoices)

	assert.ErrorIs(t, f.profo.DeleteProforma(ctx, actor, p.ID), billing.ErrNotEditable)

	logs, _, err := f.audits.GetAuditLogs(ctx, AuditListQuery{Action: model.ActionConvertProforma}, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin", logs[0].Username)
	assert.Contains(t, string(logs[0].Details), res.InvoiceNumber)
}

func TestProformaService_ConvertDraftWithoutNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.draftProforma(t, "  ")

	res, err := f.profo.ConvertToInvoice(ctx, principal(f.agent), p.ID)
	require.NoError(t, err)

	inv, err := f.invoice.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "Convertie depuis proforma PRO-2026-001", inv.Notes)
	assert.False(t, strings.Contains(inv.Notes, "\n"))
}

func TestProformaService_UpdateDeleteAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.agent)

	p := f.draftProforma(t, "")
	updated, err := f.profo.UpdateProforma(ctx, actor, p.ID, ProformaRequest{
		Client: f.client.ID.String(),
		Items:  []LineItemRequest{freeLine("Pose carrelage", "1", "50000", "18")},
	})
	require.NoError(t, err)
	assert.Equal(t, "59000.00", updated.TotalTTC)
	require.Len(t, updated.Items, 1)
	assert.Nil(t, updated.Items[0].Product)

	second := f.draftProforma(t, "")
	_, err = f.profo.Send(ctx, actor, second.ID)
	require.NoError(t, err)
	_, err = f.profo.Accept(ctx, actor, second.ID)
	require.NoError(t, err)

	third := f.draftProforma(t, "")
	_, err = f.profo.ConvertToInvoice(ctx, actor, third.ID)
	require.NoError(t, err)

	stats, err := f.profo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalProformasMonth)
	assert.Equal(t, "66720.00", stats.TotalAmountMonth)
	assert.EqualValues(t, 1, stats.Accepted)
	assert.EqualValues(t, 1, stats.Pending)
	assert.EqualValues(t, 1, stats.Converted)

	require.NoError(t, f.profo.DeleteProforma(ctx, actor, p.ID))
	_, err = f.profo.GetProforma(ctx, p.ID)
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))

	list, total, err := f.profo.ListProformas(ctx, DocumentListQuery{Status: "converted"}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, third.ID, list[0].ID)

	out, name, err := f.profo.RenderPDF(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Number+".pdf", name)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
