package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/testutil"
)

func TestProformaRepository_MarkConverted(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProformaRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "agent", billing.RoleAgent)
	client := testutil.SeedClient(t, db, "Sall SARL")

	pro := &model.Proforma{
		Number:      "PRO-2026-001",
		ClientID:    client.ID,
		CreatedByID: user.ID,
		Status:      billing.ProformaAccepted,
		Date:        day(2026, 5, 2),
		Items: []model.ProformaItem{
			{Description: "Ciment", Quantity: testutil.Dec("2"), UnitPrice: testutil.Dec("1000"), TVARate: testutil.Dec("18")},
		},
	}
	pro.ApplyTotals()
	require.NoError(t, repo.Create(ctx, pro))

	invoiceID := uuid.New()
	ok, err := repo.MarkConverted(ctx, pro.ID, billing.ProformaAccepted, invoiceID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkConverted(ctx, pro.ID, billing.ProformaAccepted, invoiceID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ProformaConverted, got.Status)
	require.NotNil(t, got.ConvertedInvoiceID)
	assert.Equal(t, invoiceID, *got.ConvertedInvoiceID)
}

func TestProformaRepository_Stats(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProformaRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "agent", billing.RoleAgent)
	client := testutil.SeedClient(t, db, "Sall SARL")

	statuses := []billing.ProformaStatus{billing.ProformaDraft, billing.ProformaSent, billing.ProformaAccepted, billing.ProformaConverted, billing.ProformaRejected}
	for i, st := range statuses {
		pro := &model.Proforma{
			Number:      "PRO-2026-00" + string(rune('1'+i)),
			ClientID:    client.ID,
			CreatedByID: user.ID,
			Status:      st,
			Date:        day(2026, 5, 2+i),
			Items: []model.ProformaItem{
				{Description: "Sable", Quantity: testutil.Dec("1"), UnitPrice: testutil.Dec("100"), TVARate: testutil.Dec("0")},
			},
		}
		pro.ApplyTotals()
		require.NoError(t, repo.Create(ctx, pro))
	}

	stats, err := repo.Stats(ctx, day(2026, 5, 1), day(2026, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Count)
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.Converted)
	assert.True(t, stats.Amount.Equal(testutil.Dec("500")), stats.Amount.String())
}
