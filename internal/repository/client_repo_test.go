package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/testutil"
)

func TestClientRepository_ListSearchOrdersByName(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewClientRepository(db)
	ctx := context.Background()

	testutil.SeedClient(t, db, "Touba Matériaux")
	testutil.SeedClient(t, db, "Ba Quincaillerie")
	testutil.SeedClient(t, db, "Quincaillerie du Port")

	list, total, err := repo.List(ctx, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "Ba Quincaillerie", list[0].Name)

	list, total, err = repo.List(ctx, "QUINCAILLERIE", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
}

func TestClientRepository_CountDocuments(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewClientRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "agent", billing.RoleAgent)
	client := testutil.SeedClient(t, db, "Sall SARL")

	n, err := repo.CountDocuments(ctx, client.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	note := &model.DeliveryNote{Number: "BL-2026-001", ClientID: client.ID, CreatedByID: user.ID, Date: day(2026, 1, 1)}
	require.NoError(t, NewDeliveryNoteRepository(db).Create(ctx, note))

	n, err = repo.CountDocuments(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestProductRepository_CountReferences(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "agent", billing.RoleAgent)
	client := testutil.SeedClient(t, db, "Sall SARL")
	product := testutil.SeedProduct(t, db, "Ciment", "5000", "18")

	note := &model.DeliveryNote{
		Number:      "BL-2026-001",
		ClientID:    client.ID,
		CreatedByID: user.ID,
		Date:        day(2026, 1, 1),
		Items:       []model.DeliveryNoteItem{{ProductID: &product.ID, Description: "Ciment", Quantity: testutil.Dec("4")}},
	}
	require.NoError(t, NewDeliveryNoteRepository(db).Create(ctx, note))

	n, err := repo.CountReferences(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
