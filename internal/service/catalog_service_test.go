package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/billing"
	"backoffice/internal/testutil"
)

func TestClientService_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.admin)

	c, err := f.clients.CreateClient(ctx, actor, ClientRequest{Name: "  Quincaillerie Ndiaye ", Phone: "771234567", NINEA: "0042"})
	require.NoError(t, err)
	assert.Equal(t, "Quincaillerie Ndiaye", c.Name)

	_, err = f.clients.CreateClient(ctx, actor, ClientRequest{Name: "   "})
	assert.ErrorIs(t, err, billing.ErrValidation)

	updated, err := f.clients.UpdateClient(ctx, actor, c.ID, ClientRequest{Name: "Quincaillerie Ndiaye & Fils", Address: "Thiès"})
	require.NoError(t, err)
	assert.Equal(t, "Thiès", updated.Address)
	assert.Empty(t, updated.Phone)

	list, total, err := f.clients.ListClients(ctx, "ndiaye", 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, c.ID, list[0].ID)

	require.NoError(t, f.clients.DeleteClient(ctx, actor, c.ID))
	_, err = f.clients.GetClient(ctx, c.ID)
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))
}

func TestClientService_DeleteReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.draftInvoice(t)

	err := f.clients.DeleteClient(ctx, principal(f.admin), f.client.ID.String())
	assert.ErrorIs(t, err, billing.ErrConflict)

	_, err = f.clients.GetClient(ctx, f.client.ID.String())
	assert.NoError(t, err)
}

func TestProductService_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.admin)

	p, err := f.prods.CreateProduct(ctx, actor, ProductRequest{Name: "Fer 12", UnitPrice: testutil.Dec("4500.5")})
	require.NoError(t, err)
	assert.Equal(t, "4500.50", p.UnitPrice)
	assert.Equal(t, "18.00", p.TVARate)

	zero := testutil.Dec("0")
	updated, err := f.prods.UpdateProduct(ctx, actor, p.ID, ProductRequest{Name: "Fer 12", UnitPrice: testutil.Dec("4000"), TVARate: &zero})
	require.NoError(t, err)
	assert.Equal(t, "0.00", updated.TVARate)

	ten := testutil.Dec("10")
	_, err = f.prods.CreateProduct(ctx, actor, ProductRequest{Name: "Fer 14", UnitPrice: testutil.Dec("1"), TVARate: &ten})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.prods.CreateProduct(ctx, actor, ProductRequest{Name: "Fer 14", UnitPrice: testutil.Dec("-1")})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.prods.CreateProduct(ctx, actor, ProductRequest{Name: "Fer 14", UnitPrice: testutil.Dec("99.999")})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.prods.UpdateProduct(ctx, actor, p.ID, ProductRequest{Name: "Fer 12", UnitPrice: testutil.Dec("0.001")})
	assert.ErrorIs(t, err, billing.ErrValidation)

	require.NoError(t, f.prods.DeleteProduct(ctx, actor, p.ID))
}

func TestProductService_DeleteReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.draftProforma(t, "")

	err := f.prods.DeleteProduct(ctx, principal(f.admin), f.sand.ID.String())
	assert.ErrorIs(t, err, billing.ErrConflict)
}
