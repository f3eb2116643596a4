package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/billing"
)

func (f *fixture) roleID(t *testing.T, name string) string {
	t.Helper()
	roles, err := f.roles.ListRoles(context.Background())
	require.NoError(t, err)
	for _, r := range roles {
		if r.Name == name {
			return r.ID
		}
	}
	t.Fatalf("role %s not seeded", name)
	return ""
}

func TestRoleService_ListRolesAndPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roles, err := f.roles.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "admin", roles[0].Name)
	assert.Equal(t, "Administrateur", roles[0].Display)
	assert.True(t, roles[0].IsSystem)

	perms, err := f.roles.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, roles[0].Permissions, len(perms))
}

func TestRoleService_UpdatePermissionsInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.admin)

	before, err := f.roles.PermissionsForRole(ctx, "agent")
	require.NoError(t, err)
	assert.Contains(t, before, "invoices.write")

	role, err := f.roles.UpdateRolePermissions(ctx, actor, f.roleID(t, "agent"), UpdateRolePermissionsRequest{
		Permissions: []string{"invoices.read", "clients.read", "does.not.exist"},
	})
	require.NoError(t, err)
	assert.Len(t, role.Permissions, 2)

	after, err := f.roles.PermissionsForRole(ctx, "agent")
	require.NoError(t, err)
	assert.Equal(t, []string{"clients.read", "invoices.read"}, after)

	_, err = f.roles.UpdateRolePermissions(ctx, actor, f.roleID(t, "admin"), UpdateRolePermissionsRequest{Permissions: []string{}})
	assert.ErrorIs(t, err, billing.ErrConflict)

	unknown, err := f.roles.PermissionsForRole(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}
