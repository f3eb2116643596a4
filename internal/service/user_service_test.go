package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
	"backoffice/internal/testutil"
)

func TestUserService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens, err := f.users.Login(ctx, LoginRequest{Username: "awa", Password: testutil.Password})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Access)
	assert.Len(t, tokens.Refresh, 64)

	p, err := f.tokens.Parse(tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, principal(f.agent), p)

	_, err = f.users.Login(ctx, LoginRequest{Username: "awa", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Login(ctx, LoginRequest{Username: "nobody", Password: testutil.Password})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	inactive := false
	_, err = f.users.UpdateUser(ctx, principal(f.admin), f.agent.ID.String(), UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.users.Login(ctx, LoginRequest{Username: "awa", Password: testutil.Password})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logs, _, err := f.audits.GetAuditLogs(ctx, AuditListQuery{Action: model.ActionLogin}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestUserService_RefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.users.Login(ctx, LoginRequest{Username: "admin", Password: testutil.Password})
	require.NoError(t, err)

	second, err := f.users.Refresh(ctx, RefreshRequest{Refresh: first.Refresh})
	require.NoError(t, err)
	assert.NotEqual(t, first.Refresh, second.Refresh)

	_, err = f.users.Refresh(ctx, RefreshRequest{Refresh: first.Refresh})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	require.NoError(t, f.users.Logout(ctx, second.Refresh))
	_, err = f.users.Refresh(ctx, RefreshRequest{Refresh: second.Refresh})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestUserService_PurgeExpiredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Login(ctx, LoginRequest{Username: "admin", Password: testutil.Password})
	require.NoError(t, err)

	n, err := f.users.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.infra.Now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
	n, err = f.users.PurgeExpiredTokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUserService_Me(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	me, err := f.users.Me(ctx, principal(f.agent))
	require.NoError(t, err)
	assert.Equal(t, "awa", me.Username)
	assert.Equal(t, "Agent Commercial", me.RoleDisplay)
	assert.Contains(t, me.Permissions, "invoices.write")
	assert.NotContains(t, me.Permissions, "users.read")

	admin, err := f.users.Me(ctx, principal(f.admin))
	require.NoError(t, err)
	assert.Contains(t, admin.Permissions, "roles.manage")
}

func TestUserService_Administration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.admin)

	u, err := f.users.CreateUser(ctx, actor, CreateUserRequest{
		Username:  "moussa",
		FirstName: "Moussa",
		LastName:  "Diop",
		Role:      "agent",
		Password:  "longenough",
	})
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.Equal(t, "Moussa Diop", u.FullName)

	_, err = f.users.CreateUser(ctx, actor, CreateUserRequest{Username: "moussa", Role: "agent", Password: "longenough"})
	assert.ErrorIs(t, err, billing.ErrConflict)
	_, err = f.users.CreateUser(ctx, actor, CreateUserRequest{Username: "fatou", Role: "manager", Password: "longenough"})
	assert.ErrorIs(t, err, billing.ErrValidation)
	_, err = f.users.CreateUser(ctx, actor, CreateUserRequest{Username: "fatou", Role: "agent", Password: "short"})
	assert.ErrorIs(t, err, billing.ErrValidation)

	admin := "admin"
	promoted, err := f.users.UpdateUser(ctx, actor, u.ID, UpdateUserRequest{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, "admin", promoted.Role)

	taken := "awa"
	_, err = f.users.UpdateUser(ctx, actor, u.ID, UpdateUserRequest{Username: &taken})
	assert.ErrorIs(t, err, billing.ErrConflict)

	active := true
	list, total, err := f.users.ListUsers(ctx, UserListQuery{Role: "admin", IsActive: &active}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	require.NoError(t, f.users.DeleteUser(ctx, actor, u.ID))
	_, err = f.users.GetUser(ctx, u.ID)
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))
}

func TestUserService_SelfProtection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := principal(f.admin)
	self := f.admin.ID.String()

	agent := "agent"
	_, err := f.users.UpdateUser(ctx, actor, self, UpdateUserRequest{Role: &agent})
	assert.ErrorIs(t, err, billing.ErrConflict)

	inactive := false
	_, err = f.users.UpdateUser(ctx, actor, self, UpdateUserRequest{IsActive: &inactive})
	assert.ErrorIs(t, err, billing.ErrConflict)

	assert.ErrorIs(t, f.users.DeleteUser(ctx, actor, self), billing.ErrConflict)
}

func TestUserService_ChangePasswords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tokens, err := f.users.Login(ctx, LoginRequest{Username: "awa", Password: testutil.Password})
	require.NoError(t, err)

	err = f.users.ChangeMyPassword(ctx, principal(f.agent), ChangeMyPasswordRequest{OldPassword: "nope", NewPassword: "brand-new-pass"})
	assert.ErrorIs(t, err, billing.ErrValidation)

	require.NoError(t, f.users.ChangeMyPassword(ctx, principal(f.agent), ChangeMyPasswordRequest{
		OldPassword: testutil.Password,
		NewPassword: "brand-new-pass",
	}))
	_, err = f.users.Refresh(ctx, RefreshRequest{Refresh: tokens.Refresh})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = f.users.Login(ctx, LoginRequest{Username: "awa", Password: "brand-new-pass"})
	require.NoError(t, err)

	require.NoError(t, f.users.ChangePassword(ctx, principal(f.admin), f.agent.ID.String(), ChangePasswordRequest{NewPassword: "reset-by-admin"}))
	_, err = f.users.Login(ctx, LoginRequest{Username: "awa", Password: "reset-by-admin"})
	require.NoError(t, err)

	err = f.users.ChangePassword(ctx, principal(f.admin), f.agent.ID.String(), ChangePasswordRequest{NewPassword: "short"})
	assert.ErrorIs(t, err, billing.ErrValidation)
}
