package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/auth"
	"backoffice/internal/billing"
	"backoffice/internal/model"
)

func TestAuditService_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.clients.CreateClient(ctx, principal(f.admin), ClientRequest{Name: "Senbus"})
	require.NoError(t, err)
	f.draftInvoice(t)
	require.NoError(t, f.infra.audit(ctx, auth.Principal{}, model.ActionUpdateClient, "x", "cron", map[string]int{"n": 1}))

	all, total, err := f.audits.GetAuditLogs(ctx, AuditListQuery{}, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	byUser, total, err := f.audits.GetAuditLogs(ctx, AuditListQuery{UserID: f.admin.ID.String()}, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.ActionCreateClient, byUser[0].Action)
	assert.Equal(t, "Senbus", byUser[0].EntityName)

	system, _, err := f.audits.GetAuditLogs(ctx, AuditListQuery{Action: model.ActionUpdateClient}, 1, 50)
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "System", system[0].Username)
	assert.Empty(t, system[0].UserID)
	assert.JSONEq(t, `{"n":1}`, string(system[0].Details))

	_, _, err = f.audits.GetAuditLogs(ctx, AuditListQuery{UserID: "me"}, 1, 50)
	assert.ErrorIs(t, err, billing.ErrValidation)
}
