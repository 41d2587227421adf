package control

import (
	"context"
	"testing"

	"subsidyledger/internal/access"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	"subsidyledger/pkg/requestcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPauseLifecycle(t *testing.T) {
	authz := access.NewService(access.NewInMemoryRoleStore())
	svc := NewService(NewInMemoryStore(), authz)
	gov := requestcontext.WithCaller(context.Background(), "gov-1", []id.Role{id.RoleGovernment})

	paused, err := svc.IsPaused(context.Background())
	require.NoError(t, err)
	assert.False(t, paused)
	assert.NoError(t, svc.Guard(context.Background()))

	require.NoError(t, svc.Pause(gov))

	paused, err = svc.IsPaused(context.Background())
	require.NoError(t, err)
	assert.True(t, paused)

	err = svc.Guard(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSystemPaused))

	require.NoError(t, svc.Unpause(gov))
	assert.NoError(t, svc.Guard(context.Background()))
}

func TestPauseRequiresGovernment(t *testing.T) {
	authz := access.NewService(access.NewInMemoryRoleStore())
	svc := NewService(NewInMemoryStore(), authz)

	ctx := requestcontext.WithCaller(context.Background(), "op-1", []id.Role{id.RoleOracleOperator})
	err := svc.Pause(ctx)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
