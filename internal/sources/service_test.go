package sources

import (
	"context"
	"testing"

	"subsidyledger/internal/access"
	"subsidyledger/internal/sources/models"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	"subsidyledger/pkg/requestcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operatorCtx() context.Context {
	return requestcontext.WithCaller(context.Background(), "op-1", []id.Role{id.RoleOracleOperator})
}

func newTestService() *Service {
	authz := access.NewService(access.NewInMemoryRoleStore())
	return NewService(NewInMemoryStore(), authz)
}

func TestAddSource(t *testing.T) {
	svc := newTestService()

	t.Run("admits with type default score", func(t *testing.T) {
		source, err := svc.AddSource(operatorCtx(), "sensor-1", models.SourceTypeIoTDevice)
		require.NoError(t, err)
		assert.True(t, source.Trusted)
		assert.Equal(t, uint8(85), source.ReliabilityScore)

		trusted, err := svc.IsTrusted(context.Background(), "sensor-1")
		require.NoError(t, err)
		assert.True(t, trusted)
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		_, err := svc.AddSource(operatorCtx(), "sensor-1", models.SourceTypeIoTDevice)
		require.NoError(t, err)
	})

	t.Run("rejects non-operator", func(t *testing.T) {
		ctx := requestcontext.WithCaller(context.Background(), "mallory", nil)
		_, err := svc.AddSource(ctx, "sensor-2", models.SourceTypeIoTDevice)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := svc.AddSource(operatorCtx(), "sensor-3", models.SourceType("satellite"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestRemoveAndReAddSource(t *testing.T) {
	svc := newTestService()
	ctx := operatorCtx()

	_, err := svc.AddSource(ctx, "db-1", models.SourceTypeGovernmentDB)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveSource(ctx, "db-1"))

	trusted, err := svc.IsTrusted(context.Background(), "db-1")
	require.NoError(t, err)
	assert.False(t, trusted)

	source, err := svc.GetSource(context.Background(), "db-1")
	require.NoError(t, err)
	assert.Empty(t, source.Type, "removal clears the type")
	assert.Zero(t, source.ReliabilityScore, "removal clears the score")

	// Re-adding restores trust with a fresh default score.
	source, err = svc.AddSource(ctx, "db-1", models.SourceTypeGovernmentDB)
	require.NoError(t, err)
	assert.True(t, source.Trusted)
	assert.Equal(t, uint8(95), source.ReliabilityScore)
}

func TestThresholds(t *testing.T) {
	svc := newTestService()
	ctx := operatorCtx()

	t.Run("type override applies to future admissions", func(t *testing.T) {
		require.NoError(t, svc.UpdateTypeThreshold(ctx, models.SourceTypeManual, 60))
		source, err := svc.AddSource(ctx, "clipboard-1", models.SourceTypeManual)
		require.NoError(t, err)
		assert.Equal(t, uint8(60), source.ReliabilityScore)
	})

	t.Run("per-source update is bounds checked", func(t *testing.T) {
		err := svc.UpdateSourceReliability(ctx, "clipboard-1", 101)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		require.NoError(t, svc.UpdateSourceReliability(ctx, "clipboard-1", 70))
		source, err := svc.GetSource(context.Background(), "clipboard-1")
		require.NoError(t, err)
		assert.Equal(t, uint8(70), source.ReliabilityScore)
	})

	t.Run("updating unknown source is NotFound", func(t *testing.T) {
		err := svc.UpdateSourceReliability(ctx, "ghost", 50)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("updating removed source is rejected", func(t *testing.T) {
		_, err := svc.AddSource(ctx, "tmp-1", models.SourceTypeManual)
		require.NoError(t, err)
		require.NoError(t, svc.RemoveSource(ctx, "tmp-1"))

		err = svc.UpdateSourceReliability(ctx, "tmp-1", 50)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestIsTrusted_UnknownKey(t *testing.T) {
	svc := newTestService()
	trusted, err := svc.IsTrusted(context.Background(), "never-added")
	require.NoError(t, err)
	assert.False(t, trusted)
}
