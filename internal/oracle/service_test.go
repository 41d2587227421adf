package oracle

import (
	"context"
	"testing"
	"time"

	"subsidyledger/internal/access"
	"subsidyledger/internal/control"
	"subsidyledger/internal/oracle/models"
	"subsidyledger/internal/sources"
	srcmodels "subsidyledger/internal/sources/models"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	"subsidyledger/pkg/requestcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	oracle  *Service
	sources *sources.Service
	control *control.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	authz := access.NewService(access.NewInMemoryRoleStore())
	src := sources.NewService(sources.NewInMemoryStore(), authz)
	ctl := control.NewService(control.NewInMemoryStore(), authz)
	return &fixture{
		oracle:  NewService(NewInMemoryStore(), src, ctl, authz),
		sources: src,
		control: ctl,
	}
}

func providerCtx(at time.Time) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), "dp-1", []id.Role{id.RoleDataProvider})
	return requestcontext.WithTime(ctx, at)
}

func operatorCtx() context.Context {
	return requestcontext.WithCaller(context.Background(), "op-1", []id.Role{id.RoleOracleOperator})
}

func TestSubmitData(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("rejects untrusted source", func(t *testing.T) {
		_, err := f.oracle.SubmitData(providerCtx(now), "sensor-1", 1200, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUntrustedSource))
	})

	t.Run("accepts after admission, identical payload included", func(t *testing.T) {
		_, err := f.sources.AddSource(operatorCtx(), "sensor-1", srcmodels.SourceTypeIoTDevice)
		require.NoError(t, err)

		dp, err := f.oracle.SubmitData(providerCtx(now), "sensor-1", 1200, "")
		require.NoError(t, err)
		assert.False(t, dp.Verified)
		assert.Equal(t, srcmodels.SourceTypeIoTDevice, dp.SourceType)

		// Identical payload resubmitted maps to the same record.
		dp2, err := f.oracle.SubmitData(providerCtx(now), "sensor-1", 1200, "")
		require.NoError(t, err)
		assert.Equal(t, dp.ID, dp2.ID)

		history, err := f.oracle.SourceHistory(context.Background(), "sensor-1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("rejects while paused", func(t *testing.T) {
		gov := requestcontext.WithCaller(context.Background(), "gov-1", []id.Role{id.RoleGovernment})
		require.NoError(t, f.control.Pause(gov))
		defer func() { require.NoError(t, f.control.Unpause(gov)) }()

		_, err := f.oracle.SubmitData(providerCtx(now.Add(time.Minute)), "sensor-1", 900, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSystemPaused))
	})

	t.Run("rejects caller without provider role", func(t *testing.T) {
		_, err := f.oracle.SubmitData(operatorCtx(), "sensor-1", 900, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestVerifyData(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := f.sources.AddSource(operatorCtx(), "sensor-1", srcmodels.SourceTypeIoTDevice)
	require.NoError(t, err)
	dp, err := f.oracle.SubmitData(providerCtx(now), "sensor-1", 1200, "")
	require.NoError(t, err)

	t.Run("unknown id is NotFound", func(t *testing.T) {
		_, err := f.oracle.VerifyData(operatorCtx(), "no-such-id", true)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("records verdict and verifier", func(t *testing.T) {
		got, err := f.oracle.VerifyData(operatorCtx(), dp.ID, true)
		require.NoError(t, err)
		assert.True(t, got.Verified)
		assert.Equal(t, id.Identity("op-1"), got.VerifiedBy)
	})

	t.Run("re-invocation overwrites, last writer wins", func(t *testing.T) {
		got, err := f.oracle.VerifyData(operatorCtx(), dp.ID, false)
		require.NoError(t, err)
		assert.False(t, got.Verified)

		got, err = f.oracle.VerifyData(operatorCtx(), dp.ID, true)
		require.NoError(t, err)
		assert.True(t, got.Verified)
	})
}

func TestQueryVerifiedData(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.sources.AddSource(operatorCtx(), "sensor-1", srcmodels.SourceTypeIoTDevice)
	require.NoError(t, err)

	// Five readings an hour apart; verify all but the third.
	var ids []id.DataPointID
	for i := 0; i < 5; i++ {
		dp, err := f.oracle.SubmitData(providerCtx(base.Add(time.Duration(i)*time.Hour)), "sensor-1", uint64(100*(i+1)), "")
		require.NoError(t, err)
		ids = append(ids, dp.ID)
		if i != 2 {
			_, err = f.oracle.VerifyData(operatorCtx(), dp.ID, true)
			require.NoError(t, err)
		}
	}

	t.Run("window is inclusive and ordered by submission", func(t *testing.T) {
		got, err := f.oracle.QueryVerifiedData(context.Background(), "sensor-1", base, base.Add(4*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 4, "unverified reading excluded")
		assert.Equal(t, ids[0], got[0].ID)
		assert.Equal(t, ids[4], got[3].ID)
	})

	t.Run("narrow window clips by timestamp", func(t *testing.T) {
		got, err := f.oracle.QueryVerifiedData(context.Background(), "sensor-1", base.Add(time.Hour), base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, uint64(200), got[0].Value)
	})

	t.Run("aggregate sums verified values", func(t *testing.T) {
		agg, err := f.oracle.AggregateVerified(context.Background(), "sensor-1", base, base.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 4, agg.Count)
		assert.Equal(t, uint64(100+200+400+500), agg.Sum)
	})
}

func TestDeriveID_Deterministic(t *testing.T) {
	ts := time.Now()
	a := models.DeriveID("s", 10, ts, "alice")
	b := models.DeriveID("s", 10, ts, "alice")
	c := models.DeriveID("s", 11, ts, "alice")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
