package dispute

import (
	"context"
	"testing"
	"time"

	"subsidyledger/internal/access"
	"subsidyledger/internal/control"
	"subsidyledger/internal/dispute/models"
	"subsidyledger/internal/funds"
	"subsidyledger/internal/ledger"
	ledgermodels "subsidyledger/internal/ledger/models"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	"subsidyledger/pkg/requestcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	disputes *Service
	ledger   *ledger.Service
	pool     *funds.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	authz := access.NewService(access.NewInMemoryRoleStore())
	pool := funds.NewPool(authz)
	ctl := control.NewService(control.NewInMemoryStore(), authz)
	led := ledger.NewService(ledger.NewInMemoryStore(), pool, authz, authz, ctl)
	return &fixture{
		disputes: NewService(NewInMemoryStore(), led, authz, authz),
		ledger:   led,
		pool:     pool,
	}
}

func callerCtx(identity id.Identity, role id.Role, at time.Time) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), identity, []id.Role{role})
	return requestcontext.WithTime(ctx, at)
}

// seed funds the pool, registers one project for farm-1 and returns a
// milestone verified with the given verdict.
func (f *fixture) seed(t *testing.T, actual uint64, success bool) *ledgermodels.Milestone {
	t.Helper()
	gov := callerCtx("gov-1", id.RoleGovernment, t0)
	_, err := f.pool.AddFunds(gov, 10_000)
	require.NoError(t, err)
	p, err := f.ledger.RegisterProject(gov, "farm-1", "Solar Farm", "", 5_000)
	require.NoError(t, err)
	m, err := f.ledger.AddMilestone(gov, p.ID, "install capacity",
		2_000, 100, "sensor-1", t0.Add(24*time.Hour))
	require.NoError(t, err)

	op := callerCtx("op-1", id.RoleOracleOperator, t0.Add(time.Hour))
	got, err := f.ledger.VerifyMilestone(op, m.ID, actual, success)
	require.NoError(t, err)
	return got
}

func TestRaiseDispute_Standing(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, 150, true)

	t.Run("foreign producer has no standing", func(t *testing.T) {
		// farm-2 holds the producer role via its own registration.
		gov := callerCtx("gov-1", id.RoleGovernment, t0)
		_, err := f.ledger.RegisterProject(gov, "farm-2", "Wind Farm", "", 1_000)
		require.NoError(t, err)

		_, err = f.disputes.RaiseDispute(callerCtx("farm-2", id.RoleProducer, t0), m.ID, "not my result")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("owning producer may dispute", func(t *testing.T) {
		d, err := f.disputes.RaiseDispute(callerCtx("farm-1", id.RoleProducer, t0.Add(2*time.Hour)), m.ID, "meter was faulty")
		require.NoError(t, err)
		assert.Equal(t, id.Identity("farm-1"), d.RaisedBy)
		assert.False(t, d.Resolved)

		got, err := f.ledger.GetMilestone(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, ledgermodels.MilestoneStatusDisputed, got.Status)
	})

	t.Run("already disputed cannot be re-disputed", func(t *testing.T) {
		_, err := f.disputes.RaiseDispute(callerCtx("gov-1", id.RoleGovernment, t0), m.ID, "again")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestRaiseDispute_Gates(t *testing.T) {
	f := newFixture(t)
	gov := callerCtx("gov-1", id.RoleGovernment, t0)

	t.Run("pending milestone cannot be disputed", func(t *testing.T) {
		_, err := f.pool.AddFunds(gov, 10_000)
		require.NoError(t, err)
		p, err := f.ledger.RegisterProject(gov, "farm-1", "Solar Farm", "", 5_000)
		require.NoError(t, err)
		m, err := f.ledger.AddMilestone(gov, p.ID, "x", 1_000, 100, "sensor-1", t0.Add(time.Hour))
		require.NoError(t, err)

		_, err = f.disputes.RaiseDispute(gov, m.ID, "premature")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("reason is required", func(t *testing.T) {
		_, err := f.disputes.RaiseDispute(gov, 1, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown milestone is NotFound", func(t *testing.T) {
		_, err := f.disputes.RaiseDispute(gov, 99, "ghost")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("roleless caller rejected", func(t *testing.T) {
		_, err := f.disputes.RaiseDispute(callerCtx("nobody", id.RoleDataProvider, t0), 1, "x")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestResolveDispute_RejectionKeepsFunds(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, 150, true)
	require.True(t, m.Paid)
	disbursedBefore := f.pool.TotalDisbursed(context.Background())

	_, err := f.disputes.RaiseDispute(callerCtx("gov-1", id.RoleGovernment, t0.Add(2*time.Hour)), m.ID, "suspect reading")
	require.NoError(t, err)

	aud := callerCtx("aud-1", id.RoleAuditor, t0.Add(3*time.Hour))
	d, err := f.disputes.ResolveDispute(aud, m.ID, false, "reading confirmed invalid")
	require.NoError(t, err)
	assert.True(t, d.Resolved)
	assert.Equal(t, models.OutcomeRejected, d.Outcome)

	got, err := f.ledger.GetMilestone(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgermodels.MilestoneStatusFailed, got.Status)
	assert.True(t, got.Paid, "no clawback on rejection")
	assert.Equal(t, disbursedBefore, f.pool.TotalDisbursed(context.Background()))
}

func TestResolveDispute_ApprovalPaysUnpaid(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, 50, true) // below target: failed, unpaid
	require.False(t, m.Paid)

	_, err := f.disputes.RaiseDispute(callerCtx("farm-1", id.RoleProducer, t0.Add(2*time.Hour)), m.ID, "meter undercounted")
	require.NoError(t, err)

	aud := callerCtx("aud-1", id.RoleAuditor, t0.Add(3*time.Hour))
	d, err := f.disputes.ResolveDispute(aud, m.ID, true, "recount verified")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApproved, d.Outcome)
	assert.Equal(t, id.Identity("aud-1"), d.ResolvedBy)

	got, err := f.ledger.GetMilestone(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgermodels.MilestoneStatusVerified, got.Status)
	assert.True(t, got.Paid)
}

func TestResolveDispute_ApprovalDoesNotDoublePay(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, 150, true) // verified and paid
	disbursedBefore := f.pool.TotalDisbursed(context.Background())

	_, err := f.disputes.RaiseDispute(callerCtx("gov-1", id.RoleGovernment, t0.Add(2*time.Hour)), m.ID, "spot check")
	require.NoError(t, err)

	aud := callerCtx("aud-1", id.RoleAuditor, t0.Add(3*time.Hour))
	_, err = f.disputes.ResolveDispute(aud, m.ID, true, "verdict stands")
	require.NoError(t, err)

	got, err := f.ledger.GetMilestone(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgermodels.MilestoneStatusVerified, got.Status)
	assert.Equal(t, disbursedBefore, f.pool.TotalDisbursed(context.Background()), "paid milestone pays once")
}

func TestResolveDispute_Gates(t *testing.T) {
	f := newFixture(t)
	m := f.seed(t, 150, true)

	t.Run("undisputed milestone cannot be resolved", func(t *testing.T) {
		aud := callerCtx("aud-1", id.RoleAuditor, t0)
		_, err := f.disputes.ResolveDispute(aud, m.ID, true, "x")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("non-auditor rejected", func(t *testing.T) {
		_, err := f.disputes.RaiseDispute(callerCtx("gov-1", id.RoleGovernment, t0), m.ID, "check")
		require.NoError(t, err)

		_, err = f.disputes.ResolveDispute(callerCtx("gov-1", id.RoleGovernment, t0), m.ID, true, "x")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("record history survives resolution", func(t *testing.T) {
		aud := callerCtx("aud-1", id.RoleAuditor, t0.Add(time.Hour))
		_, err := f.disputes.ResolveDispute(aud, m.ID, true, "verdict stands")
		require.NoError(t, err)

		history, err := f.disputes.MilestoneDisputes(context.Background(), m.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Resolved)
	})
}
