// Package funds owns the subsidy capital pool: total capital, total
// disbursed, and the invariant available = total - disbursed >= 0.
// Funds are never destroyed; disbursed never decreases.
package funds

import (
	"context"
	"log/slog"
	"sync"

	"subsidyledger/internal/access"
	fundsmetrics "subsidyledger/internal/funds/metrics"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	audit "subsidyledger/pkg/platform/audit"
	"subsidyledger/pkg/requestcontext"
)

// Pool is the process-wide fund state. All mutation goes through its
// mutex; the ledger's payment section additionally serializes callers so
// the check-then-increment in Disburse is never observed half-done.
type Pool struct {
	mu             sync.RWMutex
	totalPool      id.Amount
	totalDisbursed id.Amount

	authz   access.Authorizer
	logger  *slog.Logger
	metrics *fundsmetrics.Metrics
	audit   access.AuditPublisher
}

type Option func(*Pool)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

func WithMetrics(m *fundsmetrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

func WithAuditPublisher(pub access.AuditPublisher) Option {
	return func(p *Pool) { p.audit = pub }
}

func NewPool(authz access.Authorizer, opts ...Option) *Pool {
	p := &Pool{authz: authz}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddFunds increases total capital. Government-only.
func (p *Pool) AddFunds(ctx context.Context, amount id.Amount) (id.Amount, error) {
	if err := p.authz.Require(ctx, access.OpAddFunds); err != nil {
		return 0, err
	}
	if amount.IsZero() {
		return 0, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}

	p.mu.Lock()
	p.totalPool += amount
	newTotal := p.totalPool
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.PoolTotal.Set(float64(newTotal))
		p.metrics.FundsAddedTotal.Inc()
	}
	p.logger.InfoContext(ctx, "funds added",
		"amount", amount.String(), "total_pool", newTotal.String())

	if p.audit != nil {
		event := audit.Event{
			Action:    audit.EventFundsAdded,
			Timestamp: requestcontext.Now(ctx),
			Actor:     requestcontext.CallerID(ctx),
			RequestID: requestcontext.RequestID(ctx),
			Amount:    amount,
			Reason:    "total_pool=" + newTotal.String(),
		}
		if err := p.audit.Emit(ctx, event); err != nil {
			p.logger.ErrorContext(ctx, "emit audit event", "action", "funds_added", "error", err)
		}
	}
	return newTotal, nil
}

// Available returns totalPool - totalDisbursed.
func (p *Pool) Available(_ context.Context) id.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalPool - p.totalDisbursed
}

// TotalPool returns the total capital ever added.
func (p *Pool) TotalPool(_ context.Context) id.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalPool
}

// TotalDisbursed returns the total ever paid out. Monotonic.
func (p *Pool) TotalDisbursed(_ context.Context) id.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalDisbursed
}

// Disburse atomically reserves amount from the available balance.
// Internal primitive: only the ledger's payment section calls it, inside
// its serialized critical section, so a successful return and the
// milestone's paid flag commit as one observable unit.
func (p *Pool) Disburse(ctx context.Context, amount id.Amount) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount > p.totalPool-p.totalDisbursed {
		return dErrors.Newf(dErrors.CodeInsufficientFunds,
			"pool has %s available, need %s", (p.totalPool - p.totalDisbursed).String(), amount.String())
	}
	p.totalDisbursed += amount

	if p.metrics != nil {
		p.metrics.PoolDisbursed.Set(float64(p.totalDisbursed))
		p.metrics.DisbursementsTotal.Inc()
	}
	return nil
}
