// Package sweeper periodically inspects pending milestones whose
// deadline has passed. By default it only observes: expired milestones
// stay pending and the count is logged and exported, so operators see
// the backlog without the system rewriting history on a timer. Failing
// them automatically is opt-in.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	dErrors "subsidyledger/pkg/domain-errors"
)

// Ledger is the sweep surface. Satisfied by *ledger.Service.
type Ledger interface {
	CountExpiredPending(ctx context.Context) (int, error)
	SweepExpired(ctx context.Context) (int, error)
}

type Sweeper struct {
	cron          *cron.Cron
	ledger        Ledger
	schedule      string
	sweepToFailed bool
	logger        *slog.Logger
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithSweepToFailed enables the destructive mode: expired pending
// milestones are moved to failed on each tick.
func WithSweepToFailed() Option {
	return func(s *Sweeper) { s.sweepToFailed = true }
}

func New(ledger Ledger, schedule string, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(),
		ledger:   ledger,
		schedule: schedule,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid sweep schedule")
	}
	return s, nil
}

// Start begins scheduled sweeps. Non-blocking.
func (s *Sweeper) Start() {
	s.logger.Info("deadline sweeper started",
		"schedule", s.schedule, "sweep_to_failed", s.sweepToFailed)
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight tick to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) tick() {
	s.Run(context.Background())
}

// Run executes one sweep pass.
func (s *Sweeper) Run(ctx context.Context) {
	if s.sweepToFailed {
		swept, err := s.ledger.SweepExpired(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "deadline sweep failed", "error", err)
			return
		}
		if swept > 0 {
			s.logger.InfoContext(ctx, "expired milestones failed by sweep", "count", swept)
		}
		return
	}

	count, err := s.ledger.CountExpiredPending(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "deadline scan failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.WarnContext(ctx, "pending milestones past deadline", "count", count)
	}
}
