// Package control holds the global pause flag. While paused, new data
// submissions and project registrations are rejected with SystemPaused;
// queries and verification of already-submitted work continue.
package control

import (
	"context"
	"log/slog"

	"subsidyledger/internal/access"
	dErrors "subsidyledger/pkg/domain-errors"
	audit "subsidyledger/pkg/platform/audit"
	"subsidyledger/pkg/requestcontext"
)

// Store persists the pause flag.
type Store interface {
	SetPaused(ctx context.Context, paused bool) error
	Paused(ctx context.Context) (bool, error)
}

type Service struct {
	store  Store
	authz  access.Authorizer
	logger *slog.Logger
	audit  access.AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub access.AuditPublisher) Option {
	return func(s *Service) { s.audit = pub }
}

func NewService(store Store, authz access.Authorizer, opts ...Option) *Service {
	s := &Service{store: store, authz: authz}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Pause halts new submissions and registrations. Government-only.
func (s *Service) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true, audit.EventSystemPaused)
}

// Unpause lifts the halt. Government-only.
func (s *Service) Unpause(ctx context.Context) error {
	return s.setPaused(ctx, false, audit.EventSystemUnpaused)
}

// IsPaused reports the flag. Pure query, no authorization.
func (s *Service) IsPaused(ctx context.Context) (bool, error) {
	paused, err := s.store.Paused(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "read pause flag")
	}
	return paused, nil
}

// Guard fails with SystemPaused when the system is halted. Mutating
// operations that the pause covers call this before any state write.
func (s *Service) Guard(ctx context.Context) error {
	paused, err := s.IsPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return dErrors.New(dErrors.CodeSystemPaused, "system is paused")
	}
	return nil
}

func (s *Service) setPaused(ctx context.Context, paused bool, action audit.AuditEvent) error {
	if err := s.authz.Require(ctx, access.OpPause); err != nil {
		return err
	}
	if err := s.store.SetPaused(ctx, paused); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set pause flag")
	}

	s.logger.InfoContext(ctx, "pause flag changed", "paused", paused)
	if s.audit != nil {
		event := audit.Event{
			Action:    action,
			Timestamp: requestcontext.Now(ctx),
			Actor:     requestcontext.CallerID(ctx),
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := s.audit.Emit(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "emit audit event", "action", string(action), "error", err)
		}
	}
	return nil
}
