// Package oracle is the data verification ledger: it records readings
// submitted for trusted sources and their verification verdicts, and
// serves the time-range queries milestone verification cross-checks
// against.
package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"subsidyledger/internal/access"
	"subsidyledger/internal/oracle/models"
	srcmodels "subsidyledger/internal/sources/models"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	audit "subsidyledger/pkg/platform/audit"
	"subsidyledger/pkg/platform/sentinel"
	"subsidyledger/pkg/requestcontext"
)

// TrustChecker is the slice of the source registry the oracle needs.
// Satisfied by *sources.Service.
type TrustChecker interface {
	IsTrusted(ctx context.Context, key id.SourceKey) (bool, error)
	GetSource(ctx context.Context, key id.SourceKey) (*srcmodels.TrustedSource, error)
}

// PauseGuard rejects submissions while the system is halted.
type PauseGuard interface {
	Guard(ctx context.Context) error
}

// Aggregate is the reduction over verified data in a window: a simple
// sum and count. Callers needing weighted trust combine this with the
// registry's reliability scores themselves.
type Aggregate struct {
	Sum   uint64
	Count int
}

type Service struct {
	store  Store
	trust  TrustChecker
	pause  PauseGuard
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

func NewService(store Store, trust TrustChecker, pause PauseGuard, authz access.Authorizer, opts ...Option) *Service {
	s := &Service{store: store, trust: trust, pause: pause, authz: authz}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SubmitData records a reading for a trusted source. The ID is derived
// from content, so resubmitting the identical observation is idempotent.
func (s *Service) SubmitData(ctx context.Context, source id.SourceKey, value uint64, metadata string) (*models.DataPoint, error) {
	if err := s.authz.Require(ctx, access.OpSubmitData); err != nil {
		return nil, err
	}
	if err := s.pause.Guard(ctx); err != nil {
		return nil, err
	}
	if source.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "source key is required")
	}

	trusted, err := s.trust.IsTrusted(ctx, source)
	if err != nil {
		return nil, err
	}
	if !trusted {
		return nil, dErrors.Newf(dErrors.CodeUntrustedSource, "source %s is not trusted", source)
	}

	record, err := s.trust.GetSource(ctx, source)
	if err != nil {
		return nil, err
	}

	dp := models.NewDataPoint(source, record.Type, value,
		requestcontext.Now(ctx), requestcontext.CallerID(ctx), metadata)
	if err := s.store.Put(ctx, dp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store data point")
	}

	s.emit(ctx, audit.EventDataSubmitted, dp, "")
	return dp, nil
}

// VerifyData records the verdict for a data point. Re-invocation
// overwrites: last writer wins, the external audit trail keeps history.
func (s *Service) VerifyData(ctx context.Context, dataID id.DataPointID, verified bool) (*models.DataPoint, error) {
	if err := s.authz.Require(ctx, access.OpVerifyData); err != nil {
		return nil, err
	}

	dp, err := s.store.SetVerified(ctx, dataID, verified, requestcontext.CallerID(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "data point not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "set verification")
	}

	decision := "rejected"
	if verified {
		decision = "verified"
	}
	s.emit(ctx, audit.EventDataVerified, dp, decision)
	return dp, nil
}

// GetDataPoint returns a single reading.
func (s *Service) GetDataPoint(ctx context.Context, dataID id.DataPointID) (*models.DataPoint, error) {
	dp, err := s.store.Get(ctx, dataID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "data point not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get data point")
	}
	return dp, nil
}

// QueryVerifiedData returns verified readings for the source with
// timestamps in [from, to] inclusive, in original submission order.
func (s *Service) QueryVerifiedData(ctx context.Context, source id.SourceKey, from, to time.Time) ([]*models.DataPoint, error) {
	points, err := s.store.QueryBySource(ctx, source)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query data points")
	}

	var out []*models.DataPoint
	for _, dp := range points {
		if !dp.Verified {
			continue
		}
		if dp.Timestamp.Before(from) || dp.Timestamp.After(to) {
			continue
		}
		out = append(out, dp)
	}
	return out, nil
}

// AggregateVerified sums verified values in the window.
func (s *Service) AggregateVerified(ctx context.Context, source id.SourceKey, from, to time.Time) (Aggregate, error) {
	points, err := s.QueryVerifiedData(ctx, source, from, to)
	if err != nil {
		return Aggregate{}, err
	}

	var agg Aggregate
	for _, dp := range points {
		agg.Sum += dp.Value
		agg.Count++
	}
	return agg, nil
}

// SourceHistory returns all data point IDs ever submitted for a source,
// in submission order.
func (s *Service) SourceHistory(ctx context.Context, source id.SourceKey) ([]id.DataPointID, error) {
	history, err := s.store.History(ctx, source)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "source history")
	}
	return history, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, dp *models.DataPoint, decision string) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:    action,
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.CallerID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Source:    dp.Source,
		DataID:    dp.ID,
		Decision:  decision,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "emit audit event", "action", string(action), "error", err)
	}
}
