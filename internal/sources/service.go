package sources

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"subsidyledger/internal/access"
	"subsidyledger/internal/sources/models"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	audit "subsidyledger/pkg/platform/audit"
	"subsidyledger/pkg/platform/sentinel"
	"subsidyledger/pkg/requestcontext"
)

// Store is the registry persistence port.
type Store interface {
	Upsert(ctx context.Context, source *models.TrustedSource) error
	Find(ctx context.Context, key id.SourceKey) (*models.TrustedSource, error)
	Execute(ctx context.Context, key id.SourceKey,
		validate func(*models.TrustedSource) error,
		mutate func(*models.TrustedSource)) (*models.TrustedSource, error)
	List(ctx context.Context) ([]*models.TrustedSource, error)
}

// Service manages the trusted-source registry.
type Service struct {
	store  Store
	authz  access.Authorizer
	logger *slog.Logger
	audit  access.AuditPublisher

	// Per-type threshold overrides applied to future admissions. The
	// compiled defaults stay untouched so overrides are inspectable.
	thresholdMu sync.RWMutex
	thresholds  map[models.SourceType]uint8
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub access.AuditPublisher) Option {
	return func(s *Service) { s.audit = pub }
}

func NewService(store Store, authz access.Authorizer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		authz:      authz,
		thresholds: make(map[models.SourceType]uint8),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// AddSource admits a source. Idempotent upsert: re-adding an existing
// key resets trusted=true and the score to the type's current baseline.
func (s *Service) AddSource(ctx context.Context, key id.SourceKey, sourceType models.SourceType) (*models.TrustedSource, error) {
	if err := s.authz.Require(ctx, access.OpAddSource); err != nil {
		return nil, err
	}
	if key.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "source key is required")
	}
	if _, err := models.ParseSourceType(string(sourceType)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid source type")
	}

	source := models.NewTrustedSource(key, sourceType, requestcontext.CallerID(ctx), requestcontext.Now(ctx))
	source.ReliabilityScore = s.thresholdFor(sourceType)

	if err := s.store.Upsert(ctx, source); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store source")
	}
	s.emit(ctx, audit.EventSourceAdded, key, string(sourceType))
	return source, nil
}

// RemoveSource marks the source untrusted and clears type/score. The key
// can be re-added later with a fresh score.
func (s *Service) RemoveSource(ctx context.Context, key id.SourceKey) error {
	if err := s.authz.Require(ctx, access.OpRemoveSource); err != nil {
		return err
	}

	_, err := s.store.Execute(ctx, key,
		func(source *models.TrustedSource) error { return nil },
		func(source *models.TrustedSource) { source.Remove() },
	)
	if err != nil {
		return wrapSourceErr(err)
	}
	s.emit(ctx, audit.EventSourceRemoved, key, "")
	return nil
}

// UpdateTypeThreshold changes the baseline score applied to future
// admissions of the given type. Bounds-checked to 0..100.
func (s *Service) UpdateTypeThreshold(ctx context.Context, sourceType models.SourceType, threshold uint8) error {
	if err := s.authz.Require(ctx, access.OpUpdateReliability); err != nil {
		return err
	}
	if _, err := models.ParseSourceType(string(sourceType)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid source type")
	}
	if threshold > 100 {
		return dErrors.New(dErrors.CodeValidation, "threshold must be between 0 and 100")
	}

	s.thresholdMu.Lock()
	s.thresholds[sourceType] = threshold
	s.thresholdMu.Unlock()
	return nil
}

// UpdateSourceReliability sets a specific source's score, 0..100.
func (s *Service) UpdateSourceReliability(ctx context.Context, key id.SourceKey, score uint8) error {
	if err := s.authz.Require(ctx, access.OpUpdateReliability); err != nil {
		return err
	}
	if score > 100 {
		return dErrors.New(dErrors.CodeValidation, "reliability score must be between 0 and 100")
	}

	_, err := s.store.Execute(ctx, key,
		func(source *models.TrustedSource) error {
			if !source.Trusted {
				return dErrors.New(dErrors.CodeInvalidTransition, "source is not trusted")
			}
			return nil
		},
		func(source *models.TrustedSource) { source.ReliabilityScore = score },
	)
	if err != nil {
		return wrapSourceErr(err)
	}
	return nil
}

// IsTrusted reports whether the key is currently admitted. Unknown keys
// are simply untrusted, not errors: callers gate on the boolean.
func (s *Service) IsTrusted(ctx context.Context, key id.SourceKey) (bool, error) {
	source, err := s.store.Find(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "source lookup")
	}
	return source.Trusted, nil
}

// GetSource returns the registry record for a key.
func (s *Service) GetSource(ctx context.Context, key id.SourceKey) (*models.TrustedSource, error) {
	source, err := s.store.Find(ctx, key)
	if err != nil {
		return nil, wrapSourceErr(err)
	}
	return source, nil
}

// ListSources returns all registry records.
func (s *Service) ListSources(ctx context.Context) ([]*models.TrustedSource, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sources")
	}
	return list, nil
}

func (s *Service) thresholdFor(t models.SourceType) uint8 {
	s.thresholdMu.RLock()
	defer s.thresholdMu.RUnlock()
	if override, ok := s.thresholds[t]; ok {
		return override
	}
	return models.DefaultThreshold(t)
}

func wrapSourceErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "source not found")
	}
	if dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "source store")
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, key id.SourceKey, detail string) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:    action,
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.CallerID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Source:    key,
		Reason:    detail,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "emit audit event", "action", string(action), "error", err)
	}
}
