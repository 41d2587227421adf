// Package ledger owns the project and milestone state machines and the
// payment protocol that ties verification verdicts to fund
// disbursement. All mutating operations serialize on a single writer
// lock: the interleavings worth reasoning about are between whole
// operations, never inside one.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subsidyledger/internal/access"
	ledgermetrics "subsidyledger/internal/ledger/metrics"
	"subsidyledger/internal/ledger/models"
	"subsidyledger/internal/oracle"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	audit "subsidyledger/pkg/platform/audit"
	"subsidyledger/pkg/platform/sentinel"
	"subsidyledger/pkg/requestcontext"
)

// FundPool is the slice of the capital pool the ledger needs. Satisfied
// by *funds.Pool.
type FundPool interface {
	Available(ctx context.Context) id.Amount
	Disburse(ctx context.Context, amount id.Amount) error
}

// ProducerAdmitter grants the producer role on first registration.
// Satisfied by *access.Service.
type ProducerAdmitter interface {
	GrantProducer(ctx context.Context, identity id.Identity) error
}

// PauseGuard rejects registrations while the system is halted.
type PauseGuard interface {
	Guard(ctx context.Context) error
}

// OracleReader is the verified-data aggregation surface used when a
// milestone is verified against oracle readings instead of a manual
// attestation. Satisfied by *oracle.Service.
type OracleReader interface {
	AggregateVerified(ctx context.Context, source id.SourceKey, from, to time.Time) (oracle.Aggregate, error)
}

type Service struct {
	// mu is the ledger's single writer lock. Every mutating operation,
	// including the dispute paths, holds it end to end so that
	// verification, payment and project bookkeeping commit as one
	// observable unit.
	mu sync.Mutex

	store   Store
	pool    FundPool
	authz   access.Authorizer
	admit   ProducerAdmitter
	pause   PauseGuard
	oracle  OracleReader
	logger  *slog.Logger
	metrics *ledgermetrics.Metrics
	audit   access.AuditPublisher
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(pub access.AuditPublisher) Option {
	return func(s *Service) { s.audit = pub }
}

func WithOracle(reader OracleReader) Option {
	return func(s *Service) { s.oracle = reader }
}

func NewService(store Store, pool FundPool, authz access.Authorizer, admit ProducerAdmitter, pause PauseGuard, opts ...Option) *Service {
	s := &Service{
		store:  store,
		pool:   pool,
		authz:  authz,
		admit:  admit,
		pause:  pause,
		tracer: otel.Tracer("subsidyledger/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RegisterProject admits a new project. All validation, including the
// fund availability check, runs before the store allocates an ID: a
// rejected registration leaves no gap in the sequence. The producer is
// granted their role implicitly as part of admission.
func (s *Service) RegisterProject(ctx context.Context, producer id.Identity, name, description string, total id.Amount) (*models.Project, error) {
	if err := s.authz.Require(ctx, access.OpRegisterProject); err != nil {
		return nil, err
	}
	if err := s.pause.Guard(ctx); err != nil {
		return nil, err
	}

	p, err := models.NewProject(producer, name, description, total, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if available := s.pool.Available(ctx); total > available {
		return nil, dErrors.Newf(dErrors.CodeInsufficientFunds,
			"pool has %s available, project requests %s", available.String(), total.String())
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create project")
	}
	if err := s.admit.GrantProducer(ctx, producer); err != nil {
		s.logger.ErrorContext(ctx, "implicit producer grant failed",
			"project_id", p.ID.String(), "producer", producer.String(), "error", err)
	}

	if s.metrics != nil {
		s.metrics.ProjectsRegistered.Inc()
	}
	s.logger.InfoContext(ctx, "project registered",
		"project_id", p.ID.String(), "producer", producer.String(), "total_subsidy", total.String())
	s.emit(ctx, audit.Event{
		Action:    audit.EventProjectRegistered,
		ProjectID: p.ID,
		Amount:    total,
		Reason:    name,
	})
	return p, nil
}

// AddMilestone attaches a milestone to a pending or active project. The
// first milestone promotes a pending project to active.
func (s *Service) AddMilestone(ctx context.Context, projectID id.ProjectID, description string, subsidy id.Amount, target uint64, source id.SourceKey, deadline time.Time) (*models.Milestone, error) {
	if err := s.authz.Require(ctx, access.OpAddMilestone); err != nil {
		return nil, err
	}
	if err := s.pause.Guard(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	m, err := models.NewMilestone(projectID, description, subsidy, target, source, deadline, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := p.CanAddMilestone(subsidy); err != nil {
		return nil, err
	}

	if err := s.store.CreateMilestone(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create milestone")
	}
	promoted := p.ApplyMilestoneAdded(m.ID)
	if err := s.store.SaveProject(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save project")
	}

	if s.metrics != nil {
		s.metrics.MilestonesAdded.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:      audit.EventMilestoneAdded,
		ProjectID:   projectID,
		MilestoneID: m.ID,
		Amount:      subsidy,
	})
	if promoted {
		s.emit(ctx, audit.Event{
			Action:    audit.EventProjectStatusChanged,
			ProjectID: projectID,
			Decision:  string(models.ProjectStatusActive),
			Reason:    "first milestone added",
		})
	}
	return m, nil
}

// VerifyMilestone records a verification verdict and, on success,
// attempts payment in the same critical section. The verdict always
// commits; a payment failure surfaces as the returned error while the
// milestone stays verified and unpaid, recoverable via RetryPayment.
func (s *Service) VerifyMilestone(ctx context.Context, milestoneID id.MilestoneID, actual uint64, success bool) (*models.Milestone, error) {
	if err := s.authz.Require(ctx, access.OpVerifyMilestone); err != nil {
		return nil, err
	}
	if err := s.pause.Guard(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyLocked(ctx, milestoneID, actual, success)
}

// VerifyMilestoneFromOracle verifies against the sum of verified oracle
// readings for the milestone's registered source over [from, to]. No
// readings in the window count as a measured value of zero, which fails
// any positive target.
func (s *Service) VerifyMilestoneFromOracle(ctx context.Context, milestoneID id.MilestoneID, from, to time.Time) (*models.Milestone, error) {
	if err := s.authz.Require(ctx, access.OpVerifyMilestone); err != nil {
		return nil, err
	}
	if err := s.pause.Guard(ctx); err != nil {
		return nil, err
	}
	if s.oracle == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "oracle reader not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.findMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	agg, err := s.oracle.AggregateVerified(ctx, m.VerificationSource, from, to)
	if err != nil {
		return nil, err
	}
	return s.verifyLocked(ctx, milestoneID, agg.Sum, true)
}

func (s *Service) verifyLocked(ctx context.Context, milestoneID id.MilestoneID, actual uint64, success bool) (*models.Milestone, error) {
	m, err := s.findMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if err := m.CanVerify(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	status := m.ApplyVerification(actual, success, requestcontext.CallerID(ctx), requestcontext.Now(ctx))
	if err := s.store.SaveMilestone(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save milestone")
	}

	if s.metrics != nil {
		s.metrics.MilestonesVerified.WithLabelValues(string(status)).Inc()
	}
	action := audit.EventMilestoneVerified
	if status == models.MilestoneStatusFailed {
		action = audit.EventMilestoneFailed
	}
	s.emit(ctx, audit.Event{
		Action:      action,
		ProjectID:   m.ProjectID,
		MilestoneID: m.ID,
		Decision:    string(status),
	})
	s.logger.InfoContext(ctx, "milestone verdict recorded",
		"milestone_id", m.ID.String(), "project_id", m.ProjectID.String(),
		"status", string(status), "actual", actual, "target", m.TargetValue)

	if status != models.MilestoneStatusVerified {
		return m, nil
	}
	if err := s.payLocked(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// RetryPayment re-runs the payment step for a verified, unpaid
// milestone. This is the recovery path after an InsufficientFunds
// verification outcome.
func (s *Service) RetryPayment(ctx context.Context, milestoneID id.MilestoneID) (*models.Milestone, error) {
	if err := s.authz.Require(ctx, access.OpRetryPayment); err != nil {
		return nil, err
	}
	if err := s.pause.Guard(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.findMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MilestoneStatusVerified {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
			"milestone %s is %s, only verified milestones are payable", m.ID, m.Status)
	}
	if m.Paid {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
			"milestone %s is already paid", m.ID)
	}
	if err := s.payLocked(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// payLocked runs the payment protocol for a verified milestone. Caller
// holds s.mu. All guards run before any state changes; once Disburse
// succeeds the remaining writes cannot fail validation, so the pool
// decrement, the paid flag and the project's disbursed total move
// together.
func (s *Service) payLocked(ctx context.Context, m *models.Milestone) error {
	ctx, span := s.tracer.Start(ctx, "ledger.payment", trace.WithAttributes(
		attribute.String("project_id", m.ProjectID.String()),
		attribute.String("milestone_id", m.ID.String()),
		attribute.Int64("amount", int64(m.SubsidyAmount)),
	))
	defer span.End()

	fail := func(reason string, err error) error {
		span.RecordError(err)
		if s.metrics != nil {
			s.metrics.PaymentsFailed.WithLabelValues(reason).Inc()
		}
		s.logger.WarnContext(ctx, "payment failed",
			"milestone_id", m.ID.String(), "project_id", m.ProjectID.String(),
			"reason", reason, "error", err)
		return err
	}

	p, err := s.findProject(ctx, m.ProjectID)
	if err != nil {
		return fail("project_lookup", err)
	}
	if p.Status != models.ProjectStatusActive {
		return fail("project_not_active", dErrors.Newf(dErrors.CodeInvalidTransition,
			"project %s is %s, payments require an active project", p.ID, p.Status))
	}
	if m.Paid {
		return fail("already_paid", dErrors.Newf(dErrors.CodeInvariantViolation,
			"milestone %s is already paid", m.ID))
	}
	if p.DisbursedAmount+m.SubsidyAmount > p.TotalSubsidy {
		return fail("budget_exceeded", dErrors.Newf(dErrors.CodeInvariantViolation,
			"payment of %s would exceed project %s budget", m.SubsidyAmount.String(), p.ID))
	}
	if err := s.pool.Disburse(ctx, m.SubsidyAmount); err != nil {
		return fail("insufficient_funds", err)
	}

	if err := m.MarkPaid(); err != nil {
		return fail("mark_paid", err)
	}
	p.ApplyPayment(m.SubsidyAmount)
	if err := s.store.SaveMilestone(ctx, m); err != nil {
		return fail("save_milestone", dErrors.Wrap(err, dErrors.CodeInternal, "save milestone"))
	}
	if err := s.store.SaveProject(ctx, p); err != nil {
		return fail("save_project", dErrors.Wrap(err, dErrors.CodeInternal, "save project"))
	}

	s.emit(ctx, audit.Event{
		Action:      audit.EventSubsidyDisbursed,
		ProjectID:   p.ID,
		MilestoneID: m.ID,
		Amount:      m.SubsidyAmount,
	})
	s.logger.InfoContext(ctx, "subsidy disbursed",
		"milestone_id", m.ID.String(), "project_id", p.ID.String(),
		"amount", m.SubsidyAmount.String(), "project_disbursed", p.DisbursedAmount.String())

	s.completeIfSettled(ctx, p)
	return nil
}

// completeIfSettled promotes an active project to completed once every
// milestone is verified and paid. Caller holds s.mu.
func (s *Service) completeIfSettled(ctx context.Context, p *models.Project) {
	if p.Status != models.ProjectStatusActive || len(p.MilestoneIDs) == 0 {
		return
	}
	milestones, err := s.store.FindProjectMilestones(ctx, p.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "completion check failed",
			"project_id", p.ID.String(), "error", err)
		return
	}
	for _, m := range milestones {
		if !m.Settled() {
			return
		}
	}

	p.ApplyStatusOverride(models.ProjectStatusCompleted)
	if err := s.store.SaveProject(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "save completed project",
			"project_id", p.ID.String(), "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ProjectsCompleted.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:    audit.EventProjectStatusChanged,
		ProjectID: p.ID,
		Decision:  string(models.ProjectStatusCompleted),
		Reason:    "all milestones settled",
	})
}

// UpdateProjectStatus is the Government override: any known status is
// reachable from any current status. Automatic transitions still apply
// afterwards, so overriding a fully settled project back to active will
// not re-complete it until the next payment runs.
func (s *Service) UpdateProjectStatus(ctx context.Context, projectID id.ProjectID, status models.ProjectStatus) (*models.Project, error) {
	if err := s.authz.Require(ctx, access.OpUpdateProjectStatus); err != nil {
		return nil, err
	}
	if _, err := models.ParseProjectStatus(string(status)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	previous := p.Status
	p.ApplyStatusOverride(status)
	if err := s.store.SaveProject(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save project")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.EventProjectStatusChanged,
		ProjectID: projectID,
		Decision:  string(status),
		Reason:    "override from " + string(previous),
	})
	return p, nil
}

// MarkDisputed freezes a settled verdict pending resolution. Role and
// standing checks are the dispute service's job; this applies the
// transition under the writer lock.
func (s *Service) MarkDisputed(ctx context.Context, milestoneID id.MilestoneID) (*models.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.findMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if err := m.CanDispute(); err != nil {
		return nil, err
	}
	m.ApplyDispute()
	if err := s.store.SaveMilestone(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save milestone")
	}
	return m, nil
}

// ResolveDisputed settles a dispute. Approval restores the verified
// verdict and pays if the milestone was never paid; rejection fails the
// milestone. Funds already paid stay paid in either direction.
func (s *Service) ResolveDisputed(ctx context.Context, milestoneID id.MilestoneID, approve bool) (*models.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.findMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if err := m.CanResolve(); err != nil {
		return nil, err
	}

	status := m.ApplyResolution(approve, requestcontext.CallerID(ctx), requestcontext.Now(ctx))
	if err := s.store.SaveMilestone(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save milestone")
	}

	if status == models.MilestoneStatusVerified && !m.Paid {
		if err := s.payLocked(ctx, m); err != nil {
			return m, err
		}
	}
	return m, nil
}

// SweepExpired fails every pending milestone whose deadline has passed.
// Invoked by the scheduler when sweeping is enabled; returns how many
// milestones it moved.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	expired, err := s.store.ListExpiredPending(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list expired milestones")
	}

	swept := 0
	for _, m := range expired {
		m.ApplyExpiry(now)
		if err := s.store.SaveMilestone(ctx, m); err != nil {
			return swept, dErrors.Wrap(err, dErrors.CodeInternal, "save milestone")
		}
		swept++
		if s.metrics != nil {
			s.metrics.MilestonesVerified.WithLabelValues(string(models.MilestoneStatusFailed)).Inc()
		}
		s.emit(ctx, audit.Event{
			Action:      audit.EventMilestoneFailed,
			ProjectID:   m.ProjectID,
			MilestoneID: m.ID,
			Decision:    string(models.MilestoneStatusFailed),
			Reason:      "deadline expired",
		})
	}
	return swept, nil
}

// CountExpiredPending reports how many pending milestones have passed
// their deadline, without moving any. The scheduler's observe-only mode.
func (s *Service) CountExpiredPending(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredPending(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list expired milestones")
	}
	if s.metrics != nil {
		s.metrics.ExpiredPendingCount.Set(float64(len(expired)))
	}
	return len(expired), nil
}

// GetProject returns a project by ID.
func (s *Service) GetProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	return s.findProject(ctx, projectID)
}

// GetMilestone returns a milestone by ID.
func (s *Service) GetMilestone(ctx context.Context, milestoneID id.MilestoneID) (*models.Milestone, error) {
	return s.findMilestone(ctx, milestoneID)
}

// GetProjectMilestones returns a project's milestones in creation order.
func (s *Service) GetProjectMilestones(ctx context.Context, projectID id.ProjectID) ([]*models.Milestone, error) {
	milestones, err := s.store.FindProjectMilestones(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "project not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list milestones")
	}
	return milestones, nil
}

// GetProducerProjects returns every project registered for a producer.
func (s *Service) GetProducerProjects(ctx context.Context, producer id.Identity) ([]*models.Project, error) {
	projects, err := s.store.ListProjectsByProducer(ctx, producer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list producer projects")
	}
	return projects, nil
}

// ListProjects returns all projects in registration order.
func (s *Service) ListProjects(ctx context.Context) ([]*models.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list projects")
	}
	return projects, nil
}

func (s *Service) findProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error) {
	p, err := s.store.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "project not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find project")
	}
	return p, nil
}

func (s *Service) findMilestone(ctx context.Context, milestoneID id.MilestoneID) (*models.Milestone, error) {
	m, err := s.store.FindMilestone(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "milestone not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find milestone")
	}
	return m, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.Actor = requestcontext.CallerID(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "emit audit event", "action", string(event.Action), "error", err)
	}
}
