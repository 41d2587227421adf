// Package dispute lets producers and Government contest settled
// milestone verdicts and auditors resolve them. The milestone status
// transitions themselves run inside the ledger's writer lock; this
// package owns standing checks and the dispute records.
package dispute

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"subsidyledger/internal/access"
	"subsidyledger/internal/dispute/models"
	ledgermodels "subsidyledger/internal/ledger/models"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	audit "subsidyledger/pkg/platform/audit"
	"subsidyledger/pkg/platform/sentinel"
	"subsidyledger/pkg/requestcontext"
)

// Ledger is the milestone surface disputes operate on. Satisfied by
// *ledger.Service.
type Ledger interface {
	GetMilestone(ctx context.Context, milestoneID id.MilestoneID) (*ledgermodels.Milestone, error)
	GetProject(ctx context.Context, projectID id.ProjectID) (*ledgermodels.Project, error)
	MarkDisputed(ctx context.Context, milestoneID id.MilestoneID) (*ledgermodels.Milestone, error)
	ResolveDisputed(ctx context.Context, milestoneID id.MilestoneID, approve bool) (*ledgermodels.Milestone, error)
}

// RoleChecker answers whether the current caller holds a role.
// Satisfied by *access.Service.
type RoleChecker interface {
	CallerHasRole(ctx context.Context, role id.Role) (bool, error)
}

type Service struct {
	store  Store
	ledger Ledger
	authz  access.Authorizer
	roles  RoleChecker
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

func NewService(store Store, ledger Ledger, authz access.Authorizer, roles RoleChecker, opts ...Option) *Service {
	s := &Service{store: store, ledger: ledger, authz: authz, roles: roles}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RaiseDispute contests a settled verdict. Standing: the owning
// project's producer, or any Government identity. A producer can only
// contest their own milestones.
func (s *Service) RaiseDispute(ctx context.Context, milestoneID id.MilestoneID, reason string) (*models.Dispute, error) {
	if err := s.authz.Require(ctx, access.OpRaiseDispute); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "dispute reason is required")
	}

	m, err := s.ledger.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	p, err := s.ledger.GetProject(ctx, m.ProjectID)
	if err != nil {
		return nil, err
	}

	caller := requestcontext.CallerID(ctx)
	if caller != p.Producer {
		isGov, err := s.roles.CallerHasRole(ctx, id.RoleGovernment)
		if err != nil {
			return nil, err
		}
		if !isGov {
			return nil, dErrors.Newf(dErrors.CodeUnauthorized,
				"caller %s is not the producer of project %s", caller, p.ID)
		}
	}

	m, err = s.ledger.MarkDisputed(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	d := &models.Dispute{
		ID:          uuid.NewString(),
		MilestoneID: milestoneID,
		ProjectID:   m.ProjectID,
		RaisedBy:    caller,
		Reason:      reason,
		RaisedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create dispute record")
	}

	s.logger.InfoContext(ctx, "dispute raised",
		"dispute_id", d.ID, "milestone_id", milestoneID.String(), "raised_by", caller.String())
	s.emit(ctx, audit.Event{
		Action:      audit.EventDisputeRaised,
		ProjectID:   m.ProjectID,
		MilestoneID: milestoneID,
		Reason:      reason,
	})
	return d, nil
}

// ResolveDispute settles an open dispute. Auditor-only. Approval
// restores the verified verdict and pays the subsidy if it was never
// paid; rejection fails the milestone. Funds already disbursed are
// never clawed back.
func (s *Service) ResolveDispute(ctx context.Context, milestoneID id.MilestoneID, approve bool, resolution string) (*models.Dispute, error) {
	if err := s.authz.Require(ctx, access.OpResolveDispute); err != nil {
		return nil, err
	}

	m, err := s.ledger.ResolveDisputed(ctx, milestoneID, approve)
	if err != nil && m == nil {
		return nil, err
	}
	payErr := err

	outcome := models.OutcomeRejected
	if approve {
		outcome = models.OutcomeApproved
	}

	d, findErr := s.store.FindOpenByMilestone(ctx, milestoneID)
	if findErr != nil {
		if !errors.Is(findErr, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "find dispute record")
		}
		// Milestone was disputed without a record in this store, for
		// instance across a restart with the in-memory store. Settle the
		// milestone anyway and synthesize the record.
		d = &models.Dispute{
			ID:          uuid.NewString(),
			MilestoneID: milestoneID,
			ProjectID:   m.ProjectID,
			RaisedAt:    requestcontext.Now(ctx),
		}
		if err := s.store.Create(ctx, d); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create dispute record")
		}
	}

	d.Resolved = true
	d.Outcome = outcome
	d.ResolvedBy = requestcontext.CallerID(ctx)
	d.Resolution = resolution
	d.ResolvedAt = requestcontext.Now(ctx)
	if err := s.store.Save(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save dispute record")
	}

	s.emit(ctx, audit.Event{
		Action:      audit.EventDisputeResolved,
		ProjectID:   d.ProjectID,
		MilestoneID: milestoneID,
		Decision:    string(outcome),
		Reason:      resolution,
	})

	// An approval whose payment failed still resolves the dispute; the
	// error surfaces so the caller knows to retry the payment.
	if payErr != nil {
		return d, payErr
	}
	return d, nil
}

// MilestoneDisputes returns all dispute records for a milestone,
// oldest first.
func (s *Service) MilestoneDisputes(ctx context.Context, milestoneID id.MilestoneID) ([]*models.Dispute, error) {
	disputes, err := s.store.ListByMilestone(ctx, milestoneID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list disputes")
	}
	return disputes, nil
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
