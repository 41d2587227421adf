package access

import (
	"context"
	"log/slog"

	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
	audit "subsidyledger/pkg/platform/audit"
	"subsidyledger/pkg/requestcontext"
)

// RoleStore is the authoritative registry of granted roles.
type RoleStore interface {
	Grant(ctx context.Context, identity id.Identity, role id.Role) error
	Revoke(ctx context.Context, identity id.Identity, role id.Role) error
	HasRole(ctx context.Context, identity id.Identity, role id.Role) (bool, error)
	RolesOf(ctx context.Context, identity id.Identity) ([]id.Role, error)
}

// AuditPublisher is the slice of the audit publisher services need.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Authorizer gates mutating operations. Every other service takes this
// interface so business logic stays free of role branching.
type Authorizer interface {
	Require(ctx context.Context, op Operation) error
}

// Service checks the policy table against the role registry.
type Service struct {
	store  RoleStore
	logger *slog.Logger
	audit  AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub AuditPublisher) Option {
	return func(s *Service) { s.audit = pub }
}

func NewService(store RoleStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Require fails with Unauthorized unless the caller holds one of the
// operation's allowed roles. The registry is authoritative; roles
// asserted in the token are merged in so an identity admitted mid-session
// (implicit producer grant) can act without re-minting a token.
func (s *Service) Require(ctx context.Context, op Operation) error {
	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity missing")
	}

	allowed := AllowedRoles(op)
	if len(allowed) == 0 {
		return dErrors.Newf(dErrors.CodeUnauthorized, "operation %s has no policy entry", op)
	}

	asserted := make(map[id.Role]struct{})
	for _, r := range requestcontext.CallerRoles(ctx) {
		asserted[r] = struct{}{}
	}

	for _, role := range allowed {
		if _, ok := asserted[role]; ok {
			return nil
		}
		has, err := s.store.HasRole(ctx, caller, role)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
		}
		if has {
			return nil
		}
	}

	s.logger.InfoContext(ctx, "authorization denied",
		"operation", string(op), "caller", caller.String())
	return dErrors.Newf(dErrors.CodeUnauthorized, "caller lacks required role for %s", op)
}

// CallerHasRole reports whether the current caller holds the role,
// either asserted in the token or granted in the registry.
func (s *Service) CallerHasRole(ctx context.Context, role id.Role) (bool, error) {
	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		return false, nil
	}
	for _, r := range requestcontext.CallerRoles(ctx) {
		if r == role {
			return true, nil
		}
	}
	has, err := s.store.HasRole(ctx, caller, role)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
	}
	return has, nil
}

// GrantRole admits an identity to a role. Government-only, except the
// implicit producer grant performed by the ledger at registration, which
// calls GrantProducer directly.
func (s *Service) GrantRole(ctx context.Context, identity id.Identity, role id.Role) error {
	if err := s.Require(ctx, OpGrantRole); err != nil {
		return err
	}
	if identity.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	if err := s.store.Grant(ctx, identity, role); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "grant role")
	}
	s.emit(ctx, audit.EventRoleGranted, identity, role)
	return nil
}

// RevokeRole removes a role grant.
func (s *Service) RevokeRole(ctx context.Context, identity id.Identity, role id.Role) error {
	if err := s.Require(ctx, OpRevokeRole); err != nil {
		return err
	}
	if identity.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	if err := s.store.Revoke(ctx, identity, role); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke role")
	}
	s.emit(ctx, audit.EventRoleRevoked, identity, role)
	return nil
}

// GrantProducer is the implicit admission path: producers are granted
// their role by project registration, not pre-registered. Only the
// ledger service calls this, after its own Government check.
func (s *Service) GrantProducer(ctx context.Context, identity id.Identity) error {
	if identity.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "producer identity is required")
	}
	if err := s.store.Grant(ctx, identity, id.RoleProducer); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "grant producer role")
	}
	s.emit(ctx, audit.EventRoleGranted, identity, id.RoleProducer)
	return nil
}

// RolesOf lists an identity's granted roles (read surface).
func (s *Service) RolesOf(ctx context.Context, identity id.Identity) ([]id.Role, error) {
	roles, err := s.store.RolesOf(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list roles")
	}
	return roles, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject id.Identity, role id.Role) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:    action,
		Timestamp: requestcontext.Now(ctx),
		Actor:     requestcontext.CallerID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Decision:  role.String(),
		Reason:    subject.String(),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "emit audit event", "action", string(action), "error", err)
	}
}
