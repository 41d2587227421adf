package audit

import (
	"context"
	"time"

	id "subsidyledger/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory
	// significance: every fund movement and every verification verdict.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and
	// operational visibility: registrations, status churn, pause toggles.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture every state change.
// Kept transport-agnostic so stores and sinks can fan out.
type Event struct {
	Action    AuditEvent
	Timestamp time.Time
	Actor     id.Identity
	RequestID string

	// Entity references; zero values mean "not applicable".
	ProjectID   id.ProjectID
	MilestoneID id.MilestoneID
	Source      id.SourceKey
	DataID      id.DataPointID

	// Amount carries the funds moved or added, when the action moves
	// funds.
	Amount id.Amount

	// Decision and Reason describe verification and dispute outcomes.
	Decision string
	Reason   string
}

// AuditEvent names a state-changing action.
type AuditEvent string

const (
	// Ledger events
	EventProjectRegistered    AuditEvent = "project_registered"
	EventMilestoneAdded       AuditEvent = "milestone_added"
	EventMilestoneVerified    AuditEvent = "milestone_verified"
	EventMilestoneFailed      AuditEvent = "milestone_failed"
	EventSubsidyDisbursed     AuditEvent = "subsidy_disbursed"
	EventProjectStatusChanged AuditEvent = "project_status_changed"

	// Fund pool events
	EventFundsAdded AuditEvent = "funds_added"

	// Oracle events
	EventDataSubmitted AuditEvent = "data_submitted"
	EventDataVerified  AuditEvent = "data_verified"

	// Trusted-source registry events
	EventSourceAdded   AuditEvent = "source_added"
	EventSourceRemoved AuditEvent = "source_removed"

	// Dispute events
	EventDisputeRaised   AuditEvent = "dispute_raised"
	EventDisputeResolved AuditEvent = "dispute_resolved"

	// Control events
	EventSystemPaused   AuditEvent = "system_paused"
	EventSystemUnpaused AuditEvent = "system_unpaused"

	// Access events
	EventRoleGranted AuditEvent = "role_granted"
	EventRoleRevoked AuditEvent = "role_revoked"
)

// eventCategories is the source of truth for routing. Fund movements and
// verification verdicts are compliance; the rest is operations.
var eventCategories = map[AuditEvent]EventCategory{
	EventProjectRegistered:    CategoryCompliance,
	EventMilestoneAdded:       CategoryOperations,
	EventMilestoneVerified:    CategoryCompliance,
	EventMilestoneFailed:      CategoryCompliance,
	EventSubsidyDisbursed:     CategoryCompliance,
	EventProjectStatusChanged: CategoryOperations,
	EventFundsAdded:           CategoryCompliance,
	EventDataSubmitted:        CategoryOperations,
	EventDataVerified:         CategoryCompliance,
	EventSourceAdded:          CategoryOperations,
	EventSourceRemoved:        CategoryOperations,
	EventDisputeRaised:        CategoryCompliance,
	EventDisputeResolved:      CategoryCompliance,
	EventSystemPaused:         CategoryOperations,
	EventSystemUnpaused:       CategoryOperations,
	EventRoleGranted:          CategoryOperations,
	EventRoleRevoked:          CategoryOperations,
}

// Category returns the routing category for the action. Unknown actions
// default to compliance: over-retaining beats dropping.
func (a AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[a]; ok {
		return c
	}
	return CategoryCompliance
}

// Store persists audit events. Implementations: memory (tests, default),
// sqlite (local compliance export), kafka (streaming to the audit
// pipeline).
type Store interface {
	Append(ctx context.Context, event Event) error
}
