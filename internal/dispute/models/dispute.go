package models

import (
	"time"

	id "subsidyledger/pkg/domain"
)

// Outcome is the auditor's resolution verdict.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Dispute is the contest record attached to a milestone verdict. The
// milestone's own status carries the state machine; this record keeps
// who raised it, why, and how it was settled.
type Dispute struct {
	ID          string
	MilestoneID id.MilestoneID
	ProjectID   id.ProjectID
	RaisedBy    id.Identity
	Reason      string
	RaisedAt    time.Time
	Resolved    bool
	Outcome     Outcome
	ResolvedBy  id.Identity
	Resolution  string
	ResolvedAt  time.Time
}
