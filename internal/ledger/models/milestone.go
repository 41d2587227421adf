package models

import (
	"time"

	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
)

// MilestoneStatus is the milestone verification state.
type MilestoneStatus string

const (
	MilestoneStatusPending  MilestoneStatus = "pending"
	MilestoneStatusVerified MilestoneStatus = "verified"
	MilestoneStatusFailed   MilestoneStatus = "failed"
	MilestoneStatusDisputed MilestoneStatus = "disputed"
)

// Milestone is a verifiable deliverable with an attached subsidy.
//
// Paid is monotonic: once true it never resets, not even when a dispute
// later moves the milestone to failed. Dispute resolution corrects
// status going forward; it does not claw back funds.
type Milestone struct {
	ID                 id.MilestoneID
	ProjectID          id.ProjectID
	Description        string
	SubsidyAmount      id.Amount
	TargetValue        uint64
	ActualValue        uint64
	VerificationSource id.SourceKey
	Deadline           time.Time
	Status             MilestoneStatus
	Paid               bool
	VerifiedAt         time.Time
	VerifiedBy         id.Identity
	CreatedAt          time.Time
}

// NewMilestone validates milestone input. Like projects, the ID is
// assigned by the store after validation passes.
func NewMilestone(projectID id.ProjectID, description string, subsidy id.Amount, target uint64, source id.SourceKey, deadline, now time.Time) (*Milestone, error) {
	if description == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "milestone description is required")
	}
	if subsidy.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "milestone subsidy must be positive")
	}
	if target == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "target value must be positive")
	}
	if source.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "verification source is required")
	}
	if !deadline.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "deadline must be in the future")
	}
	return &Milestone{
		ProjectID:          projectID,
		Description:        description,
		SubsidyAmount:      subsidy,
		TargetValue:        target,
		VerificationSource: source,
		Deadline:           deadline,
		Status:             MilestoneStatusPending,
		CreatedAt:          now,
	}, nil
}

// CanVerify gates the verification operation: only pending milestones,
// only before the deadline. An expired milestone stays pending until a
// sweep or override moves it; verification against it is a hard error,
// never a silent failure.
func (m *Milestone) CanVerify(now time.Time) error {
	if m.Status != MilestoneStatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"milestone %s is %s, only pending milestones can be verified", m.ID, m.Status)
	}
	if now.After(m.Deadline) {
		return dErrors.Newf(dErrors.CodeDeadlineExpired,
			"milestone %s deadline %s has passed", m.ID, m.Deadline.Format(time.RFC3339))
	}
	return nil
}

// ApplyVerification records the verdict. The milestone verifies only
// when the verifier attests success and the measured value reaches the
// target; either failing yields Failed.
func (m *Milestone) ApplyVerification(actual uint64, success bool, by id.Identity, now time.Time) MilestoneStatus {
	m.ActualValue = actual
	m.VerifiedAt = now
	m.VerifiedBy = by
	if success && actual >= m.TargetValue {
		m.Status = MilestoneStatusVerified
	} else {
		m.Status = MilestoneStatusFailed
	}
	return m.Status
}

// CanDispute permits disputes only on settled verdicts. A pending
// milestone has nothing to contest yet.
func (m *Milestone) CanDispute() error {
	if m.Status != MilestoneStatusVerified && m.Status != MilestoneStatusFailed {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"milestone %s is %s, only verified or failed milestones can be disputed", m.ID, m.Status)
	}
	return nil
}

func (m *Milestone) ApplyDispute() {
	m.Status = MilestoneStatusDisputed
}

// CanResolve gates dispute resolution.
func (m *Milestone) CanResolve() error {
	if m.Status != MilestoneStatusDisputed {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"milestone %s is %s, only disputed milestones can be resolved", m.ID, m.Status)
	}
	return nil
}

// ApplyResolution settles a dispute: approve restores Verified, reject
// moves to Failed. Paid is untouched either way.
func (m *Milestone) ApplyResolution(approve bool, by id.Identity, now time.Time) MilestoneStatus {
	if approve {
		m.Status = MilestoneStatusVerified
	} else {
		m.Status = MilestoneStatusFailed
	}
	m.VerifiedAt = now
	m.VerifiedBy = by
	return m.Status
}

// CanExpire reports whether a sweep may fail this milestone: pending
// with the deadline behind now.
func (m *Milestone) CanExpire(now time.Time) bool {
	return m.Status == MilestoneStatusPending && now.After(m.Deadline)
}

// ApplyExpiry fails an expired pending milestone (sweep path).
func (m *Milestone) ApplyExpiry(now time.Time) {
	m.Status = MilestoneStatusFailed
	m.VerifiedAt = now
}

// MarkPaid flips the paid flag exactly once.
func (m *Milestone) MarkPaid() error {
	if m.Paid {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"milestone %s is already paid", m.ID)
	}
	if m.Status != MilestoneStatusVerified {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"milestone %s is %s, only verified milestones are payable", m.ID, m.Status)
	}
	m.Paid = true
	return nil
}

// Settled reports whether the milestone counts toward project
// completion: verified and paid.
func (m *Milestone) Settled() bool {
	return m.Status == MilestoneStatusVerified && m.Paid
}
