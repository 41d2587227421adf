package models

import (
	"time"

	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
)

// ProjectStatus is the project lifecycle state.
type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "pending"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusSuspended ProjectStatus = "suspended"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

var knownProjectStatuses = map[ProjectStatus]struct{}{
	ProjectStatusPending:   {},
	ProjectStatusActive:    {},
	ProjectStatusCompleted: {},
	ProjectStatusSuspended: {},
	ProjectStatusCancelled: {},
}

// ParseProjectStatus validates a status string at trust boundaries.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	st := ProjectStatus(s)
	if _, ok := knownProjectStatuses[st]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown project status: %q", s)
	}
	return st, nil
}

// Project is the aggregate root for a producer initiative.
//
// Invariants:
//   - DisbursedAmount never exceeds TotalSubsidy
//   - DisbursedAmount equals the sum of paid milestone subsidies
//   - MilestoneIDs is append-only in creation order, no duplicates
//   - Projects are never deleted; terminal states are permanent records
//
// Automatic transitions are Pending→Active (first milestone) and
// Active→Completed (all milestones verified and paid). Government
// override may force any status; both paths run under the ledger's
// single writer lock so they serialize rather than race.
type Project struct {
	ID              id.ProjectID
	Producer        id.Identity
	Name            string
	Description     string
	TotalSubsidy    id.Amount
	DisbursedAmount id.Amount
	Status          ProjectStatus
	CreatedAt       time.Time
	MilestoneIDs    []id.MilestoneID
}

// NewProject validates registration input. The ID is assigned by the
// store only after all validation passes, so a rejected registration
// never consumes a sequence number.
func NewProject(producer id.Identity, name, description string, total id.Amount, now time.Time) (*Project, error) {
	if producer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "producer identity is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "project name is required")
	}
	if total.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "total subsidy must be positive")
	}
	return &Project{
		Producer:     producer,
		Name:         name,
		Description:  description,
		TotalSubsidy: total,
		Status:       ProjectStatusPending,
		CreatedAt:    now,
	}, nil
}

// CanAddMilestone checks admission: project accepting milestones and the
// subsidy within the remaining budget.
func (p *Project) CanAddMilestone(subsidy id.Amount) error {
	if p.Status != ProjectStatusPending && p.Status != ProjectStatusActive {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"project %s is %s, milestones can only be added while pending or active", p.ID, p.Status)
	}
	if p.DisbursedAmount+subsidy > p.TotalSubsidy {
		return dErrors.Newf(dErrors.CodeValidation,
			"subsidy %s exceeds remaining project budget %s", subsidy, p.TotalSubsidy-p.DisbursedAmount)
	}
	return nil
}

// ApplyMilestoneAdded appends the milestone and promotes a pending
// project to active on its first milestone.
func (p *Project) ApplyMilestoneAdded(milestoneID id.MilestoneID) (promoted bool) {
	p.MilestoneIDs = append(p.MilestoneIDs, milestoneID)
	if p.Status == ProjectStatusPending {
		p.Status = ProjectStatusActive
		return true
	}
	return false
}

// ApplyPayment records a successful disbursement against the project.
func (p *Project) ApplyPayment(amount id.Amount) {
	p.DisbursedAmount += amount
}

// ApplyStatusOverride is the Government escape hatch: any status is
// reachable, including leaving terminal states.
func (p *Project) ApplyStatusOverride(status ProjectStatus) {
	p.Status = status
}
