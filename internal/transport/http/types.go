package httptransport

import (
	"time"

	disputemodels "subsidyledger/internal/dispute/models"
	ledgermodels "subsidyledger/internal/ledger/models"
	oraclemodels "subsidyledger/internal/oracle/models"
	srcmodels "subsidyledger/internal/sources/models"
)

// Wire views. Amounts are minor currency units; timestamps RFC 3339.

type projectView struct {
	ID              uint64   `json:"id"`
	Producer        string   `json:"producer"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	TotalSubsidy    uint64   `json:"total_subsidy"`
	DisbursedAmount uint64   `json:"disbursed_amount"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at"`
	MilestoneIDs    []uint64 `json:"milestone_ids"`
}

func toProjectView(p *ledgermodels.Project) projectView {
	ids := make([]uint64, 0, len(p.MilestoneIDs))
	for _, mid := range p.MilestoneIDs {
		ids = append(ids, uint64(mid))
	}
	return projectView{
		ID:              uint64(p.ID),
		Producer:        p.Producer.String(),
		Name:            p.Name,
		Description:     p.Description,
		TotalSubsidy:    uint64(p.TotalSubsidy),
		DisbursedAmount: uint64(p.DisbursedAmount),
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		MilestoneIDs:    ids,
	}
}

type milestoneView struct {
	ID                 uint64 `json:"id"`
	ProjectID          uint64 `json:"project_id"`
	Description        string `json:"description"`
	SubsidyAmount      uint64 `json:"subsidy_amount"`
	TargetValue        uint64 `json:"target_value"`
	ActualValue        uint64 `json:"actual_value"`
	VerificationSource string `json:"verification_source"`
	Deadline           string `json:"deadline"`
	Status             string `json:"status"`
	Paid               bool   `json:"paid"`
	VerifiedAt         string `json:"verified_at,omitempty"`
	VerifiedBy         string `json:"verified_by,omitempty"`
}

func toMilestoneView(m *ledgermodels.Milestone) milestoneView {
	v := milestoneView{
		ID:                 uint64(m.ID),
		ProjectID:          uint64(m.ProjectID),
		Description:        m.Description,
		SubsidyAmount:      uint64(m.SubsidyAmount),
		TargetValue:        m.TargetValue,
		ActualValue:        m.ActualValue,
		VerificationSource: m.VerificationSource.String(),
		Deadline:           m.Deadline.Format(time.RFC3339),
		Status:             string(m.Status),
		Paid:               m.Paid,
		VerifiedBy:         m.VerifiedBy.String(),
	}
	if !m.VerifiedAt.IsZero() {
		v.VerifiedAt = m.VerifiedAt.Format(time.RFC3339)
	}
	return v
}

type dataPointView struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	SourceType  string `json:"source_type"`
	Value       uint64 `json:"value"`
	Timestamp   string `json:"timestamp"`
	SubmittedBy string `json:"submitted_by"`
	Verified    bool   `json:"verified"`
	VerifiedBy  string `json:"verified_by,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
}

func toDataPointView(dp *oraclemodels.DataPoint) dataPointView {
	return dataPointView{
		ID:          dp.ID.String(),
		Source:      dp.Source.String(),
		SourceType:  string(dp.SourceType),
		Value:       dp.Value,
		Timestamp:   dp.Timestamp.Format(time.RFC3339Nano),
		SubmittedBy: dp.SubmittedBy.String(),
		Verified:    dp.Verified,
		VerifiedBy:  dp.VerifiedBy.String(),
		Metadata:    dp.Metadata,
	}
}

type sourceView struct {
	Key              string `json:"key"`
	Type             string `json:"type,omitempty"`
	Trusted          bool   `json:"trusted"`
	ReliabilityScore uint8  `json:"reliability_score"`
	AddedBy          string `json:"added_by"`
	AddedAt          string `json:"added_at"`
}

func toSourceView(s *srcmodels.TrustedSource) sourceView {
	return sourceView{
		Key:              s.Key.String(),
		Type:             string(s.Type),
		Trusted:          s.Trusted,
		ReliabilityScore: s.ReliabilityScore,
		AddedBy:          s.AddedBy.String(),
		AddedAt:          s.AddedAt.Format(time.RFC3339),
	}
}

type disputeView struct {
	ID          string `json:"id"`
	MilestoneID uint64 `json:"milestone_id"`
	ProjectID   uint64 `json:"project_id"`
	RaisedBy    string `json:"raised_by"`
	Reason      string `json:"reason"`
	RaisedAt    string `json:"raised_at"`
	Resolved    bool   `json:"resolved"`
	Outcome     string `json:"outcome,omitempty"`
	ResolvedBy  string `json:"resolved_by,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	ResolvedAt  string `json:"resolved_at,omitempty"`
}

func toDisputeView(d *disputemodels.Dispute) disputeView {
	v := disputeView{
		ID:          d.ID,
		MilestoneID: uint64(d.MilestoneID),
		ProjectID:   uint64(d.ProjectID),
		RaisedBy:    d.RaisedBy.String(),
		Reason:      d.Reason,
		RaisedAt:    d.RaisedAt.Format(time.RFC3339),
		Resolved:    d.Resolved,
		Outcome:     string(d.Outcome),
		ResolvedBy:  d.ResolvedBy.String(),
		Resolution:  d.Resolution,
	}
	if !d.ResolvedAt.IsZero() {
		v.ResolvedAt = d.ResolvedAt.Format(time.RFC3339)
	}
	return v
}
