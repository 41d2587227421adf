package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"subsidyledger/internal/dispute"
	"subsidyledger/internal/ledger"
	ledgermodels "subsidyledger/internal/ledger/models"
	"subsidyledger/internal/transport/http/shared"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
)

type ledgerHandler struct {
	ledger   *ledger.Service
	disputes *dispute.Service
}

func (h *ledgerHandler) handleRegisterProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Producer     string `json:"producer"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		TotalSubsidy uint64 `json:"total_subsidy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	p, err := h.ledger.RegisterProject(r.Context(),
		id.Identity(req.Producer), req.Name, req.Description, id.Amount(req.TotalSubsidy))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toProjectView(p))
}

func (h *ledgerHandler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if producer := r.URL.Query().Get("producer"); producer != "" {
		projects, err := h.ledger.GetProducerProjects(r.Context(), id.Identity(producer))
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		writeProjects(w, projects)
		return
	}

	projects, err := h.ledger.ListProjects(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	writeProjects(w, projects)
}

func writeProjects(w http.ResponseWriter, projects []*ledgermodels.Project) {
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, toProjectView(p))
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *ledgerHandler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	p, err := h.ledger.GetProject(r.Context(), id.ProjectID(projectID))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProjectView(p))
}

func (h *ledgerHandler) handleUpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	p, err := h.ledger.UpdateProjectStatus(r.Context(), id.ProjectID(projectID), ledgermodels.ProjectStatus(req.Status))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProjectView(p))
}

func (h *ledgerHandler) handleAddMilestone(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Description        string `json:"description"`
		SubsidyAmount      uint64 `json:"subsidy_amount"`
		TargetValue        uint64 `json:"target_value"`
		VerificationSource string `json:"verification_source"`
		Deadline           string `json:"deadline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "deadline must be RFC 3339"))
		return
	}

	m, err := h.ledger.AddMilestone(r.Context(), id.ProjectID(projectID),
		req.Description, id.Amount(req.SubsidyAmount), req.TargetValue,
		id.SourceKey(req.VerificationSource), deadline)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toMilestoneView(m))
}

func (h *ledgerHandler) handleProjectMilestones(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	milestones, err := h.ledger.GetProjectMilestones(r.Context(), id.ProjectID(projectID))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]milestoneView, 0, len(milestones))
	for _, m := range milestones {
		views = append(views, toMilestoneView(m))
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *ledgerHandler) handleGetMilestone(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := pathID(r, "milestoneID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	m, err := h.ledger.GetMilestone(r.Context(), id.MilestoneID(milestoneID))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toMilestoneView(m))
}

// handleVerifyMilestone records a verdict. With an explicit actual_value
// the verifier attests the measurement; with a from/to window the value
// is aggregated from verified oracle readings instead.
func (h *ledgerHandler) handleVerifyMilestone(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := pathID(r, "milestoneID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		ActualValue *uint64 `json:"actual_value"`
		Success     bool    `json:"success"`
		OracleFrom  string  `json:"oracle_from"`
		OracleTo    string  `json:"oracle_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	var m *ledgermodels.Milestone
	switch {
	case req.ActualValue != nil:
		m, err = h.ledger.VerifyMilestone(r.Context(), id.MilestoneID(milestoneID), *req.ActualValue, req.Success)
	case req.OracleFrom != "" && req.OracleTo != "":
		var from, to time.Time
		from, err = time.Parse(time.RFC3339, req.OracleFrom)
		if err == nil {
			to, err = time.Parse(time.RFC3339, req.OracleTo)
		}
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "oracle window must be RFC 3339"))
			return
		}
		m, err = h.ledger.VerifyMilestoneFromOracle(r.Context(), id.MilestoneID(milestoneID), from, to)
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "either actual_value or an oracle window is required"))
		return
	}

	// A payment failure still carries the committed verdict: return both
	// the error envelope's status and the milestone state.
	if err != nil {
		if m != nil {
			shared.WriteJSON(w, shared.ToHTTPStatus(dErrors.CodeOf(err)), map[string]any{
				"error":             string(dErrors.CodeOf(err)),
				"error_description": err.Error(),
				"milestone":         toMilestoneView(m),
			})
			return
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toMilestoneView(m))
}

func (h *ledgerHandler) handleRetryPayment(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := pathID(r, "milestoneID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	m, err := h.ledger.RetryPayment(r.Context(), id.MilestoneID(milestoneID))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toMilestoneView(m))
}

func (h *ledgerHandler) handleRaiseDispute(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := pathID(r, "milestoneID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	d, err := h.disputes.RaiseDispute(r.Context(), id.MilestoneID(milestoneID), req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toDisputeView(d))
}

func (h *ledgerHandler) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := pathID(r, "milestoneID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Approve    bool   `json:"approve"`
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	d, err := h.disputes.ResolveDispute(r.Context(), id.MilestoneID(milestoneID), req.Approve, req.Resolution)
	if err != nil {
		if d != nil {
			shared.WriteJSON(w, shared.ToHTTPStatus(dErrors.CodeOf(err)), map[string]any{
				"error":             string(dErrors.CodeOf(err)),
				"error_description": err.Error(),
				"dispute":           toDisputeView(d),
			})
			return
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDisputeView(d))
}

func (h *ledgerHandler) handleMilestoneDisputes(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := pathID(r, "milestoneID")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	disputes, err := h.disputes.MilestoneDisputes(r.Context(), id.MilestoneID(milestoneID))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]disputeView, 0, len(disputes))
	for _, d := range disputes {
		views = append(views, toDisputeView(d))
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func pathID(r *http.Request, param string) (uint64, error) {
	raw := chi.URLParam(r, param)
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.Newf(dErrors.CodeValidation, "invalid %s: %q", param, raw)
	}
	return n, nil
}
