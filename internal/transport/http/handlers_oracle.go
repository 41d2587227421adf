package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"subsidyledger/internal/oracle"
	"subsidyledger/internal/sources"
	srcmodels "subsidyledger/internal/sources/models"
	"subsidyledger/internal/transport/http/shared"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
)

type oracleHandler struct {
	oracle  *oracle.Service
	sources *sources.Service
}

func (h *oracleHandler) handleSubmitData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source   string `json:"source"`
		Value    uint64 `json:"value"`
		Metadata string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	dp, err := h.oracle.SubmitData(r.Context(), id.SourceKey(req.Source), req.Value, req.Metadata)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toDataPointView(dp))
}

func (h *oracleHandler) handleVerifyData(w http.ResponseWriter, r *http.Request) {
	dataID := chi.URLParam(r, "dataID")

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	dp, err := h.oracle.VerifyData(r.Context(), id.DataPointID(dataID), req.Verified)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDataPointView(dp))
}

func (h *oracleHandler) handleGetDataPoint(w http.ResponseWriter, r *http.Request) {
	dp, err := h.oracle.GetDataPoint(r.Context(), id.DataPointID(chi.URLParam(r, "dataID")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDataPointView(dp))
}

// handleQueryVerified serves verified readings for a source over an
// inclusive [from, to] window, in submission order.
func (h *oracleHandler) handleQueryVerified(w http.ResponseWriter, r *http.Request) {
	key := id.SourceKey(chi.URLParam(r, "sourceKey"))
	from, to, err := parseWindow(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	points, err := h.oracle.QueryVerifiedData(r.Context(), key, from, to)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]dataPointView, 0, len(points))
	for _, dp := range points {
		views = append(views, toDataPointView(dp))
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *oracleHandler) handleAggregateVerified(w http.ResponseWriter, r *http.Request) {
	key := id.SourceKey(chi.URLParam(r, "sourceKey"))
	from, to, err := parseWindow(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	agg, err := h.oracle.AggregateVerified(r.Context(), key, from, to)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"sum": agg.Sum, "count": agg.Count})
}

func (h *oracleHandler) handleSourceHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.oracle.SourceHistory(r.Context(), id.SourceKey(chi.URLParam(r, "sourceKey")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ids := make([]string, 0, len(history))
	for _, dataID := range history {
		ids = append(ids, dataID.String())
	}
	shared.WriteJSON(w, http.StatusOK, ids)
}

func (h *oracleHandler) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string `json:"key"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	source, err := h.sources.AddSource(r.Context(), id.SourceKey(req.Key), srcmodels.SourceType(req.Type))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toSourceView(source))
}

func (h *oracleHandler) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	if err := h.sources.RemoveSource(r.Context(), id.SourceKey(chi.URLParam(r, "sourceKey"))); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *oracleHandler) handleGetSource(w http.ResponseWriter, r *http.Request) {
	source, err := h.sources.GetSource(r.Context(), id.SourceKey(chi.URLParam(r, "sourceKey")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toSourceView(source))
}

func (h *oracleHandler) handleListSources(w http.ResponseWriter, r *http.Request) {
	list, err := h.sources.ListSources(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	views := make([]sourceView, 0, len(list))
	for _, s := range list {
		views = append(views, toSourceView(s))
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *oracleHandler) handleUpdateReliability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score uint8 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	key := id.SourceKey(chi.URLParam(r, "sourceKey"))
	if err := h.sources.UpdateSourceReliability(r.Context(), key, req.Score); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *oracleHandler) handleUpdateTypeThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold uint8 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	sourceType := srcmodels.SourceType(chi.URLParam(r, "sourceType"))
	if err := h.sources.UpdateTypeThreshold(r.Context(), sourceType, req.Threshold); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "from must be RFC 3339")
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "to must be RFC 3339")
	}
	return from, to, nil
}
