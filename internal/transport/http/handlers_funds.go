package httptransport

import (
	"encoding/json"
	"net/http"

	"subsidyledger/internal/funds"
	"subsidyledger/internal/transport/http/shared"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
)

type fundsHandler struct {
	pool *funds.Pool
}

func (h *fundsHandler) handleAddFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	total, err := h.pool.AddFunds(r.Context(), id.Amount(req.Amount))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]uint64{"total_pool": uint64(total)})
}

func (h *fundsHandler) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shared.WriteJSON(w, http.StatusOK, map[string]uint64{
		"total_pool":      uint64(h.pool.TotalPool(ctx)),
		"total_disbursed": uint64(h.pool.TotalDisbursed(ctx)),
		"available":       uint64(h.pool.Available(ctx)),
	})
}
