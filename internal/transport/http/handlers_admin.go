package httptransport

import (
	"encoding/json"
	"net/http"

	"subsidyledger/internal/access"
	"subsidyledger/internal/control"
	"subsidyledger/internal/transport/http/shared"
	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
)

type adminHandler struct {
	control *control.Service
	access  *access.Service
}

func (h *adminHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Pause(r.Context()); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Unpause(r.Context()); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	paused, err := h.control.IsPaused(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (h *adminHandler) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	identity, role, err := decodeRoleRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.access.GrantRole(r.Context(), identity, role); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	identity, role, err := decodeRoleRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.access.RevokeRole(r.Context(), identity, role); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	identity := id.Identity(r.URL.Query().Get("identity"))
	if identity.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "identity query parameter is required"))
		return
	}

	roles, err := h.access.RolesOf(r.Context(), identity)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"identity": identity.String(), "roles": names})
}

func decodeRoleRequest(r *http.Request) (id.Identity, id.Role, error) {
	var req struct {
		Identity string `json:"identity"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", dErrors.New(dErrors.CodeValidation, "invalid request body")
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeValidation, "invalid role")
	}
	return id.Identity(req.Identity), role, nil
}
