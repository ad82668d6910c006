package prescription

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sehaty-app/backend-sehaty/internal/common"
)

// Handler exposes the patient-facing prescription endpoints.
type Handler struct {
	Svc *Service
}

// Submit handles POST /api/v1/prescriptions.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	var in SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	created, err := h.Svc.Submit(r.Context(), userID, in)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// ListMine handles GET /api/v1/prescriptions.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	list, err := h.Svc.ListMine(r.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	if list == nil {
		list = []Prescription{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// AdminHandler exposes the fulfilment dashboard endpoints.
type AdminHandler struct {
	Svc *Service
}

// List handles GET /api/v1/admin/prescriptions.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	list, err := h.Svc.ListAll(r.Context(), r.URL.Query().Get("status"), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	if list == nil {
		list = []Prescription{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// SetStatus handles PATCH /api/v1/admin/prescriptions/{id}/status.
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid prescription id", nil)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	switch body.Status {
	case StatusProcessing, StatusFulfilled, StatusRejected:
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
		return
	}
	updated, err := h.Svc.SetStatus(r.Context(), id, body.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "prescription not found", nil)
			return
		}
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func authedUser(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
