package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sehaty-app/backend-sehaty/internal/common"
)

// AdminHandler exposes booking administration endpoints.
type AdminHandler struct {
	Svc *Service
}

// List handles GET /api/v1/admin/bookings with an optional status filter.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	status := r.URL.Query().Get("status")
	list, err := h.Svc.Store.ListAll(r.Context(), status, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	if list == nil {
		list = []Booking{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PATCH /api/v1/admin/bookings/{id}/status.
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid booking id", nil)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	switch req.Status {
	case StatusConfirmed, StatusCompleted, StatusCancelled:
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
		return
	}
	updated, err := h.Svc.SetStatus(r.Context(), bookingID, req.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "booking not found", nil)
			return
		}
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}
