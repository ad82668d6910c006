package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sehaty-app/backend-sehaty/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	Svc *Service
}

// ListDoctors handles GET /api/v1/doctors.
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Svc.Doctors(r.Context(), q.Get("specialty"), q.Get("q"))
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	if list == nil {
		list = []Doctor{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// GetDoctor handles GET /api/v1/doctors/{id}.
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid doctor id", nil)
		return
	}
	doctor, err := h.Svc.Doctor(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "doctor not found", nil)
			return
		}
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": doctor})
}

// ListPackages handles GET /api/v1/services.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.Packages(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	if list == nil {
		list = []ServicePackage{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// GetPackage handles GET /api/v1/services/{id}.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid service id", nil)
		return
	}
	pkg, err := h.Svc.Package(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "service not found", nil)
			return
		}
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": pkg})
}

// AdminHandler exposes catalog management endpoints.
type AdminHandler struct {
	Svc *Service
}

// SaveDoctor handles POST /api/v1/admin/doctors and PUT /api/v1/admin/doctors/{id}.
func (h *AdminHandler) SaveDoctor(w http.ResponseWriter, r *http.Request) {
	var d Doctor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if raw := chi.URLParam(r, "id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid doctor id", nil)
			return
		}
		d.ID = id
	}
	saved, err := h.Svc.SaveDoctor(r.Context(), d)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": saved})
}

// DeleteDoctor handles DELETE /api/v1/admin/doctors/{id}.
func (h *AdminHandler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid doctor id", nil)
		return
	}
	if err := h.Svc.RemoveDoctor(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "doctor not found", nil)
			return
		}
		common.JSONAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SavePackage handles POST /api/v1/admin/services and PUT /api/v1/admin/services/{id}.
func (h *AdminHandler) SavePackage(w http.ResponseWriter, r *http.Request) {
	var p ServicePackage
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if raw := chi.URLParam(r, "id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid service id", nil)
			return
		}
		p.ID = id
	}
	saved, err := h.Svc.SavePackage(r.Context(), p)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": saved})
}

// DeletePackage handles DELETE /api/v1/admin/services/{id}.
func (h *AdminHandler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid service id", nil)
		return
	}
	if err := h.Svc.RemovePackage(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "service not found", nil)
			return
		}
		common.JSONAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
