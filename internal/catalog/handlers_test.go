package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sehaty-app/backend-sehaty/internal/catalog"
)

func newCatalogRouter(svc *catalog.Service) http.Handler {
	h := &catalog.Handler{Svc: svc}
	admin := &catalog.AdminHandler{Svc: svc}

	r := chi.NewRouter()
	r.Get("/doctors", h.ListDoctors)
	r.Get("/doctors/{id}", h.GetDoctor)
	r.Get("/services", h.ListPackages)
	r.Get("/services/{id}", h.GetPackage)
	r.Post("/admin/doctors", admin.SaveDoctor)
	r.Put("/admin/doctors/{id}", admin.SaveDoctor)
	r.Delete("/admin/doctors/{id}", admin.DeleteDoctor)
	r.Post("/admin/services", admin.SavePackage)
	r.Delete("/admin/services/{id}", admin.DeletePackage)
	return r
}

func TestDoctorEndpoints(t *testing.T) {
	svc, _ := newService(t)
	router := newCatalogRouter(svc)

	body := `{"name":"د. أحمد فؤاد","specialty":"cardiology","price":"400","active":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/doctors", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Data catalog.Doctor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors?specialty=cardiology", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Data []catalog.Doctor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	require.Equal(t, "د. أحمد فؤاد", listed.Data[0].Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors/"+created.Data.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/doctors/"+created.Data.ID.String(), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors/"+created.Data.ID.String(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDoctorInvalidID(t *testing.T) {
	svc, _ := newService(t)
	router := newCatalogRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDoctorsEmptyIsArray(t *testing.T) {
	svc, _ := newService(t)
	router := newCatalogRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestPackageEndpoints(t *testing.T) {
	svc, store := newService(t)
	router := newCatalogRouter(svc)

	pkg, err := store.UpsertPackage(context.Background(), catalog.ServicePackage{
		Category: catalog.CategoryLab,
		Name:     "صورة دم كاملة",
		Price:    "150",
		Active:   true,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/services?category=lab", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Data []catalog.ServicePackage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/services/"+pkg.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSavePackageRejectsBadPayload(t *testing.T) {
	svc, _ := newService(t)
	router := newCatalogRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/services", strings.NewReader("{not json")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
