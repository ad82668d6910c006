package catalog_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sehaty-app/backend-sehaty/internal/catalog"
	"github.com/sehaty-app/backend-sehaty/internal/common"
)

type memCatalog struct {
	doctors      map[uuid.UUID]catalog.Doctor
	packages     map[uuid.UUID]catalog.ServicePackage
	listDoctorN  int
	listPackageN int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		doctors:  map[uuid.UUID]catalog.Doctor{},
		packages: map[uuid.UUID]catalog.ServicePackage{},
	}
}

func (m *memCatalog) ListDoctors(_ context.Context, specialty, query string) ([]catalog.Doctor, error) {
	m.listDoctorN++
	var out []catalog.Doctor
	for _, d := range m.doctors {
		if !d.Active {
			continue
		}
		if specialty != "" && d.Specialty != specialty {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(query)) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memCatalog) GetDoctor(_ context.Context, id uuid.UUID) (catalog.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return catalog.Doctor{}, catalog.ErrNotFound
	}
	return d, nil
}

func (m *memCatalog) UpsertDoctor(_ context.Context, d catalog.Doctor) (catalog.Doctor, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.doctors[d.ID] = d
	return d, nil
}

func (m *memCatalog) DeleteDoctor(_ context.Context, id uuid.UUID) error {
	if _, ok := m.doctors[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(m.doctors, id)
	return nil
}

func (m *memCatalog) ListPackages(_ context.Context, category string) ([]catalog.ServicePackage, error) {
	m.listPackageN++
	var out []catalog.ServicePackage
	for _, p := range m.packages {
		if !p.Active {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memCatalog) GetPackage(_ context.Context, id uuid.UUID) (catalog.ServicePackage, error) {
	p, ok := m.packages[id]
	if !ok {
		return catalog.ServicePackage{}, catalog.ErrNotFound
	}
	return p, nil
}

func (m *memCatalog) UpsertPackage(_ context.Context, p catalog.ServicePackage) (catalog.ServicePackage, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.packages[p.ID] = p
	return p, nil
}

func (m *memCatalog) DeletePackage(_ context.Context, id uuid.UUID) error {
	if _, ok := m.packages[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(m.packages, id)
	return nil
}

func newService(t *testing.T) (*catalog.Service, *memCatalog) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemCatalog()
	return &catalog.Service{
		Store: store,
		Cache: catalog.NewCache(client, time.Minute),
	}, store
}

func TestDoctorsCacheAside(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := store.UpsertDoctor(ctx, catalog.Doctor{
		Name:      "د. منى عبد الرحمن",
		Specialty: "cardiology",
		Price:     "350",
		Active:    true,
	})
	require.NoError(t, err)

	first, err := svc.Doctors(ctx, "cardiology", "")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, store.listDoctorN)

	// Second read must be served from cache.
	second, err := svc.Doctors(ctx, "cardiology", "")
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, store.listDoctorN)
}

func TestDoctorsNameQueryBypassesCache(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := store.UpsertDoctor(ctx, catalog.Doctor{Name: "Dr. Omar", Specialty: "dermatology", Active: true})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		list, err := svc.Doctors(ctx, "", "omar")
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	require.Equal(t, 2, store.listDoctorN)
}

func TestSaveDoctorInvalidatesCache(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Doctors(ctx, "", "")
	require.NoError(t, err)
	require.Equal(t, 1, store.listDoctorN)

	_, err = svc.SaveDoctor(ctx, catalog.Doctor{Name: "Dr. Salma", Specialty: "pediatrics", Active: true})
	require.NoError(t, err)

	list, err := svc.Doctors(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, store.listDoctorN)
}

func TestSaveDoctorValidation(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.SaveDoctor(context.Background(), catalog.Doctor{Specialty: "cardiology"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = svc.SaveDoctor(context.Background(), catalog.Doctor{Name: "Dr. Hany"})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestPackagesCacheInvalidation(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.SavePackage(ctx, catalog.ServicePackage{
		Category: catalog.CategoryNursing,
		Name:     "رعاية منزلية أسبوعية",
		Price:    "1200",
		Active:   true,
	})
	require.NoError(t, err)

	list, err := svc.Packages(ctx, catalog.CategoryNursing)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, store.listPackageN)

	_, err = svc.Packages(ctx, catalog.CategoryNursing)
	require.NoError(t, err)
	require.Equal(t, 1, store.listPackageN)

	require.NoError(t, svc.RemovePackage(ctx, list[0].ID))

	list, err = svc.Packages(ctx, catalog.CategoryNursing)
	require.NoError(t, err)
	require.Empty(t, list)
	require.Equal(t, 2, store.listPackageN)
}

func TestSavePackageRejectsUnknownCategory(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.SavePackage(context.Background(), catalog.ServicePackage{
		Category: "spa",
		Name:     "Massage",
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestRemoveDoctorNotFound(t *testing.T) {
	svc, _ := newService(t)
	err := svc.RemoveDoctor(context.Background(), uuid.New())
	require.ErrorIs(t, err, catalog.ErrNotFound)
}
