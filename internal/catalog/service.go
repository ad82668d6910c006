package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sehaty-app/backend-sehaty/internal/common"
)

const cachePrefix = "catalog:"

// Service orchestrates catalog queries with cache-aside reads.
type Service struct {
	Store Store
	Cache *Cache
}

// Doctors lists active doctors, filtered by specialty and name query. The
// unfiltered and specialty-filtered lists are served from cache when warm.
func (s *Service) Doctors(ctx context.Context, specialty, query string) ([]Doctor, error) {
	specialty = strings.TrimSpace(specialty)
	query = strings.TrimSpace(query)

	cacheKey := ""
	if query == "" {
		cacheKey = fmt.Sprintf("%sdoctors:%s", cachePrefix, specialty)
		var cached []Doctor
		if hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}
	list, err := s.Store.ListDoctors(ctx, specialty, query)
	if err != nil {
		return nil, err
	}
	if cacheKey != "" {
		_ = s.Cache.SetJSON(ctx, cacheKey, list)
	}
	return list, nil
}

// Doctor fetches a single doctor by id.
func (s *Service) Doctor(ctx context.Context, id uuid.UUID) (Doctor, error) {
	return s.Store.GetDoctor(ctx, id)
}

// Packages lists active service packages for a category.
func (s *Service) Packages(ctx context.Context, category string) ([]ServicePackage, error) {
	category = strings.TrimSpace(category)
	cacheKey := fmt.Sprintf("%spackages:%s", cachePrefix, category)
	var cached []ServicePackage
	if hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	list, err := s.Store.ListPackages(ctx, category)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, cacheKey, list)
	return list, nil
}

// Package fetches a single service package by id.
func (s *Service) Package(ctx context.Context, id uuid.UUID) (ServicePackage, error) {
	return s.Store.GetPackage(ctx, id)
}

// SaveDoctor creates or updates a doctor and invalidates cached lists.
func (s *Service) SaveDoctor(ctx context.Context, d Doctor) (Doctor, error) {
	if strings.TrimSpace(d.Name) == "" {
		return Doctor{}, common.NewAppError("VALIDATION_ERROR", "name is required", 400, nil)
	}
	if strings.TrimSpace(d.Specialty) == "" {
		return Doctor{}, common.NewAppError("VALIDATION_ERROR", "specialty is required", 400, nil)
	}
	saved, err := s.Store.UpsertDoctor(ctx, d)
	if err != nil {
		return Doctor{}, err
	}
	_ = s.Cache.InvalidatePrefix(ctx, cachePrefix+"doctors:")
	return saved, nil
}

// RemoveDoctor deletes a doctor and invalidates cached lists.
func (s *Service) RemoveDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.DeleteDoctor(ctx, id); err != nil {
		return err
	}
	return s.Cache.InvalidatePrefix(ctx, cachePrefix+"doctors:")
}

// SavePackage creates or updates a service package and invalidates cached lists.
func (s *Service) SavePackage(ctx context.Context, p ServicePackage) (ServicePackage, error) {
	if strings.TrimSpace(p.Name) == "" {
		return ServicePackage{}, common.NewAppError("VALIDATION_ERROR", "name is required", 400, nil)
	}
	switch p.Category {
	case CategoryClinic, CategorySurgery, CategoryNursing, CategoryPhysiotherapy, CategoryLab, CategoryRadiology:
	default:
		return ServicePackage{}, common.NewAppError("VALIDATION_ERROR", "unsupported category", 400, nil)
	}
	saved, err := s.Store.UpsertPackage(ctx, p)
	if err != nil {
		return ServicePackage{}, err
	}
	_ = s.Cache.InvalidatePrefix(ctx, cachePrefix+"packages:")
	return saved, nil
}

// RemovePackage deletes a service package and invalidates cached lists.
func (s *Service) RemovePackage(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.DeletePackage(ctx, id); err != nil {
		return err
	}
	return s.Cache.InvalidatePrefix(ctx, cachePrefix+"packages:")
}
