package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sehaty-app/backend-sehaty/internal/common"
)

const cacheKey = "settings:site"

// Site holds the storefront configuration shown to patients.
type Site struct {
	SiteName        string            `json:"siteName"`
	LogoURL         string            `json:"logoUrl,omitempty"`
	PrimaryColor    string            `json:"primaryColor,omitempty"`
	AccentColor     string            `json:"accentColor,omitempty"`
	SupportPhone    string            `json:"supportPhone"`
	SupportEmail    string            `json:"supportEmail"`
	WhatsApp        string            `json:"whatsapp,omitempty"`
	WorkingHours    string            `json:"workingHours,omitempty"`
	SocialLinks     map[string]string `json:"socialLinks,omitempty"`
	Announcement    string            `json:"announcement,omitempty"`
	MaintenanceMode bool              `json:"maintenanceMode"`
}

func defaults() Site {
	return Site{
		SiteName:     "Sehaty",
		SupportPhone: "",
		SupportEmail: "",
	}
}

// Store persists the settings document as a single jsonb row.
type Store interface {
	Get(ctx context.Context) (Site, error)
	Put(ctx context.Context, s Site) error
}

// PGStore is the Postgres-backed settings store.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (s PGStore) Get(ctx context.Context) (Site, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT doc FROM site_settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return defaults(), nil
	}
	if err != nil {
		return Site{}, err
	}
	var out Site
	if err := json.Unmarshal(raw, &out); err != nil {
		return Site{}, err
	}
	return out, nil
}

func (s PGStore) Put(ctx context.Context, site Site) error {
	raw, err := json.Marshal(site)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO site_settings (id, doc) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		raw)
	return err
}

// Service serves the site settings with a Redis cache in front of the
// Postgres document.
type Service struct {
	Store Store
	Redis *redis.Client
	TTL   time.Duration
}

// Get returns the current settings, preferring the cached copy.
func (s *Service) Get(ctx context.Context) (Site, error) {
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Site
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}
	site, err := s.Store.Get(ctx)
	if err != nil {
		return Site{}, err
	}
	if s.Redis != nil {
		if raw, err := json.Marshal(site); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, raw, s.TTL).Err()
		}
	}
	return site, nil
}

// Update replaces the settings document and drops the cached copy.
func (s *Service) Update(ctx context.Context, site Site) (Site, error) {
	if strings.TrimSpace(site.SiteName) == "" {
		return Site{}, common.NewAppError("VALIDATION_ERROR", "siteName is required", http.StatusBadRequest, nil)
	}
	if err := s.Store.Put(ctx, site); err != nil {
		return Site{}, err
	}
	if s.Redis != nil {
		_ = s.Redis.Del(ctx, cacheKey).Err()
	}
	return site, nil
}

// Handler exposes the public settings endpoint.
type Handler struct {
	Svc *Service
}

// Get handles GET /api/v1/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	site, err := h.Svc.Get(r.Context())
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": site})
}

// AdminHandler exposes the settings management endpoint.
type AdminHandler struct {
	Svc *Service
}

// Update handles PUT /api/v1/admin/settings.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	var site Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	updated, err := h.Svc.Update(r.Context(), site)
	if err != nil {
		common.JSONAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}
