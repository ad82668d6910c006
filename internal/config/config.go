package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	PublicBaseURL      string

	// Kashier payment gateway settings. APIKey signs outbound checkout
	// requests; WebhookSecret verifies inbound callbacks. The two must be
	// distinct values and are never logged or echoed in responses.
	KashierMerchantID      string
	KashierAPIKey          string
	KashierWebhookSecret   string
	KashierCurrency        string
	KashierMode            string
	KashierWebhookURL      string
	KashierCheckoutBaseURL string

	AccessTokenTTL    time.Duration
	IdempotencyTTL    time.Duration
	WebhookReplayTTL  time.Duration
	CatalogCacheTTL   time.Duration
	SettingsCacheTTL  time.Duration
	PaymentRateLimit  string
	NotifyEmailFrom   string
	NotifyEmailTopics map[string]bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PublicBaseURL:      strings.TrimSpace(k.String("PUBLIC_BASE_URL")),

		KashierMerchantID:      strings.TrimSpace(k.String("KASHIER_MERCHANT_ID")),
		KashierAPIKey:          strings.TrimSpace(k.String("KASHIER_API_KEY")),
		KashierWebhookSecret:   strings.TrimSpace(k.String("KASHIER_SECRET_KEY")),
		KashierCurrency:        valueOrDefault(k.String("KASHIER_CURRENCY"), "EGP"),
		KashierMode:            valueOrDefault(k.String("KASHIER_MODE"), "live"),
		KashierWebhookURL:      strings.TrimSpace(k.String("KASHIER_WEBHOOK_URL")),
		KashierCheckoutBaseURL: valueOrDefault(k.String("KASHIER_CHECKOUT_BASE_URL"), "https://payments.kashier.io"),

		AccessTokenTTL:   parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "15m"),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		SettingsCacheTTL: parseDuration(k.String("SETTINGS_CACHE_TTL"), "10m"),
		PaymentRateLimit: valueOrDefault(k.String("PAYMENT_RATE_LIMIT"), "30-M"),
		NotifyEmailFrom:  valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@sehaty.example"),
		NotifyEmailTopics: parseTopicToggles(k.String("NOTIFY_EMAIL_TOPICS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseTopicToggles parses "topic:on,topic:off" pairs; bare topics default to on.
func parseTopicToggles(value string) map[string]bool {
	entries := splitAndTrim(value)
	if len(entries) == 0 {
		return nil
	}
	toggles := make(map[string]bool, len(entries))
	for _, entry := range entries {
		topic, state, found := strings.Cut(entry, ":")
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		if !found {
			toggles[topic] = true
			continue
		}
		switch strings.ToLower(strings.TrimSpace(state)) {
		case "off", "false", "0", "no":
			toggles[topic] = false
		default:
			toggles[topic] = true
		}
	}
	return toggles
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
