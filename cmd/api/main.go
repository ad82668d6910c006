package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/sehaty-app/backend-sehaty/internal/app"
	"github.com/sehaty-app/backend-sehaty/internal/auth"
	"github.com/sehaty-app/backend-sehaty/internal/booking"
	"github.com/sehaty-app/backend-sehaty/internal/catalog"
	"github.com/sehaty-app/backend-sehaty/internal/common"
	"github.com/sehaty-app/backend-sehaty/internal/config"
	"github.com/sehaty-app/backend-sehaty/internal/events"
	"github.com/sehaty-app/backend-sehaty/internal/health"
	"github.com/sehaty-app/backend-sehaty/internal/kashier"
	"github.com/sehaty-app/backend-sehaty/internal/notify"
	"github.com/sehaty-app/backend-sehaty/internal/obs"
	"github.com/sehaty-app/backend-sehaty/internal/payment"
	"github.com/sehaty-app/backend-sehaty/internal/prescription"
	"github.com/sehaty-app/backend-sehaty/internal/ratelimit"
	"github.com/sehaty-app/backend-sehaty/internal/security"
	"github.com/sehaty-app/backend-sehaty/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "sehaty")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "sehaty-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := app.NewDatabase(ctx, cfg.DatabaseURL, "sehaty-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := app.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	redisClient, err := app.NewRedis(ctx, cfg.RedisURL, metricsEnabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskRedis, err := app.TaskRedisOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task queue")
	}
	taskClient := asynq.NewClient(taskRedis)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	authStore := auth.PGStore{Pool: pool}
	authService, err := auth.NewService(auth.Config{
		Store:          authStore,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService}
	authMiddleware := auth.Middleware{Service: authService}

	notifyStore := notify.PGStore{Pool: pool}
	bus := &events.Bus{
		Store: events.PGStore{Pool: pool},
		Notifiers: []events.Notifier{
			&notify.InApp{Store: notifyStore, Log: logger},
			&notify.Email{
				Enqueuer: taskClient,
				Dir:      userDirectory{store: authStore},
				Topics:   cfg.NotifyEmailTopics,
				Log:      logger,
			},
		},
	}

	catalogService := &catalog.Service{
		Store: catalog.PGStore{Pool: pool},
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	}
	catalogHandler := &catalog.Handler{Svc: catalogService}
	catalogAdmin := &catalog.AdminHandler{Svc: catalogService}

	bookingService := &booking.Service{
		Store:    booking.PGStore{Pool: pool},
		Validate: validate,
		Events:   bus,
	}
	bookingHandler := &booking.Handler{Svc: bookingService}
	bookingAdmin := &booking.AdminHandler{Svc: bookingService}

	gateway := kashier.Config{
		MerchantID:      cfg.KashierMerchantID,
		APIKey:          cfg.KashierAPIKey,
		WebhookSecret:   cfg.KashierWebhookSecret,
		DefaultCurrency: cfg.KashierCurrency,
		Mode:            cfg.KashierMode,
		CheckoutBaseURL: cfg.KashierCheckoutBaseURL,
		WebhookURL:      cfg.KashierWebhookURL,
	}
	paymentStore := payment.PGStore{Pool: pool}
	paymentHandler := &payment.Handler{Kashier: gateway, Store: paymentStore, Log: logger}
	paymentWebhook := payment.Webhook{
		Kashier:   gateway,
		Store:     paymentStore,
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Settler:   bookingService,
		Events:    bus,
		Log:       logger,
	}

	prescriptionService := &prescription.Service{
		Store:    prescription.PGStore{Pool: pool},
		Validate: validate,
		Events:   bus,
	}
	prescriptionHandler := &prescription.Handler{Svc: prescriptionService}
	prescriptionAdmin := &prescription.AdminHandler{Svc: prescriptionService}

	settingsService := &settings.Service{
		Store: settings.PGStore{Pool: pool},
		Redis: redisClient,
		TTL:   cfg.SettingsCacheTTL,
	}
	settingsHandler := &settings.Handler{Svc: settingsService}
	settingsAdmin := &settings.AdminHandler{Svc: settingsService}

	notifyHandler := &notify.Handler{Store: notifyStore}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	paymentLimiter, err := ratelimit.New(limiterStore, cfg.PaymentRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise payment rate limiter")
	}
	paymentRate := ratelimit.Middleware{Limiter: paymentLimiter}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: envInt64("SECURE_MAX_BODY_BYTES", 1<<20)}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{db: pool, redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/doctors", catalogHandler.ListDoctors)
		v.Get("/doctors/{id}", catalogHandler.GetDoctor)
		v.Get("/services", catalogHandler.ListPackages)
		v.Get("/services/{id}", catalogHandler.GetPackage)
		v.Get("/settings", settingsHandler.Get)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Route("/bookings", func(b chi.Router) {
			b.Use(authMiddleware.RequireAuth)
			b.Get("/", bookingHandler.ListMine)
			b.With(idem.Middleware).Post("/", bookingHandler.Create)
			b.Post("/{id}/cancel", bookingHandler.Cancel)
		})

		v.Route("/prescriptions", func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Get("/", prescriptionHandler.ListMine)
			p.With(idem.Middleware).Post("/", prescriptionHandler.Submit)
		})

		v.Route("/payments", func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Use(paymentRate.Handler)
			p.With(idem.Middleware).Post("/", paymentHandler.Create)
			p.Get("/{orderId}/status", paymentHandler.Status)
		})

		v.Route("/notifications", func(n chi.Router) {
			n.Use(authMiddleware.RequireAuth)
			n.Get("/", notifyHandler.List)
			n.Post("/read-all", notifyHandler.MarkAllRead)
			n.Post("/{id}/read", notifyHandler.MarkRead)
		})

		v.With(paymentRate.Handler).Post("/webhooks/kashier", paymentWebhook.Handle)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
			admin.Post("/doctors", catalogAdmin.SaveDoctor)
			admin.Put("/doctors/{id}", catalogAdmin.SaveDoctor)
			admin.Delete("/doctors/{id}", catalogAdmin.DeleteDoctor)
			admin.Post("/services", catalogAdmin.SavePackage)
			admin.Put("/services/{id}", catalogAdmin.SavePackage)
			admin.Delete("/services/{id}", catalogAdmin.DeletePackage)
			admin.Get("/bookings", bookingAdmin.List)
			admin.Patch("/bookings/{id}/status", bookingAdmin.SetStatus)
			admin.Get("/prescriptions", prescriptionAdmin.List)
			admin.Patch("/prescriptions/{id}/status", prescriptionAdmin.SetStatus)
			admin.Put("/settings", settingsAdmin.Update)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := srv.Shutdown(stopCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

// userDirectory resolves notification recipients through the auth store.
type userDirectory struct {
	store auth.PGStore
}

func (d userDirectory) EmailForUser(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
