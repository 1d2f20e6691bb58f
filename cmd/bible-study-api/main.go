// Package main is the entry point for the study-guide API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/graceverse/study-api/internal/authtoken"
	"github.com/graceverse/study-api/internal/config"
	"github.com/graceverse/study-api/internal/database"
	"github.com/graceverse/study-api/internal/http/handlers"
	"github.com/graceverse/study-api/internal/http/mw"
	"github.com/graceverse/study-api/internal/llm"
	"github.com/graceverse/study-api/internal/lock"
	"github.com/graceverse/study-api/internal/logging"
	"github.com/graceverse/study-api/internal/ratelimit"
	"github.com/graceverse/study-api/internal/repository"
	"github.com/graceverse/study-api/internal/service"
	"github.com/graceverse/study-api/internal/version"
)

func main() {
	// A missing .env file is fine outside local development.
	_ = godotenv.Load()

	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting study-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if schemaVersion, migrationCount, err := database.SchemaVersion(db); err != nil {
		logger.Warn("failed to read schema version", "error", err)
	} else {
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	repos := repository.NewRepositories(db)

	// A Redis URL configures cluster-wide locking and rate limiting; its
	// absence falls back to process-local implementations suitable for a
	// single instance (internal/lock, internal/ratelimit).
	var locker lock.Locker
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		locker = lock.NewRedis(client)
		limiter = ratelimit.NewRedis(client)
		logger.Info("using redis-backed lock and rate limiter")
	} else {
		locker = lock.NewLocal()
		limiter = ratelimit.NewMemory()
		logger.Info("using process-local lock and rate limiter")
	}

	llmGateway := llm.NewGateway(llm.Config{
		UseMock:         cfg.UseMock,
		Provider:        cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		Timeout:         cfg.LLMTimeout,
		MaxRetries:      cfg.LLMMaxRetries,
	})

	issuer := authtoken.NewIssuer([]byte(cfg.JWTSecret), []byte(cfg.AnonJWTSecret), cfg.JWTExpiry, cfg.AnonSessionTTL)
	services := service.New(repos, llmGateway, locker, cfg, logger)
	generationLimiter := mw.NewGenerationRateLimiter(limiter, cfg.AnonRateLimit, cfg.AnonRateWindow, cfg.StandardRateLimit, cfg.StandardRateWindow)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	services.Session.StartSweeper(sweepCtx, time.Hour, logger)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.APIVersion())
	// Generation gets the full budget for provider retries and failover; the
	// per-attempt provider timeout is cfg.LLMTimeout.
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:          15 * time.Second,
		Extended:         60 * time.Second,
		ExtendedPatterns: []string{"/study-generate"},
	}))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", mw.AnonSessionHeader, handlers.SignatureHeader},
		ExposedHeaders:   []string{"X-Request-ID", "X-Anonymous-Session-Token", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(httprate.LimitByIP(100, time.Minute))

	humaConfig := huma.DefaultConfig("Study Guide API", v.Version)
	humaConfig.Info.Description = "Generates and serves cached Bible study guides, tracks ownership, token spend, subscriptions, and spaced-repetition memory practice."
	humaConfig.Servers = []*huma.Server{{URL: cfg.BaseURL, Description: "API Server"}}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Bearer token: either an authenticated-user token or an anonymous-session token.",
		},
	}
	api := humachi.New(router, humaConfig)

	hiddenConfig := huma.DefaultConfig("Study Guide API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	huma.Get(api, "/api/v1/health", handlers.HealthCheck)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	generationHandler := handlers.NewGenerationHandler(services.Generation, generationLimiter)
	studyGuideHandler := handlers.NewStudyGuideHandler(repos.Ownership)
	feedbackHandler := handlers.NewFeedbackHandler(repos.Catalog)
	catalogHandler := handlers.NewCatalogHandler(repos.Catalog)
	authSessionHandler := handlers.NewAuthSessionHandler(services.Session, issuer)
	billingHandler := handlers.NewBillingHandler(services.Plans, services.Ledger, cfg)
	webhookHandler := handlers.NewWebhookHandler(services.Subscription, logger)
	practiceHandler := handlers.NewMemoryPracticeHandler(services.Review)

	// Endpoints that accept either a user or an anonymous principal: resolve
	// one on every request, minting a fresh anonymous session when absent.
	router.Group(func(r chi.Router) {
		r.Use(mw.PrincipalContext(issuer, services.Session))
		r.Post("/api/v1/study-generate", generationHandler.Generate)
	})

	// Feedback accepts any caller; an unauthenticated one is recorded without
	// a principal rather than being handed a session it never asked for.
	router.Group(func(r chi.Router) {
		r.Use(mw.OptionalPrincipal(issuer))
		r.Post("/api/v1/feedback", feedbackHandler.Create)
	})

	// Endpoints that require a resolved principal (user or anonymous) but
	// never mint a new session.
	router.Group(func(r chi.Router) {
		r.Use(mw.RequirePrincipal(issuer))
		r.Get("/api/v1/study-guides", studyGuideHandler.List)
		r.Get("/api/v1/topics-recommended", catalogHandler.Topics)
		r.Get("/api/v1/topics-categories", catalogHandler.Categories)
		r.Get("/api/v1/daily-verse", catalogHandler.DailyVerse)
		r.Get("/api/v1/token-status", billingHandler.TokenStatus)
	})

	// Endpoints restricted to an authenticated user.
	router.Group(func(r chi.Router) {
		r.Use(mw.RequireUser(issuer))
		r.Post("/api/v1/study-guides", studyGuideHandler.Save)
		r.Post("/api/v1/purchase-tokens", billingHandler.PurchaseTokens)
		r.Post("/api/v1/submit-memory-practice", practiceHandler.Submit)
	})

	// Anonymous-session creation/migration resolves its own principal per
	// action; minting a session in middleware here would hand every
	// create_anonymous call a second, orphaned session.
	router.Group(func(r chi.Router) {
		r.Use(mw.OptionalPrincipal(issuer))
		r.Post("/api/v1/auth-session", authSessionHandler.Handle)
	})

	// No auth: OAuth callback and the signed payments webhook.
	router.Post("/api/v1/auth-callback", handlers.AuthCallback)
	router.Post("/api/v1/webhooks/payments", webhookHandler.Handle)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
