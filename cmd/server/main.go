package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sommetlabs/sommet/internal"
	"github.com/sommetlabs/sommet/internal/ai"
	"github.com/sommetlabs/sommet/internal/ai/anthropic"
	"github.com/sommetlabs/sommet/internal/ai/mock"
	"github.com/sommetlabs/sommet/internal/billing"
	"github.com/sommetlabs/sommet/internal/email"
	"github.com/sommetlabs/sommet/internal/eventbus"
	"github.com/sommetlabs/sommet/internal/handler"
	"github.com/sommetlabs/sommet/internal/jobs"
	"github.com/sommetlabs/sommet/internal/metrics"
	"github.com/sommetlabs/sommet/internal/middleware"
	"github.com/sommetlabs/sommet/internal/repository"
	"github.com/sommetlabs/sommet/internal/service"
	"github.com/sommetlabs/sommet/internal/storage"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations over database/sql; the pool below handles queries
	migrateDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := migrateDB.PingContext(ctx); err != nil {
		migrateDB.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := internal.RunMigrations(migrateDB); err != nil {
		migrateDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	migrateDB.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("connection pool failed: %w", err)
	}
	defer pool.Close()
	logger.Info("Database ready")

	// Initialize repositories
	userRepo := repository.NewUserRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	entitlementRepo := repository.NewEntitlementRepo(pool)
	documentRepo := repository.NewDocumentRepo(pool)
	boardRepo := repository.NewBoardRepo(pool)
	exportRepo := repository.NewExportRepo(pool)
	txManager := repository.NewTxManager(pool)
	accountRepo := repository.NewAccountRepo(txManager)

	// Initialize email service
	emailService, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("email initialization failed: %w", err)
	}

	// Initialize file storage
	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize AI provider
	provider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}
	logger.Info("AI provider ready", "provider", cfg.AIProvider)

	// Initialize billing. Left nil when Stripe is not configured; billing
	// handlers report "not available" and the webhook endpoint no-ops.
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ExplorerPriceID: cfg.StripeExplorerPriceID,
			BuilderPriceID:  cfg.StripeBuilderPriceID,
		})
		logger.Info("Billing ready")
	} else {
		logger.Warn("Stripe not configured, billing disabled")
	}

	// Initialize services
	bus := eventbus.New()
	entitlementService := service.NewEntitlementService(entitlementRepo, bus, logger)
	userService := service.NewUserService(userRepo, sessionRepo, accountRepo, emailService, logger)
	transitionService := service.NewPlanTransitionService(txManager, bus, emailService, logger)
	generatorService := service.NewGeneratorService(provider, entitlementService, documentRepo, logger)
	boardService := service.NewBoardService(boardRepo, entitlementService, logger)
	exportService := service.NewExportService(exportRepo, documentRepo, entitlementService, store, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	authLimiter := middleware.NewAuthRateLimiter(logger)
	requestLogging := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, authLimiter, logger, isSecure)
	entitlementHandler := handler.NewEntitlementHandler(entitlementService, logger)
	generateHandler := handler.NewGenerateHandler(generatorService, logger)
	contentHandler := handler.NewContentHandler(generatorService, logger)
	boardHandler := handler.NewBoardHandler(boardService, logger)
	exportHandler := handler.NewExportHandler(exportService, logger)
	billingHandler := handler.NewBillingHandler(billingService, userService, cfg.BaseURL, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, userService, transitionService, logger)
	healthHandler := handler.NewHealthHandler(pool, version, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check and metrics
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Locally stored exports are served straight off disk
	if cfg.StorageProvider == storage.ProviderLocal {
		fileServer := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", fileServer))
	}

	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	protected := func(h http.HandlerFunc) http.Handler {
		return requireUser(h)
	}

	// Auth routes (register/login are public and rate limited per client IP)
	mux.Handle("POST /api/auth/register", authLimiter.LimitRegister(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", authLimiter.LimitLogin(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/auth/me", protected(authHandler.Me))

	// Stripe webhook (authenticated by signature, not session)
	mux.HandleFunc("POST /webhooks/stripe", webhookHandler.HandleStripeWebhook)

	// Protected API routes

	mux.Handle("GET /api/entitlements", protected(entitlementHandler.GetUsage))

	mux.Handle("POST /api/ideas", protected(generateHandler.GenerateIdeas))
	mux.Handle("POST /api/analyses", protected(generateHandler.AnalyzeMarket))
	mux.Handle("POST /api/blueprints", protected(generateHandler.BuildBlueprint))

	mux.Handle("GET /api/documents", protected(contentHandler.ListDocuments))
	mux.Handle("GET /api/documents/{id}", protected(contentHandler.GetDocument))
	mux.Handle("DELETE /api/documents/{id}", protected(contentHandler.DeleteDocument))

	mux.Handle("GET /api/board", protected(boardHandler.GetBoard))
	mux.Handle("PUT /api/board", protected(boardHandler.SaveBoard))

	mux.Handle("POST /api/documents/{id}/export", protected(exportHandler.CreateExport))
	mux.Handle("GET /api/exports", protected(exportHandler.ListExports))

	mux.Handle("POST /api/billing/checkout", protected(billingHandler.CreateCheckout))
	mux.Handle("POST /api/billing/portal", protected(billingHandler.OpenPortal))
	mux.Handle("POST /api/billing/cancel", protected(billingHandler.CancelSubscription))

	// Outer middleware applied to every route
	root := middleware.Stack(
		securityHeaders.Handler,
		requestLogging.Handler,
		metrics.Middleware,
	)(mux)

	// ==========================================================================
	// Start server and background jobs
	// ==========================================================================

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	go jobs.NewSessionCleanup(userService, jobs.DefaultCleanupInterval, logger).Run(jobCtx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "version", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")
	cancelJobs()

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage selects the file storage backend from configuration.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	case storage.ProviderLocal:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}

// newAIProvider selects the AI backend from configuration.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
	case "mock":
		return mock.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
