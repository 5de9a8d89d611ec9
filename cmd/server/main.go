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

	"github.com/DukeRupert/quotachat/internal"
	"github.com/DukeRupert/quotachat/internal/ai"
	"github.com/DukeRupert/quotachat/internal/ai/echo"
	"github.com/DukeRupert/quotachat/internal/ai/mock"
	"github.com/DukeRupert/quotachat/internal/cache"
	"github.com/DukeRupert/quotachat/internal/handler"
	"github.com/DukeRupert/quotachat/internal/metrics"
	"github.com/DukeRupert/quotachat/internal/middleware"
	"github.com/DukeRupert/quotachat/internal/service"
	"github.com/DukeRupert/quotachat/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize the ledger store
	checks := make(map[string]handler.Pinger)
	var st store.Store
	if cfg.UsesMemoryStore() {
		st = store.NewMemory()
		logger.Warn("Using in-memory store; ledger state is lost on restart")
	} else {
		db, err := openDatabase(ctx, cfg.DatabaseUrl, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		pg := store.NewPostgres(db)
		checks["database"] = pg
		st = pg
	}

	// Initialize bundle cache
	var bundleCache cache.Cache = cache.Noop{}
	if cfg.CacheEnabled() {
		redisCache, err := cache.NewRedis(ctx, cache.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
			Timeout:     time.Second,
		})
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisCache.Close()

		checks["cache"] = redisCache
		bundleCache = redisCache
		logger.Info("Bundle cache ready", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	// Initialize answer generator
	generator := ai.WithTimeout(newGenerator(cfg, logger), cfg.AIRequestTimeout)

	// Initialize services
	ledgerCfg := service.LedgerConfig{
		FreeMessagesPerMonth: cfg.FreeMessagesPerMonth,
		BundleCacheTTL:       cfg.CacheTTL,
	}
	chatService := service.NewChatService(st, generator, bundleCache, ledgerCfg, logger)
	subscriptionService := service.NewSubscriptionService(st, bundleCache, ledgerCfg, logger)
	usageService := service.NewUsageService(st, ledgerCfg, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow, logger)
	defer chatLimiter.Stop()
	chatLimitMw := middleware.NewRateLimitMiddleware(chatLimiter, logger)
	metricsAuthMw := middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword, logger)

	// Initialize handlers
	cookie := handler.VisitorCookieConfig{MaxAge: cfg.VisitorCookieMaxAge, Secure: isSecure}
	chatHandler := handler.NewChatHandler(chatService, cookie, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(chatService, subscriptionService, cookie, logger)
	usageHandler := handler.NewUsageHandler(usageService, nil, logger)
	healthHandler := handler.NewHealthHandler(checks, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	healthHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	chatHandler.RegisterRoutes(mux, chatLimitMw.Limit)
	subscriptionHandler.RegisterRoutes(mux)
	usageHandler.RegisterRoutes(mux)

	if cfg.AdminEnabled() {
		adminAuthMw := middleware.NewBasicAuthMiddleware("admin", cfg.AdminUsername, cfg.AdminPassword, logger)
		handler.NewAdminHandler(usageService, subscriptionService, nil, logger).RegisterRoutes(mux, adminAuthMw.Handler)
	} else {
		logger.Info("Admin routes disabled; set ADMIN_USERNAME and ADMIN_PASSWORD to enable")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	stack := middleware.Stack(
		securityMw.Handler,
		middleware.WithVisitor,
		loggingMw.Handler,
		metrics.Middleware,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started",
			"address", server.Addr,
			"env", cfg.Env,
			"free_messages_per_month", cfg.FreeMessagesPerMonth,
			"ai_provider", cfg.AIProvider,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a failed listener
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// openDatabase connects to PostgreSQL and applies migrations.
func openDatabase(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := internal.RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	return db, nil
}

func newGenerator(cfg *internal.Config, logger *slog.Logger) ai.Generator {
	switch cfg.AIProvider {
	case "mock":
		logger.Info("Using mock answer generator")
		return mock.New()
	default:
		logger.Info("Using echo answer generator", "delay", cfg.AnswerDelay)
		return echo.New(cfg.AnswerDelay, logger)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
