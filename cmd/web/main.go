package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"familyvault/docs"
	"familyvault/internal/api"
	"familyvault/internal/auth"
	"familyvault/internal/clock"
	"familyvault/internal/config"
	"familyvault/internal/database"
	"familyvault/internal/database/migration"
	handlers "familyvault/internal/http/handler"
	"familyvault/internal/http/middleware"
	"familyvault/internal/logging"
	vaultotel "familyvault/internal/otel"
	"familyvault/internal/repository"
	"familyvault/internal/repository/memory"
	"familyvault/internal/repository/postgres"
	"familyvault/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	sessionIdleTTL  = 12 * time.Hour
)

// @title Family Vault
// @version 1.0
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.New(os.Stdout, time.Local)
	slog.SetDefault(logger)

	shutdownTracing, err := vaultotel.Init(ctx, vaultotel.SettingsFromEnv(), logger)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	store, db, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open local storage: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	apiMetrics, err := api.NewMetrics(reg)
	if err != nil {
		log.Fatalf("failed to register api metrics: %v", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}

	// Each browser signs in on its own; the refresh-token identity is
	// vaultctl's and is never handed to web visitors.
	var codeFlow *auth.CodeFlow
	if cfg.OAuth.CodeFlowEnabled() {
		codeFlow, err = auth.NewCodeFlow(cfg.OAuth)
		if err != nil {
			log.Fatalf("failed to configure oauth: %v", err)
		}
	}
	if cfg.OAuth.RefreshToken != "" {
		logger.Warn("oauth_refresh_token_ignored", slog.String("reason", "operator identity is only used by vaultctl"))
	}

	sessions := service.NewManager(service.Options{
		API:     cfg.API,
		UI:      cfg.UI,
		Storage: store,
		Metrics: apiMetrics,
		Clock:   clock.Real(),
		Logger:  logger,
	}, sessionIdleTTL)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    25 * 1024 * 1024,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	deps := handlers.Deps{
		Sessions:     sessions,
		Limiter:      middleware.NewKeyedRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 10*time.Minute),
		CookieSecure: cfg.CookieSecure,
		OAuth:        codeFlow,
	}
	if db != nil {
		deps.DB = db
	}
	handlers.RegisterRoutes(app, deps)

	addr := ":" + cfg.Port
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", addr), slog.String("vault_api", cfg.API.BaseURL))
		srvErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", slog.String("error", err.Error()))
	}
}

// openStorage picks the local storage backend named by STORE_DRIVER.
// The returned db is nil for the in-memory store.
func openStorage(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (repository.ScopedStorage, *sql.DB, error) {
	if cfg.StoreDriver != "postgres" {
		logger.Info("using in-memory local storage")
		return memory.NewLocalStorage(), nil, nil
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewLocalStoragePostgres(db), db, nil
}
