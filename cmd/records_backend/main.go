package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/SscSPs/client_records_app/cmd/docs"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/client_records_app/internal/core/ports/services"
	"github.com/SscSPs/client_records_app/internal/core/services"
	"github.com/SscSPs/client_records_app/internal/handlers"
	"github.com/SscSPs/client_records_app/internal/middleware"
	"github.com/SscSPs/client_records_app/internal/notifications"
	"github.com/SscSPs/client_records_app/internal/platform/config"
	"github.com/SscSPs/client_records_app/internal/repositories/database/pgsql"
	"github.com/SscSPs/client_records_app/internal/utils"
	"github.com/SscSPs/client_records_app/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 20 * time.Second

// @title Client Records API
// @version 1.0
// @description Shared client payment records with optimistic concurrency.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Records storage is optional at boot: without PGSQL_URL every records request answers 503.
	var dbPool *pgxpool.Pool
	repos := portsrepo.RepositoryProvider{}
	var ready handlers.ReadinessCheck
	if cfg.DatabaseURL != "" {
		dbPool, err = database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.ClosePgxPool(dbPool)

		logger.Info("Running database migrations...")
		if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			logger.Error("Failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}

		repos = pgsql.NewRepositoryProvider(dbPool)
		ready = dbPool.Ping
	}

	posthogClient := utils.InitializePosthogClient(cfg.PosthogAPIKey, cfg.PosthogEndpoint, logger)
	defer posthogClient.Close()

	publisher, closePublishers, err := notifications.NewFromConfig(cfg.Notify, posthogClient)
	if err != nil {
		logger.Error("Failed to configure notifications", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closePublishers()

	container, err := services.NewServiceContainer(cfg, repos, publisher)
	if err != nil {
		logger.Error("Failed to create services", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Records store ready", slog.String("migration_mode", cfg.Records.MigrationMode))

	limiterInstance, err := middleware.NewLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid RATE_LIMIT", slog.String("rate", cfg.RateLimit), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Records-Source", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, container, handlers.RouteDeps{
		Limiter: limiterInstance,
		Posthog: posthogClient,
		Ready:   ready,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}
	if drainer, ok := container.Records.(portssvc.Drainer); ok {
		if err := drainer.Drain(shutdownCtx); err != nil {
			logger.Warn("Pending payment notifications were not delivered before shutdown", slog.String("error", err.Error()))
		}
	}
	logger.Info("Server stopped")
}
