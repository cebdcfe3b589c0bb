package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SscSPs/client_records_app/internal/admincli"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	"github.com/SscSPs/client_records_app/internal/notifications"
	"github.com/SscSPs/client_records_app/internal/platform/config"
	"github.com/SscSPs/client_records_app/internal/repositories/database/pgsql"
	"github.com/SscSPs/client_records_app/internal/utils"
	"github.com/SscSPs/client_records_app/pkg/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := admincli.NewRootCmd(admincli.Deps{
		LoadConfig:       config.LoadConfig,
		OpenRepositories: openRepositories,
		Migrate: func(cfg *config.Config, logger *slog.Logger) error {
			return database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger)
		},
		RunWorker: runWorker,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func openRepositories(ctx context.Context, cfg *config.Config) (portsrepo.RepositoryProvider, func(), error) {
	if cfg.DatabaseURL == "" {
		return portsrepo.RepositoryProvider{}, nil, fmt.Errorf("PGSQL_URL is required")
	}
	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, true)
	if err != nil {
		return portsrepo.RepositoryProvider{}, nil, err
	}
	return pgsql.NewRepositoryProvider(pool), func() { database.ClosePgxPool(pool) }, nil
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	posthogClient := utils.InitializePosthogClient(cfg.PosthogAPIKey, cfg.PosthogEndpoint, logger)
	defer posthogClient.Close()

	deliver, closeDelivery, err := notifications.NewFromConfig(cfg.Notify.ForWorker(), posthogClient)
	if err != nil {
		return err
	}
	defer closeDelivery()

	srv := notifications.NewWorkerServer(cfg.Notify.RedisAddr, cfg.Notify.RedisPassword, cfg.Notify.RedisDB, cfg.Notify.WorkerConcurrency, logger)
	if err := srv.Start(notifications.NewWorkerMux(notifications.NewPaymentTaskProcessor(deliver))); err != nil {
		return fmt.Errorf("failed to start notification worker: %w", err)
	}
	logger.Info("Notification worker started",
		slog.Any("backends", cfg.Notify.WorkerBackends),
		slog.Int("concurrency", cfg.Notify.WorkerConcurrency))

	<-ctx.Done()
	logger.Info("Stopping notification worker...")
	srv.Shutdown()
	return nil
}
