package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

// infra holds the shared connections every service mode runs on.
type infra struct {
	db    *sql.DB
	redis redis.UniversalClient
}

func (i *infra) close(ctx context.Context, logger *slog.Logger) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			logger.ErrorContext(ctx, "close database failed", "error", err)
		}
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}
	if err = preflight(ctx, logger, &cfg); err != nil {
		return err
	}

	conns, err := connect(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer conns.close(ctx, logger)

	if err = migrateOnStart(ctx, &cfg, conns.db, logger); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          conns.db,
		RedisClient: conns.redis,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      &cfg,
		Services:    services,
		DB:          conns.db,
		RedisClient: conns.redis,
		Logger:      logger,
	})
}

// preflight logs the effective pipeline settings and, when this process runs
// the analysis worker, loads the provider catalog so a bad file fails startup
// instead of the first poll cycle.
func preflight(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) error {
	logger.InfoContext(ctx, "starting track analysis service",
		"enabled_services", bootstrap.GetEnabledServices(cfg),
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"queue_driver", cfg.Queue.Driver,
		"queue_name", cfg.Queue.Name,
		"visibility_timeout", cfg.Queue.VisibilityTimeout,
		"recovery_stale_after", cfg.Recovery.StaleAfter,
	)

	if !cfg.IsAnalysisWorkerEnabled() {
		return nil
	}
	catalog, err := bootstrap.LoadProviderCatalog(cfg.Analysis)
	if err != nil {
		return fmt.Errorf("load provider catalog: %w", err)
	}
	source := cfg.Analysis.ProvidersFile
	if source == "" {
		source = "built-in"
	}
	logger.InfoContext(ctx, "analysis worker configured",
		"concurrency", cfg.Worker.Concurrency,
		"batch_size", cfg.Worker.BatchSize,
		"providers", catalog.Names(),
		"provider_catalog", source,
		"default_provider", cfg.Analysis.DefaultProvider,
		"max_retries", cfg.Analysis.MaxRetries,
	)
	return nil
}

// connect opens Postgres and Redis. Redis is required by every mode: it backs
// sessions, the notification bridge and, with QUEUE_DRIVER=redis, the queue.
func connect(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*infra, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}
	db, err := bootstrap.ConnectDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	client, err := bootstrap.ConnectRedis(dbCfg)
	if err != nil {
		err = fmt.Errorf("connect redis: %w", err)
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
			err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
		}
		return nil, err
	}
	return &infra{db: db, redis: client}, nil
}

func migrateOnStart(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *slog.Logger) error {
	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		return nil
	}
	return bootstrap.RunMigrations(ctx, db, logger)
}
