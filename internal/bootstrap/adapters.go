package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/adapters/reaper"
	"github.com/target/track-analysis-api/internal/adapters/worker"
)

// AnalysisWorkerConfig contains configuration for the batch analysis worker.
type AnalysisWorkerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunAnalysisWorker polls the queue and analyzes batches until ctx ends or
// the supervisor exhausts its restart budget.
func RunAnalysisWorker(ctx context.Context, cfg AnalysisWorkerConfig) error {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	obs := cfg.Services.Observability

	client, err := NewAnalysisClient(appCfg.Analysis, obs, cfg.Logger)
	if err != nil {
		return fmt.Errorf("create analysis client: %w", err)
	}

	w, err := worker.New(worker.Options{
		Queue:           cfg.Services.Queue.Transport,
		Jobs:            cfg.Services.Jobs,
		Analysis:        client,
		Preferences:     cfg.Services.Preferences,
		Events:          cfg.Services.Publisher,
		QueueConfig:     appCfg.Queue,
		Config:          appCfg.Worker,
		DefaultProvider: appCfg.Analysis.DefaultProvider,
		Logger:          cfg.Logger,
		Metrics:         obs.Sink(),
	})
	if err != nil {
		return fmt.Errorf("create analysis worker: %w", err)
	}

	sup, err := worker.NewSupervisor(worker.SupervisorOptions{
		Config:  appCfg.Worker,
		Name:    "analysis_worker",
		Logger:  cfg.Logger,
		Metrics: obs.Sink(),
	})
	if err != nil {
		return fmt.Errorf("create worker supervisor: %w", err)
	}

	return w.Run(ctx, sup, appCfg.Worker.Concurrency)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	Config   config.ReaperConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// NewReaperRunner builds the reaper with the job store and terminal hooks.
func NewReaperRunner(cfg ReaperConfig) (*reaper.Runner, error) {
	if cfg.Services.Repos == nil {
		return nil, errors.New("reaper requires repositories")
	}
	obs := cfg.Services.Observability
	return reaper.NewRunner(reaper.RunnerOptions{
		Store:   cfg.Services.Repos.Jobs,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Queue:   cfg.Services.Queue.Purger,
		Events:  cfg.Services.Publisher,
		Alerts:  obs.Notifier(),
		Metrics: obs.Sink(),
	})
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := NewReaperRunner(cfg)
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}
