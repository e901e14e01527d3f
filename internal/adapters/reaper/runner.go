// Package reaper runs the stale job reaper against the job store.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/observability/statsd"
	"github.com/target/track-analysis-api/internal/service"
)

// Runner owns a ReaperService and its loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Store  core.ReaperStore    // Required: job store with stale job queries
	Config config.ReaperConfig // Required: interval and limits
	Logger *slog.Logger

	// Optional terminal hooks for reaped jobs
	Queue   core.QueueGroupPurger
	Events  core.EventPublisher
	Alerts  core.JobFailureNotifier
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("reaper store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := opts.Config
	cfg.Sanitize()

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:   opts.Store,
		Config: cfg,
		Hooks: service.JobHooks{
			Events: opts.Events,
			Purger: opts.Queue,
			Alerts: opts.Alerts,
		},
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}
	return &Runner{reaper: svc, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// RunOnce performs one cleanup pass, for operators and tests.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.reaper.RunOnce(ctx)
}
