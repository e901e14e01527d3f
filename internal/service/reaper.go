package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
	apperrors "github.com/target/track-analysis-api/internal/errors"
	"github.com/target/track-analysis-api/internal/observability/metrics"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// ReaperServiceOptions configures a ReaperService. Repo and a positive
// Config.Interval are required.
type ReaperServiceOptions struct {
	Repo    core.ReaperStore
	Config  config.ReaperConfig
	Hooks   JobHooks // run for every job the reaper fails
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// ReaperService sweeps the job table on a fixed interval. A sweep fails jobs
// that stopped reporting progress and purges queue messages still waiting for
// jobs that already finished.
type ReaperService struct {
	repo    core.ReaperStore
	config  config.ReaperConfig
	hooks   JobHooks
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperStore is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		hooks:   opts.Hooks,
		logger:  logger.With("component", "reaper_service"),
		metrics: opts.Metrics,
		now:     time.Now,
	}, nil
}

// Run sweeps once after a short random delay, then on every tick. A sweep
// error is logged and the loop carries on. Cancellation returns nil; a
// deadline returns the context error.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service",
		"interval", s.config.Interval,
		"stale_after", s.config.StaleAfter,
		"batch_size", s.config.BatchSize,
		"purge_limit", s.config.PurgeLimit,
	)

	// Replicas started together should not sweep in lockstep.
	if !sleepCtx(ctx, startupJitter(s.config.Interval)) {
		return stopReason(ctx)
	}
	s.sweep(ctx, "initial sweep")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			return stopReason(ctx)
		case <-ticker.C:
			s.sweep(ctx, "sweep")
		}
	}
}

// RunOnce performs a single sweep and reports its error.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	return s.runCleanup(ctx)
}

func (s *ReaperService) sweep(ctx context.Context, label string) {
	err := s.runCleanup(ctx)
	switch {
	case err == nil:
	case isContextCancellation(err):
		s.logger.DebugContext(ctx, label+" interrupted", "error", err)
	default:
		s.logger.ErrorContext(ctx, label+" failed", "error", err)
	}
}

// startupJitter picks a delay in [0, interval/10).
func startupJitter(interval time.Duration) time.Duration {
	if interval < 10 {
		return 0
	}
	return rand.N(interval / 10) //nolint:gosec // scheduling jitter, not a secret
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func stopReason(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// reaperTask is one step of a sweep. A failing task does not stop the
// tasks after it.
type reaperTask struct {
	name  string
	label string
	run   func(context.Context) (int64, error)
}

// runCleanup runs every task and joins their errors. When every failure is
// a context cancellation the result is context.Canceled.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()
	tasks := []reaperTask{
		{name: "fail_stale", label: "fail stale jobs", run: s.failStaleJobs},
		{name: "purge_messages", label: "purge finished job messages", run: s.purgeFinishedJobMessages},
	}

	var (
		errs        []error
		onlyCancels = true
		total       int64
		firstErr    error
	)
	for _, task := range tasks {
		n, err := task.run(ctx)
		total += n
		metrics.EmitOperation(s.metrics, metrics.Operation{
			Component: "reaper",
			Name:      task.name,
			Count:     n,
			Err:       suppressContextCancellation(err),
		})
		if err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", task.label, err))
		onlyCancels = onlyCancels && isContextCancellation(err)
		if firstErr == nil && !isContextCancellation(err) {
			firstErr = err
		}
	}
	s.emitSweepMetrics(firstErr, total, time.Since(start))

	if len(errs) == 0 {
		return nil
	}
	if onlyCancels {
		return context.Canceled
	}
	return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
}

// failStaleJobs fails active jobs idle longer than the configured threshold.
// Loops until no more rows are affected to handle large datasets in batches.
func (s *ReaperService) failStaleJobs(ctx context.Context) (int64, error) {
	var totalCount int64
	for {
		failed, err := s.repo.FailStaleJobs(ctx, core.FailStaleJobsParams{
			MaxIdle:   s.config.StaleAfter,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return totalCount, err
		}
		if len(failed) == 0 {
			break
		}
		totalCount += int64(len(failed))
		for _, job := range failed {
			s.afterStale(ctx, job)
		}
		// Check context between batches
		if ctx.Err() != nil {
			return totalCount, ctx.Err()
		}
	}

	if totalCount > 0 {
		s.logger.InfoContext(ctx, "failed stale jobs",
			"count", totalCount,
			"stale_after", s.config.StaleAfter,
		)
	}

	return totalCount, nil
}

// afterStale runs the terminal hooks for a reaped job.
func (s *ReaperService) afterStale(ctx context.Context, job *model.Job) {
	s.logger.WarnContext(ctx, "job failed as stale",
		"job_id", job.ID,
		"user_id", job.UserID,
		"processed", job.ItemsProcessed,
		"item_count", job.ItemCount,
	)
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: string(model.JobStatusFailed),
		Result:     metrics.ResultError,
		Err:        apperrors.StaleJob(job.ID),
	})

	if s.hooks.Purger != nil {
		if _, err := s.hooks.Purger.PurgeGroup(ctx, job.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to purge stale job messages", "job_id", job.ID, "error", err)
		}
	}
	if s.hooks.Events != nil {
		if err := s.hooks.Events.Publish(ctx, model.NewJobCompletedEvent(job, s.now())); err != nil {
			s.logger.WarnContext(ctx, "failed to publish stale job completion", "job_id", job.ID, "error", err)
		}
	}
	if s.hooks.Alerts != nil {
		s.hooks.Alerts.NotifyJob(ctx, job)
	}
}

// purgeFinishedJobMessages drops messages still queued for jobs that finished
// within the last two intervals, e.g. redeliveries of a cancelled job.
func (s *ReaperService) purgeFinishedJobMessages(ctx context.Context) (int64, error) {
	if s.hooks.Purger == nil || s.config.PurgeLimit == 0 {
		return 0, nil
	}

	since := s.now().Add(-2 * s.config.Interval)
	jobs, err := s.repo.ListFinishedSince(ctx, since, s.config.PurgeLimit)
	if err != nil {
		return 0, err
	}

	var totalCount int64
	for _, job := range jobs {
		n, err := s.hooks.Purger.PurgeGroup(ctx, job.ID)
		if err != nil {
			return totalCount, fmt.Errorf("purge job %s: %w", job.ID, err)
		}
		totalCount += n
	}

	if totalCount > 0 {
		s.logger.InfoContext(ctx, "purged messages of finished jobs",
			"count", totalCount,
			"jobs", len(jobs),
		)
	}
	return totalCount, nil
}

func (s *ReaperService) emitSweepMetrics(err error, total int64, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	tags := metrics.ResultTags(metrics.ResultFor(err, total), err)
	s.metrics.Count("reaper.cleanup", 1, tags)
	s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
