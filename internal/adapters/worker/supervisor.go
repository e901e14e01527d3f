package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/track-analysis-api/config"
	domainjob "github.com/target/track-analysis-api/internal/domain/job"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// jitterFraction spreads retry sleeps by ±20%.
const jitterFraction = 0.2

// ErrRestartBudgetExhausted is returned when the loop restarted too often within the window.
var ErrRestartBudgetExhausted = errors.New("worker restart budget exhausted")

// Cycle is one unit of supervised work.
type Cycle func(ctx context.Context) error

// SupervisorOptions groups dependencies for Supervisor.
type SupervisorOptions struct {
	Config config.WorkerConfig // Required: backoff and restart limits (sanitized)
	Name   string              // Optional: loop name for logs and metrics
	// OnRestart rebuilds per-run state, such as a transport session, before the loop restarts.
	OnRestart func(ctx context.Context) error
	Clock     func() time.Time // Optional: defaults to time.Now
	Logger    *slog.Logger     // Optional: structured logger
	Metrics   statsd.Sink      // Optional: metrics sink (StatsD-compatible)

	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

// Supervisor repeats a cycle forever. Failed cycles are followed by a bounded
// exponential, jittered sleep; after RestartLimit consecutive failures the
// loop restarts, and more than MaxRestarts restarts inside RestartWindow end
// the loop with an error.
type Supervisor struct {
	name          string
	policy        *domainjob.BackoffPolicy
	restartLimit  int
	maxRestarts   int
	restartWindow time.Duration
	onRestart     func(ctx context.Context) error
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
	random        func() float64
	logger        *slog.Logger
	metrics       statsd.Sink
}

// NewSupervisor constructs a Supervisor.
func NewSupervisor(opts SupervisorOptions) (*Supervisor, error) {
	cfg := opts.Config
	cfg.Sanitize()
	policy, err := domainjob.NewBackoffPolicy(cfg.ErrorBackoffBase, cfg.ErrorBackoffMax)
	if err != nil {
		return nil, fmt.Errorf("worker backoff: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = "analysis_worker"
	}
	s := &Supervisor{
		name:          name,
		policy:        policy,
		restartLimit:  cfg.RestartLimit,
		maxRestarts:   cfg.MaxRestarts,
		restartWindow: cfg.RestartWindow,
		onRestart:     opts.OnRestart,
		now:           opts.Clock,
		sleep:         opts.sleep,
		random:        opts.random,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.random == nil {
		s.random = rand.Float64
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "supervisor", "loop", name)
	return s, nil
}

// Run repeats cycle until ctx ends, which returns nil, or the restart budget
// is exhausted.
func (s *Supervisor) Run(ctx context.Context, cycle Cycle) error {
	var (
		failures int
		restarts []time.Time
	)

	for ctx.Err() == nil {
		err := s.runCycle(ctx, cycle)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		s.count("worker.cycle_error", nil)

		var delay time.Duration
		if failures >= s.restartLimit {
			restarts = s.pruneRestarts(restarts)
			if len(restarts) >= s.maxRestarts {
				s.logger.ErrorContext(ctx, "restart budget exhausted",
					"restarts", len(restarts),
					"window", s.restartWindow,
					"error", err,
				)
				return fmt.Errorf("%s: %w: %w", s.name, ErrRestartBudgetExhausted, err)
			}
			restarts = append(restarts, s.now())
			s.restart(ctx, failures, err)
			failures = 0
			delay = s.policy.Base()
		} else {
			decision := s.policy.Resolve(failures)
			delay = domainjob.Jitter(decision.Delay, jitterFraction, s.random())
			s.logger.WarnContext(ctx, "cycle failed, backing off",
				"failures", failures,
				"delay", delay,
				"capped", decision.Capped(),
				"error", err,
			)
		}

		if s.sleep(ctx, delay) != nil {
			return nil
		}
	}
	return nil
}

// runCycle runs cycle and converts a panic into an error.
func (s *Supervisor) runCycle(ctx context.Context, cycle Cycle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.count("worker.cycle_panic", nil)
			s.logger.ErrorContext(ctx, "cycle panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return cycle(ctx)
}

func (s *Supervisor) restart(ctx context.Context, failures int, cause error) {
	s.count("worker.restart", nil)
	s.logger.WarnContext(ctx, "restarting loop after consecutive failures",
		"failures", failures,
		"error", cause,
	)
	if s.onRestart == nil {
		return
	}
	if err := s.onRestart(ctx); err != nil {
		s.logger.ErrorContext(ctx, "restart hook failed", "error", err)
	}
}

// pruneRestarts drops restarts that fell out of the window.
func (s *Supervisor) pruneRestarts(restarts []time.Time) []time.Time {
	cutoff := s.now().Add(-s.restartWindow)
	kept := restarts[:0]
	for _, t := range restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func (s *Supervisor) count(name string, tags map[string]string) {
	if s.metrics == nil {
		return
	}
	if tags == nil {
		tags = map[string]string{}
	}
	tags["loop"] = s.name
	s.metrics.Count(name, 1, tags)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// idlePause is the pause after an empty receive when the transport does not long-poll.
const idlePause = time.Second

// Run starts concurrency supervised poll loops and blocks until ctx ends or
// one loop gives up, which stops the others.
func (w *Worker) Run(ctx context.Context, sup *Supervisor, concurrency int) error {
	if sup == nil {
		return errors.New("supervisor is required")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	w.logger.InfoContext(ctx, "starting analysis worker",
		"loops", concurrency,
		"receive_max", w.receive.MaxMessages,
		"visibility_timeout", w.receive.VisibilityTimeout,
		"batch_size", w.batchSize,
	)

	g, gctx := errgroup.WithContext(ctx)
	for range concurrency {
		g.Go(func() error {
			return sup.Run(gctx, w.cycle)
		})
	}
	err := g.Wait()
	w.logger.InfoContext(context.WithoutCancel(ctx), "analysis worker stopped", "error", err)
	return err
}

func (w *Worker) cycle(ctx context.Context) error {
	stats, err := w.PollOnce(ctx)
	if err != nil {
		return err
	}
	if stats.Received == 0 && w.receive.WaitTime < idlePause {
		return sleepContext(ctx, idlePause)
	}
	return nil
}
