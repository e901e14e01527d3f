// Package failurenotifier fans failed analysis jobs out to operator alert sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/observability/notify"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// SinkRegistration names a sink for logs and metric tags.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Metrics receives alerts.delivery counts tagged by sink and result.
	Metrics statsd.Sink
	// Timeout caps a whole fan-out; zero means the caller's context decides.
	Timeout time.Duration
}

// Service delivers each failure to every sink concurrently. Delivery errors
// are logged and counted, never returned: alerting must not fail the job
// transition that triggered it.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	metrics statsd.Sink
	timeout time.Duration
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = statsd.Discard
	}
	s := &Service{
		logger:  logger.With("component", "failure_notifier"),
		metrics: metrics,
		timeout: opts.Timeout,
	}
	for _, reg := range opts.Sinks {
		if reg.Sink == nil {
			continue
		}
		if reg.Name == "" {
			reg.Name = "sink"
		}
		s.sinks = append(s.sinks, reg)
	}
	return s
}

// Enabled reports whether any sink is registered.
func (s *Service) Enabled() bool { return len(s.sinks) > 0 }

// PayloadForJob describes a failed job for alerting, stamped with at.
func PayloadForJob(job *model.Job, at time.Time) notify.JobFailurePayload {
	p := notify.JobFailurePayload{
		JobID:      job.ID,
		JobType:    string(job.Type),
		UserID:     job.UserID,
		ItemCount:  job.ItemCount,
		Succeeded:  job.ItemsSucceeded,
		Failed:     job.ItemsFailed,
		OccurredAt: at,
	}
	if job.ErrorMessage != nil {
		p.Reason = *job.ErrorMessage
	}
	// Stale and never-enqueued jobs point at broken infrastructure; the
	// rest are ordinary analysis outcomes.
	p.Severity = notify.SeverityWarning
	if p.Reason == model.JobErrorStale || p.Reason == model.JobErrorEnqueueFailed {
		p.Severity = notify.SeverityCritical
	}
	return p
}

// NotifyJob alerts on jobs that ended failed and ignores everything else.
func (s *Service) NotifyJob(ctx context.Context, job *model.Job) {
	if job == nil || job.Status != model.JobStatusFailed {
		return
	}
	at := time.Now()
	if job.CompletedAt != nil {
		at = *job.CompletedAt
	}
	s.NotifyJobFailure(ctx, PayloadForJob(job, at))
}

// NotifyJobFailure blocks until every sink has answered or the timeout hits.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if !s.Enabled() {
		return
	}
	payload.Severity = payload.SeverityOrDefault()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var g errgroup.Group
	for _, reg := range s.sinks {
		g.Go(func() error {
			s.deliver(ctx, reg, payload)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) deliver(ctx context.Context, reg SinkRegistration, payload notify.JobFailurePayload) {
	err := reg.Sink.SendJobFailure(ctx, payload)
	result := "success"
	if err != nil {
		result = "error"
		s.logger.ErrorContext(ctx, "alert delivery failed",
			"sink", reg.Name,
			"job_id", payload.JobID,
			"job_type", payload.JobType,
			"error", err,
		)
	}
	s.metrics.Count("alerts.delivery", 1, map[string]string{
		"sink":     reg.Name,
		"severity": payload.Severity,
		"result":   result,
	})
}
