// Package worker runs the batch analysis worker: it leases queue messages,
// groups them by job, sends each group to the analysis collaborator and
// applies the outcomes through the job persistence service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/data"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/observability/metrics"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// Options groups dependencies for Worker.
type Options struct {
	Queue       core.QueueTransport      // Required: message source
	Jobs        core.JobProgress         // Required: job persistence service
	Analysis    core.AnalysisService     // Required: external analysis collaborator
	Preferences core.ProviderPreferences // Optional: per-user provider lookup
	Events      core.EventPublisher      // Optional: item and progress notifications
	QueueConfig config.QueueConfig       // Optional: receive limits (sanitized)
	Config      config.WorkerConfig      // Optional: default batch size and drain timeout (sanitized)
	// DefaultProvider is used when the user has no stored preference.
	DefaultProvider string
	Clock           func() time.Time // Optional: defaults to time.Now
	Logger          *slog.Logger     // Optional: structured logger
	Metrics         statsd.Sink      // Optional: metrics sink (StatsD-compatible)
}

// Worker processes one queue batch per PollOnce call. It holds no job state
// between calls; everything it needs to resume lives in the datastore.
type Worker struct {
	queue       core.QueueTransport
	jobs        core.JobProgress
	analysis    core.AnalysisService
	preferences core.ProviderPreferences
	events      core.EventPublisher
	receive     model.ReceiveOptions
	batchSize   int
	drain       time.Duration
	provider    string
	now         func() time.Time
	logger      *slog.Logger
	metrics     statsd.Sink
}

// New constructs a Worker.
func New(opts Options) (*Worker, error) {
	switch {
	case opts.Queue == nil:
		return nil, errors.New("QueueTransport is required")
	case opts.Jobs == nil:
		return nil, errors.New("JobProgress is required")
	case opts.Analysis == nil:
		return nil, errors.New("AnalysisService is required")
	}

	qcfg := opts.QueueConfig
	qcfg.Sanitize()
	wcfg := opts.Config
	wcfg.Sanitize()

	provider := opts.DefaultProvider
	if provider == "" {
		provider = model.DefaultProvider
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		queue:       opts.Queue,
		jobs:        opts.Jobs,
		analysis:    opts.Analysis,
		preferences: opts.Preferences,
		events:      opts.Events,
		receive: model.ReceiveOptions{
			MaxMessages:       qcfg.ReceiveMax,
			VisibilityTimeout: qcfg.VisibilityTimeout,
			WaitTime:          qcfg.WaitTime,
		},
		batchSize: wcfg.BatchSize,
		drain:     wcfg.DrainTimeout,
		provider:  provider,
		now:       now,
		logger:    logger.With("component", "analysis_worker"),
		metrics:   opts.Metrics,
	}, nil
}

// PollStats summarizes one poll cycle.
type PollStats struct {
	Received  int
	Invalid   int
	Groups    int
	Processed int
	Skipped   int
	Succeeded int
	Failed    int
}

// queuedItem is a parsed message. Duplicate deliveries of one item share an entry.
type queuedItem struct {
	req      model.AnalysisRequest
	receipts []string
}

// jobGroup holds the items of one job received in a single poll.
type jobGroup struct {
	jobID  string
	userID int64
	items  []*queuedItem
	byID   map[int64]*queuedItem
}

// PollOnce runs one receive, group, process cycle.
//
// Item failures are recorded and never returned. An error is returned when
// the receive fails or a group could not be processed; that group's messages
// stay leased and are redelivered after the visibility timeout.
func (w *Worker) PollOnce(ctx context.Context) (PollStats, error) {
	start := time.Now()
	var stats PollStats

	msgs, err := w.queue.Receive(ctx, w.receive)
	if err != nil {
		w.emitPoll(stats, time.Since(start), err)
		return stats, fmt.Errorf("receive messages: %w", err)
	}
	stats.Received = len(msgs)
	if len(msgs) == 0 {
		w.emitPoll(stats, time.Since(start), nil)
		return stats, nil
	}

	// Leased messages are finished even if shutdown starts, up to the drain timeout.
	pctx, cancel := drainContext(ctx, w.drain)
	defer cancel()

	groups := w.groupMessages(pctx, msgs, &stats)
	stats.Groups = len(groups)

	var errs []error
	for _, g := range groups {
		if err := w.processGroup(pctx, g, &stats); err != nil {
			if pctx.Err() != nil {
				errs = append(errs, pctx.Err())
				break
			}
			w.logger.ErrorContext(ctx, "job group failed",
				"job_id", g.jobID,
				"items", len(g.items),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("job %s: %w", g.jobID, err))
		}
	}

	err = errors.Join(errs...)
	w.emitPoll(stats, time.Since(start), err)
	return stats, err
}

// groupMessages parses messages and partitions them by job, keeping receive order.
// Unparseable messages are deleted.
func (w *Worker) groupMessages(ctx context.Context, msgs []model.ReceivedMessage, stats *PollStats) []*jobGroup {
	var groups []*jobGroup
	index := make(map[string]*jobGroup)

	for _, msg := range msgs {
		req, err := model.ParseAnalysisRequest(msg.Body)
		if err != nil {
			stats.Invalid++
			w.logger.WarnContext(ctx, "deleting unparseable message",
				"message_id", msg.ID,
				"receive_count", msg.ReceiveCount,
				"error", err,
			)
			w.deleteReceipts(ctx, []string{msg.ReceiptHandle})
			continue
		}

		g, ok := index[req.JobID]
		if !ok {
			g = &jobGroup{jobID: req.JobID, userID: req.UserID, byID: make(map[int64]*queuedItem)}
			index[req.JobID] = g
			groups = append(groups, g)
		}
		if it, dup := g.byID[req.ItemID]; dup {
			it.receipts = append(it.receipts, msg.ReceiptHandle)
			continue
		}
		it := &queuedItem{req: req, receipts: []string{msg.ReceiptHandle}}
		g.byID[req.ItemID] = it
		g.items = append(g.items, it)
	}
	return groups
}

func (w *Worker) processGroup(ctx context.Context, g *jobGroup, stats *PollStats) error {
	ids := make([]int64, len(g.items))
	for i, it := range g.items {
		ids[i] = it.req.ItemID
	}

	begin, err := w.jobs.BeginItems(ctx, g.jobID, ids)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			w.logger.WarnContext(ctx, "deleting messages for unknown job", "job_id", g.jobID)
			w.deleteItems(ctx, g.items)
			return nil
		}
		return fmt.Errorf("begin items: %w", err)
	}

	for _, id := range begin.Skip {
		stats.Skipped++
		w.publish(ctx, model.NewItemEvent(g.jobID, g.userID, id, model.ItemStatusSkipped, w.now()))
		if it := g.byID[id]; it != nil {
			w.deleteReceipts(ctx, it.receipts)
		}
	}
	if len(begin.Process) == 0 {
		return nil
	}

	process := make([]*queuedItem, 0, len(begin.Process))
	for _, id := range begin.Process {
		if it := g.byID[id]; it != nil {
			process = append(process, it)
			w.publish(ctx, model.NewItemEvent(g.jobID, g.userID, id, model.ItemStatusInProgress, w.now()))
		}
	}

	outcomes, err := w.analyze(ctx, g, process)
	if err != nil {
		return err
	}

	applied, err := w.jobs.ApplyOutcomes(ctx, g.jobID, outcomes)
	if err != nil {
		return fmt.Errorf("apply outcomes: %w", err)
	}
	persistFailed := make(map[int64]bool, len(applied.PersistFailed))
	for _, id := range applied.PersistFailed {
		persistFailed[id] = true
	}

	for _, o := range outcomes {
		status := model.ItemStatusCompleted
		if !o.Succeeded || persistFailed[o.TrackID] {
			status = model.ItemStatusFailed
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		stats.Processed++
		w.publish(ctx, model.NewItemEvent(g.jobID, g.userID, o.TrackID, status, w.now()))
	}
	w.deleteItems(ctx, process)

	if applied.Completed && applied.Job != nil {
		w.logger.InfoContext(ctx, "job finished",
			"job_id", applied.Job.ID,
			"status", applied.Job.Status,
			"processed", applied.Job.ItemsProcessed,
			"succeeded", applied.Job.ItemsSucceeded,
			"failed", applied.Job.ItemsFailed,
		)
	}
	return nil
}

// analyze sends the items as one logical batch and converts the results to outcomes.
// Items the collaborator did not return are failed.
func (w *Worker) analyze(ctx context.Context, g *jobGroup, items []*queuedItem) ([]model.ItemOutcome, error) {
	req := core.AnalysisBatchRequest{
		Provider:  w.resolveProvider(ctx, g.userID),
		BatchSize: w.groupBatchSize(items),
		Items:     make([]core.AnalysisItem, len(items)),
		OnProgress: func(completed, total int) {
			w.publish(ctx, model.NewProgressEvent(g.jobID, g.userID, completed, total, w.now()))
		},
	}
	for i, it := range items {
		req.Items[i] = core.AnalysisItem{
			TrackID: it.req.ItemID,
			Artist:  it.req.Item.Artist,
			Title:   it.req.Item.Title,
		}
	}

	start := time.Now()
	results, err := w.analysis.AnalyzeBatch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.logger.WarnContext(ctx, "analysis batch failed", "job_id", g.jobID, "error", err)
		results = nil
	}
	if w.metrics != nil {
		w.metrics.Timing("worker.analysis_duration", time.Since(start), map[string]string{"provider": req.Provider})
	}

	byID := make(map[int64]core.AnalysisItemResult, len(results))
	for _, r := range results {
		byID[r.TrackID] = r
	}

	outcomes := make([]model.ItemOutcome, len(items))
	for i, it := range items {
		id := it.req.ItemID
		r, ok := byID[id]
		switch {
		case !ok:
			cause := err
			if cause == nil {
				cause = errors.New("no analysis result returned")
			}
			outcomes[i] = failedOutcome(id, cause)
		case r.Err != nil:
			outcomes[i] = failedOutcome(id, r.Err)
		default:
			outcomes[i] = model.ItemOutcome{
				TrackID:   id,
				Succeeded: true,
				Result: &model.SaveResultRequest{
					TrackID:   id,
					ModelName: r.ModelName,
					Analysis:  r.Payload,
				},
			}
		}
	}
	return outcomes, nil
}

func (w *Worker) resolveProvider(ctx context.Context, userID int64) string {
	if w.preferences == nil {
		return w.provider
	}
	p, err := w.preferences.ActiveProvider(ctx, userID)
	if err != nil {
		w.logger.WarnContext(ctx, "provider lookup failed, using default",
			"user_id", userID,
			"provider", w.provider,
			"error", err,
		)
		return w.provider
	}
	if p == "" {
		return w.provider
	}
	return p
}

// groupBatchSize uses the batch size carried on the messages when it is valid.
func (w *Worker) groupBatchSize(items []*queuedItem) int {
	for _, it := range items {
		if config.IsAllowedBatchSize(it.req.BatchSize) {
			return it.req.BatchSize
		}
	}
	return w.batchSize
}

func (w *Worker) publish(ctx context.Context, ev model.Event) {
	if w.events == nil {
		return
	}
	if err := w.events.Publish(ctx, ev); err != nil {
		w.logger.DebugContext(ctx, "publish event failed",
			"job_id", ev.JobID,
			"type", ev.Type,
			"error", err,
		)
	}
}

func (w *Worker) deleteItems(ctx context.Context, items []*queuedItem) {
	for _, it := range items {
		w.deleteReceipts(ctx, it.receipts)
	}
}

// deleteReceipts removes messages. An expired receipt means another worker
// may hold the message; its processing is idempotent.
func (w *Worker) deleteReceipts(ctx context.Context, receipts []string) {
	for _, h := range receipts {
		if err := w.queue.Delete(ctx, h); err != nil {
			level := slog.LevelWarn
			if errors.Is(err, model.ErrReceiptExpired) {
				level = slog.LevelInfo
			}
			w.logger.Log(ctx, level, "delete message failed", "error", err)
		}
	}
}

func (w *Worker) emitPoll(stats PollStats, elapsed time.Duration, err error) {
	metrics.EmitPoll(w.metrics, metrics.PollMetric{
		Received:  stats.Received,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Skipped:   stats.Skipped,
		Elapsed:   elapsed,
		Err:       err,
	})
}

func failedOutcome(trackID int64, err error) model.ItemOutcome {
	return model.ItemOutcome{
		TrackID: trackID,
		Failure: &model.AttemptFailure{
			TrackID:      trackID,
			ErrorType:    model.AttemptErrorAnalysis,
			ErrorMessage: err.Error(),
		},
	}
}

// drainContext returns a context that outlives parent by grace.
func drainContext(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-ctx.Done():
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}
