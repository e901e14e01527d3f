package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
	apperrors "github.com/target/track-analysis-api/internal/errors"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// Retry-safe messages returned to clients when a submission cannot be accepted.
const (
	MsgCreateJobFailed = "Failed to create analysis job. Please try again."
	MsgEnqueueFailed   = "Failed to queue analysis. Please try again."
	MsgJobIDFailed     = "This analysis job already failed. Submit again with a new job id."
	MsgAllAnalyzed     = "All selected tracks are already analyzed."
)

// DefaultMaxSubmitItems bounds the number of items in one submission.
const DefaultMaxSubmitItems = 500

// SubmissionConfig holds submission limits.
type SubmissionConfig struct {
	MaxItems         int // defaults to DefaultMaxSubmitItems
	DefaultBatchSize int // used when the client sends no hint; defaults to 5
}

// SubmissionPorts groups the collaborators of SubmissionService.
type SubmissionPorts struct {
	Jobs    core.JobRecorder    // Required
	Tracks  core.TrackCatalog   // Required
	Queue   core.QueueTransport // Required
	Events  core.EventPublisher // Optional: batch_tracks_queued acknowledgements
	Results core.ResultStore    // Optional: tracks with a stored result are left out
}

// SubmissionServiceOptions groups dependencies for SubmissionService.
type SubmissionServiceOptions struct {
	Ports   SubmissionPorts  // Required: job store, track catalog and queue
	Config  SubmissionConfig // Optional: submission limits
	Logger  *slog.Logger     // Optional: structured logger
	Metrics statsd.Sink      // Optional: metrics sink (StatsD-compatible)
}

// SubmissionService turns a client request into a persisted job and one queue
// message per item. The job is written before anything is enqueued.
type SubmissionService struct {
	ports   SubmissionPorts
	cfg     SubmissionConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

var _ core.Submitter = (*SubmissionService)(nil)

// NewSubmissionService constructs a new SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) (*SubmissionService, error) {
	switch {
	case opts.Ports.Jobs == nil:
		return nil, errors.New("JobRecorder is required")
	case opts.Ports.Tracks == nil:
		return nil, errors.New("TrackCatalog is required")
	case opts.Ports.Queue == nil:
		return nil, errors.New("QueueTransport is required")
	}

	cfg := opts.Config
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxSubmitItems
	}
	if !config.IsAllowedBatchSize(cfg.DefaultBatchSize) {
		cfg.DefaultBatchSize = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SubmissionService{
		ports:   opts.Ports,
		cfg:     cfg,
		logger:  logger.With("component", "submission_service"),
		metrics: opts.Metrics,
	}, nil
}

// Submit validates req, persists the job and enqueues its items.
//
// Item metadata always comes from the track catalog. Unknown ids are dropped,
// and so are tracks that already have an analysis result.
// When enqueueing fails the job is marked failed before the error is returned.
// Resubmitting a client job id the same user already used returns the existing
// job without enqueueing again.
func (s *SubmissionService) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	if err := s.validate(&req); err != nil {
		s.count("invalid")
		return nil, err
	}

	tracks, err := s.resolveTracks(ctx, req)
	if err != nil {
		return nil, err
	}
	tracks, analyzed, err := s.dropAnalyzed(ctx, req.UserID, tracks)
	if err != nil {
		return nil, err
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	itemIDs := make([]int64, len(tracks))
	for i, t := range tracks {
		itemIDs[i] = t.ID
	}

	job, err := s.ports.Jobs.Create(ctx, &model.CreateJobRequest{
		ID:         jobID,
		UserID:     req.UserID,
		Type:       req.JobType,
		ItemIDs:    itemIDs,
		PlaylistID: req.PlaylistID,
	})
	if err != nil {
		return s.handleCreateError(ctx, req, jobID, err)
	}

	msgs, err := s.buildMessages(job, tracks, req.BatchSizeHint)
	if err != nil {
		s.compensate(ctx, job.ID, err)
		return nil, apperrors.TransportFailure(err, MsgEnqueueFailed)
	}
	if _, err := s.ports.Queue.EnqueueBatch(ctx, msgs); err != nil {
		s.compensate(ctx, job.ID, err)
		s.count("enqueue_failed")
		return nil, apperrors.TransportFailure(err, MsgEnqueueFailed)
	}

	s.logger.InfoContext(ctx, "analysis job queued",
		"job_id", job.ID,
		"user_id", job.UserID,
		"job_type", job.Type,
		"items", len(itemIDs),
	)
	s.count("queued")
	s.publishQueued(ctx, job)

	return &model.SubmitResult{
		JobID:           job.ID,
		ItemIDs:         job.ItemIDs,
		TotalQueued:     len(msgs),
		AlreadyAnalyzed: analyzed,
	}, nil
}

func (s *SubmissionService) validate(req *model.SubmitRequest) error {
	if req.UserID <= 0 {
		return apperrors.InvalidInput("a user is required")
	}
	if len(req.ItemIDs) == 0 {
		return apperrors.InvalidField("itemIds", "itemIds must not be empty")
	}
	if len(req.ItemIDs) > s.cfg.MaxItems {
		return apperrors.InvalidField("itemIds", fmt.Sprintf("at most %d items may be submitted at once", s.cfg.MaxItems))
	}
	for _, id := range req.ItemIDs {
		if id <= 0 {
			return apperrors.InvalidField("itemIds", "itemIds must be positive integers")
		}
	}
	if req.BatchSizeHint != 0 && !config.IsAllowedBatchSize(req.BatchSizeHint) {
		return apperrors.InvalidField("batchSizeHint", "batchSizeHint must be 1, 5 or 10")
	}
	if len(req.JobID) > model.MaxJobIDLength {
		return apperrors.InvalidField("jobId", fmt.Sprintf("jobId exceeds %d characters", model.MaxJobIDLength))
	}
	if req.JobType == "" {
		req.JobType = model.JobTypeTrackBatch
	}
	if !req.JobType.Valid() {
		return apperrors.InvalidField("jobType", "jobType must be track_batch or playlist")
	}
	if req.JobType == model.JobTypePlaylist && (req.PlaylistID == nil || strings.TrimSpace(*req.PlaylistID) == "") {
		return apperrors.InvalidField("playlistId", "playlistId is required for playlist jobs")
	}
	return nil
}

// resolveTracks loads canonical metadata for the requested ids, preserving request order.
func (s *SubmissionService) resolveTracks(ctx context.Context, req model.SubmitRequest) ([]*model.Track, error) {
	ids := uniqueIDs(req.ItemIDs)
	tracks, err := s.ports.Tracks.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve tracks", "user_id", req.UserID, "error", err)
		return nil, apperrors.PersistenceFailure(err, MsgCreateJobFailed)
	}

	if missing := len(ids) - len(tracks); missing > 0 {
		found := make(map[int64]struct{}, len(tracks))
		for _, t := range tracks {
			found[t.ID] = struct{}{}
		}
		var dropped []int64
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				dropped = append(dropped, id)
			}
		}
		s.logger.WarnContext(ctx, "dropping unknown tracks from submission",
			"user_id", req.UserID,
			"track_ids", dropped,
		)
	}
	if len(tracks) == 0 {
		return nil, apperrors.NotFound("none of the requested tracks exist")
	}
	return tracks, nil
}

// dropAnalyzed removes tracks that already have a result. Recovery treats an
// existing result as completed, so such tracks would never be re-analyzed.
func (s *SubmissionService) dropAnalyzed(
	ctx context.Context,
	userID int64,
	tracks []*model.Track,
) (remaining []*model.Track, analyzed []int64, err error) {
	if s.ports.Results == nil {
		return tracks, nil, nil
	}
	ids := make([]int64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	existing, err := s.ports.Results.ExistingTrackIDs(ctx, ids)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check existing results", "user_id", userID, "error", err)
		return nil, nil, apperrors.PersistenceFailure(err, MsgCreateJobFailed)
	}

	remaining = make([]*model.Track, 0, len(tracks))
	for _, t := range tracks {
		if existing[t.ID] {
			analyzed = append(analyzed, t.ID)
			continue
		}
		remaining = append(remaining, t)
	}
	if len(analyzed) > 0 {
		s.logger.InfoContext(ctx, "skipping already analyzed tracks", "user_id", userID, "track_ids", analyzed)
	}
	if len(remaining) == 0 {
		s.count("already_analyzed")
		return nil, analyzed, apperrors.Conflict("%s", MsgAllAnalyzed)
	}
	return remaining, analyzed, nil
}

func (s *SubmissionService) handleCreateError(
	ctx context.Context,
	req model.SubmitRequest,
	jobID string,
	err error,
) (*model.SubmitResult, error) {
	if apperrors.IsUniqueViolation(err, apperrors.ConstraintJobPrimaryKey) {
		existing, getErr := s.ports.Jobs.GetJob(ctx, req.UserID, jobID)
		if getErr == nil && existing.Status == model.JobStatusFailed {
			s.logger.WarnContext(ctx, "job id reused after the job failed", "job_id", jobID, "user_id", req.UserID)
			s.count("conflict")
			return nil, apperrors.Conflict("%s", MsgJobIDFailed)
		}
		if getErr == nil {
			s.logger.InfoContext(ctx, "duplicate submission for existing job", "job_id", jobID, "user_id", req.UserID)
			return &model.SubmitResult{
				JobID:       existing.ID,
				ItemIDs:     existing.ItemIDs,
				TotalQueued: existing.ItemCount,
			}, nil
		}
	}

	mapped := apperrors.MapDBError(err)
	if apperrors.IsConflict(mapped) || apperrors.IsInvalidInput(mapped) {
		s.count("conflict")
		return nil, mapped
	}

	s.logger.ErrorContext(ctx, "failed to create analysis job", "job_id", jobID, "user_id", req.UserID, "error", err)
	s.count("create_failed")
	return nil, apperrors.PersistenceFailure(err, MsgCreateJobFailed)
}

func (s *SubmissionService) buildMessages(job *model.Job, tracks []*model.Track, hint int) ([]model.OutgoingMessage, error) {
	batchSize := hint
	if batchSize == 0 {
		batchSize = s.cfg.DefaultBatchSize
	}
	msgs := make([]model.OutgoingMessage, 0, len(tracks))
	for _, t := range tracks {
		body, err := json.Marshal(model.AnalysisRequest{
			JobID:     job.ID,
			UserID:    job.UserID,
			ItemID:    t.ID,
			Item:      t.Metadata(),
			JobType:   job.Type,
			BatchSize: batchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("encode analysis request: %w", err)
		}
		msgs = append(msgs, model.OutgoingMessage{GroupID: job.ID, Body: body})
	}
	return msgs, nil
}

// compensate fails the job so it never points at work that was not queued.
func (s *SubmissionService) compensate(ctx context.Context, jobID string, cause error) {
	s.logger.ErrorContext(ctx, "failed to enqueue analysis job", "job_id", jobID, "error", cause)

	// The caller may already be gone; the compensating write must still land.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := s.ports.Jobs.MarkEnqueueFailed(cctx, jobID); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark job failed after enqueue error", "job_id", jobID, "error", err)
	}
}

func (s *SubmissionService) publishQueued(ctx context.Context, job *model.Job) {
	if s.ports.Events == nil {
		return
	}
	ev := model.NewBatchQueuedEvent(job.ID, job.UserID, job.ItemIDs, time.Now())
	if err := s.ports.Events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish queued event", "job_id", job.ID, "error", err)
	}
}

func (s *SubmissionService) count(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Count("analysis.submission", 1, map[string]string{"result": result})
}
