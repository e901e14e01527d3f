package core

import (
	"context"
	"time"

	"github.com/target/track-analysis-api/internal/domain/model"
)

// This file contains the ports consumed by the service layer. Postgres, Redis
// and HTTP adapters implement them; services depend only on these contracts.

// Transactor runs fn inside a transaction that repositories join through ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// JobStore is the durable record of analysis jobs.
type JobStore interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// GetForUpdate locks the job row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id string) (*model.Job, error)
	LatestForUser(ctx context.Context, userID int64) (*model.Job, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	// StartProcessing moves a pending job to in_progress and refreshes its activity timestamp.
	// It returns model.ErrJobTerminal for completed or failed jobs.
	StartProcessing(ctx context.Context, id string) (*model.Job, error)
	// ApplyRollup adds delta to the job's counters. It never overwrites them.
	ApplyRollup(ctx context.Context, id string, delta model.RollupDelta) (*model.Job, error)
	// Finish moves a non-terminal job to status. The bool is false when the job was already terminal.
	Finish(ctx context.Context, params FinishJobParams) (*model.Job, bool, error)
}

// FinishJobParams groups parameters for JobStore.Finish.
type FinishJobParams struct {
	JobID        string
	Status       model.JobStatus
	ErrorMessage string
}

// ReaperStore fails abandoned jobs in bulk and finds recently finished ones.
type ReaperStore interface {
	FailStaleJobs(ctx context.Context, params FailStaleJobsParams) ([]*model.Job, error)
	// ListFinishedSince returns jobs that reached a terminal status at or after since.
	ListFinishedSince(ctx context.Context, since time.Time, limit int) ([]*model.Job, error)
}

// FailStaleJobsParams groups parameters for ReaperStore.FailStaleJobs.
type FailStaleJobsParams struct {
	MaxIdle   time.Duration
	BatchSize int
}

// AttemptLedger tracks in-flight and failed attempts per (job, item).
type AttemptLedger interface {
	StartMany(ctx context.Context, jobID string, trackIDs []int64) error
	ListByJob(ctx context.Context, jobID string) ([]*model.Attempt, error)
	DeleteMany(ctx context.Context, jobID string, trackIDs []int64) (int64, error)
	// MarkFailed upserts failed attempts, creating records for items that have none.
	MarkFailed(ctx context.Context, jobID string, failures []model.AttemptFailure) error
	// FailInFlight marks every in_progress attempt of the job as failed.
	FailInFlight(ctx context.Context, jobID string, failure model.AttemptFailure) (int64, error)
}

// ResultStore persists analysis results. Writes are idempotent per track.
type ResultStore interface {
	Upsert(ctx context.Context, req model.SaveResultRequest) (*model.AnalysisResult, error)
	GetByTrackID(ctx context.Context, trackID int64) (*model.AnalysisResult, error)
	// ExistingTrackIDs returns which of trackIDs already have a result.
	ExistingTrackIDs(ctx context.Context, trackIDs []int64) (map[int64]bool, error)
}

// OutcomeTally records which item outcomes have been counted into a job's rollups.
type OutcomeTally interface {
	// Record inserts uncounted outcomes and returns the delta and track ids of the newly recorded ones only.
	Record(ctx context.Context, jobID string, outcomes []model.ItemOutcome) (model.CountedOutcomes, error)
	// Settled returns which of trackIDs already have a counted outcome for the job.
	Settled(ctx context.Context, jobID string, trackIDs []int64) (map[int64]bool, error)
}

// TrackCatalog resolves canonical track metadata.
type TrackCatalog interface {
	// GetByIDs returns the tracks that exist, in the order of ids.
	GetByIDs(ctx context.Context, ids []int64) ([]*model.Track, error)
}

// ProviderPreferences resolves a user's analysis provider.
type ProviderPreferences interface {
	// ActiveProvider returns the stored provider or "" when the user has none.
	ActiveProvider(ctx context.Context, userID int64) (string, error)
}

// QueueTransport is an at-least-once, visibility-timeout based message queue.
type QueueTransport interface {
	Enqueue(ctx context.Context, msg model.OutgoingMessage) (string, error)
	EnqueueBatch(ctx context.Context, msgs []model.OutgoingMessage) ([]string, error)
	Receive(ctx context.Context, opts model.ReceiveOptions) ([]model.ReceivedMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueGroupPurger removes pending messages of a group (job).
type QueueGroupPurger interface {
	PurgeGroup(ctx context.Context, groupID string) (int64, error)
}

// EventPublisher posts best-effort notifications.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event) error
}

// EventSubscriber streams notifications for one user until ctx ends or unsubscribe is called.
type EventSubscriber interface {
	Subscribe(ctx context.Context, userID int64) (events <-chan model.Event, unsubscribe func(), err error)
}

// AnalysisService is the external analysis collaborator.
type AnalysisService interface {
	AnalyzeBatch(ctx context.Context, req AnalysisBatchRequest) ([]AnalysisItemResult, error)
}

// AnalysisBatchRequest is one logical batch sent to the analysis collaborator.
type AnalysisBatchRequest struct {
	Provider  string
	BatchSize int
	Items     []AnalysisItem
	// OnProgress is called after each provider sub-batch with cumulative counts.
	OnProgress func(completed, total int)
}

// AnalysisItem is one item to analyze.
type AnalysisItem struct {
	TrackID int64
	Artist  string
	Title   string
}

// AnalysisItemResult is the outcome for one item. Exactly one of Payload or Err is set.
type AnalysisItemResult struct {
	TrackID   int64
	ModelName string
	Payload   []byte
	Err       error
}

// JobFailureNotifier alerts operators about jobs that ended failed.
type JobFailureNotifier interface {
	NotifyJob(ctx context.Context, job *model.Job)
}

// JobRecorder is the submission side of the Job Persistence Service.
type JobRecorder interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetJob(ctx context.Context, userID int64, jobID string) (*model.Job, error)
	// MarkEnqueueFailed fails a job whose messages could not be queued.
	MarkEnqueueFailed(ctx context.Context, jobID string) (*model.Job, error)
}

// JobProgress is the worker side of the Job Persistence Service.
type JobProgress interface {
	BeginItems(ctx context.Context, jobID string, trackIDs []int64) (*model.BeginResult, error)
	ApplyOutcomes(ctx context.Context, jobID string, outcomes []model.ItemOutcome) (*model.ApplyOutcomesResult, error)
}

// JobQueries is the read and cancel side of the Job Persistence Service used by the API.
type JobQueries interface {
	GetJob(ctx context.Context, userID int64, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	// Recover returns model.ErrNoActiveJob when the user has nothing to resume.
	Recover(ctx context.Context, userID int64) (*model.RecoveredJob, error)
	Cancel(ctx context.Context, req CancelJobRequest) (*model.Job, error)
}

// CancelJobRequest identifies a job to cancel. A zero UserID skips the ownership check.
type CancelJobRequest struct {
	JobID  string
	UserID int64
}

// Submitter accepts analysis submissions.
type Submitter interface {
	Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error)
}
