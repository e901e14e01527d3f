// Package model defines the core data types of the track analysis pipeline.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// JobType represents the kind of analysis batch.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeTrackBatch is an ad-hoc batch of library tracks.
	JobTypeTrackBatch JobType = "track_batch"
	// JobTypePlaylist analyzes the tracks of one playlist.
	JobTypePlaylist JobType = "playlist"

	// JobStatusPending indicates the job is persisted and its messages are queued.
	JobStatusPending JobStatus = "pending"
	// JobStatusInProgress indicates a worker has started on at least one item.
	JobStatusInProgress JobStatus = "in_progress"
	// JobStatusCompleted indicates every item was processed (some may have failed).
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed as a whole.
	JobStatusFailed JobStatus = "failed"
)

// Job failure reasons recorded in error_message.
const (
	JobErrorEnqueueFailed = "enqueue_failed"
	JobErrorAllItemsFailed = "all_items_failed"
	JobErrorStale          = "stale"
	JobErrorCancelled      = "cancelled"
)

// MaxJobIDLength bounds client-supplied job ids.
const MaxJobIDLength = 128

var (
	// ErrJobTerminal is returned when a mutation targets a completed or failed job.
	ErrJobTerminal = errors.New("job is terminal")
	// ErrNoActiveJob is returned by recovery when the user has nothing resumable.
	ErrNoActiveJob = errors.New("no active job")
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and JSON parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	if v == "" {
		*t = JobTypeTrackBatch
		return nil
	}
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeTrackBatch || t == JobTypePlaylist
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusInProgress || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether no further progress can be applied.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one batch submission. ItemIDs is fixed at creation and is the only
// source of truth for job membership during recovery.
type Job struct {
	ID             string     `json:"id"                     db:"id"`
	UserID         int64      `json:"userId"                 db:"user_id"`
	Type           JobType    `json:"jobType"                db:"job_type"`
	Status         JobStatus  `json:"status"                 db:"status"`
	ItemCount      int        `json:"itemCount"              db:"item_count"`
	ItemsProcessed int        `json:"itemsProcessed"         db:"items_processed"`
	ItemsSucceeded int        `json:"itemsSucceeded"         db:"items_succeeded"`
	ItemsFailed    int        `json:"itemsFailed"            db:"items_failed"`
	ItemIDs        []int64    `json:"itemIds"                db:"item_ids"`
	PlaylistID     *string    `json:"playlistId,omitempty"   db:"playlist_id"`
	ErrorMessage   *string    `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt      time.Time  `json:"createdAt"              db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt"              db:"updated_at"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"  db:"completed_at"`
}

// JobStats are the job's rollup counters.
type JobStats struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Stats returns the rollup counters.
func (j *Job) Stats() JobStats {
	return JobStats{
		Processed: j.ItemsProcessed,
		Succeeded: j.ItemsSucceeded,
		Failed:    j.ItemsFailed,
	}
}

// RollupComplete reports whether the stored counters already cover every item.
func (j *Job) RollupComplete() bool {
	return j.ItemCount > 0 && j.ItemsProcessed >= j.ItemCount
}

// FinalStatus is the terminal status implied by the counters once all items are processed.
// A job is failed only when every item failed.
func (j *Job) FinalStatus() JobStatus {
	if j.ItemCount > 0 && j.ItemsFailed >= j.ItemCount {
		return JobStatusFailed
	}
	return JobStatusCompleted
}

// CreateJobRequest describes a job to persist before its messages are enqueued.
type CreateJobRequest struct {
	ID         string
	UserID     int64
	Type       JobType
	ItemIDs    []int64
	PlaylistID *string
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("job id is required")
	}
	if len(r.ID) > MaxJobIDLength {
		return fmt.Errorf("job id exceeds %d characters", MaxJobIDLength)
	}
	if r.UserID <= 0 {
		return errors.New("user id is required")
	}
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if len(r.ItemIDs) == 0 {
		return errors.New("at least one item is required")
	}
	if r.Type == JobTypePlaylist && (r.PlaylistID == nil || strings.TrimSpace(*r.PlaylistID) == "") {
		return errors.New("playlist id is required for playlist jobs")
	}
	return nil
}

// RollupDelta is an additive update to a job's counters.
type RollupDelta struct {
	Succeeded int
	Failed    int
}

// Processed returns the number of items the delta accounts for.
func (d RollupDelta) Processed() int {
	return d.Succeeded + d.Failed
}

// IsZero reports whether the delta changes nothing.
func (d RollupDelta) IsZero() bool {
	return d.Succeeded == 0 && d.Failed == 0
}

// CountedOutcomes reports the outcomes a tally recorded for the first time.
type CountedOutcomes struct {
	Delta    RollupDelta
	TrackIDs []int64
}

// Includes reports whether trackID was newly counted.
func (c CountedOutcomes) Includes(trackID int64) bool {
	return slices.Contains(c.TrackIDs, trackID)
}

// JobListOptions controls job history listing.
type JobListOptions struct {
	UserID int64
	Limit  int
	Offset int
}
