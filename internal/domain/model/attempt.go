package model

import "time"

// AttemptStatus is the state of an outstanding or failed processing attempt.
type AttemptStatus string

const (
	// AttemptStatusInProgress marks an item a worker has picked up.
	AttemptStatusInProgress AttemptStatus = "in_progress"
	// AttemptStatusFailed marks an item whose last attempt failed.
	AttemptStatusFailed AttemptStatus = "failed"
)

// Attempt error categories.
const (
	AttemptErrorAnalysis    = "ANALYSIS_FAILED"
	AttemptErrorPersistence = "PERSISTENCE_FAILED"
	AttemptErrorCancelled   = "cancelled"
	AttemptErrorStale       = "STALE_JOB"
)

// Valid returns true if the AttemptStatus is valid.
func (s AttemptStatus) Valid() bool {
	return s == AttemptStatusInProgress || s == AttemptStatusFailed
}

// Attempt is the ledger entry for one item within one job. Successful
// attempts are deleted; the analysis result becomes the terminal record.
type Attempt struct {
	ID           int64         `json:"id"                     db:"id"`
	JobID        string        `json:"jobId"                  db:"job_id"`
	TrackID      int64         `json:"trackId"                db:"track_id"`
	Status       AttemptStatus `json:"status"                 db:"status"`
	ErrorType    *string       `json:"errorType,omitempty"    db:"error_type"`
	ErrorMessage *string       `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt    time.Time     `json:"createdAt"              db:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt"              db:"updated_at"`
}

// AttemptFailure describes why an item failed.
type AttemptFailure struct {
	TrackID      int64
	ErrorType    string
	ErrorMessage string
}
