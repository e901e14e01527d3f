package model

import "time"

// ItemState is the recovered state of one item of a job.
type ItemState string

const (
	ItemStateQueued     ItemState = "queued"
	ItemStateInProgress ItemState = "in_progress"
	ItemStateCompleted  ItemState = "completed"
	ItemStateFailed     ItemState = "failed"
)

// Settled reports whether the item has reached an outcome.
func (s ItemState) Settled() bool {
	return s == ItemStateCompleted || s == ItemStateFailed
}

// ItemStateSource records which persisted record decided an item's state.
type ItemStateSource string

const (
	SourceAttempt ItemStateSource = "attempt"
	SourceResult  ItemStateSource = "result"
	SourceDefault ItemStateSource = "default"
)

// ItemStatePair is one entry of the ordered item state list.
type ItemStatePair struct {
	ItemID int64           `json:"itemId"`
	State  ItemState       `json:"state"`
	Source ItemStateSource `json:"source,omitempty"`
}

// RecoveredJob is a job reconstructed from persisted records alone.
// ItemStates preserves the order of the job's ItemIDs.
type RecoveredJob struct {
	JobID      string          `json:"jobId"`
	UserID     int64           `json:"userId"`
	Status     JobStatus       `json:"status"`
	JobType    JobType         `json:"jobType"`
	ItemCount  int             `json:"itemCount"`
	ItemStates []ItemStatePair `json:"itemStates"`
	DBStats    JobStats        `json:"dbStats"`
	CreatedAt  time.Time       `json:"createdAt"`
	// Message is a user-facing note, set when recovery failed a stalled job.
	Message string `json:"message,omitempty"`
	// Transitioned is set when recovery moved the job to a terminal status.
	Transitioned bool `json:"-"`
}

// StateMap rebuilds an associative view of ItemStates.
func (r *RecoveredJob) StateMap() map[int64]ItemState {
	out := make(map[int64]ItemState, len(r.ItemStates))
	for _, p := range r.ItemStates {
		out[p.ItemID] = p.State
	}
	return out
}

// CountStates tallies item states.
func (r *RecoveredJob) CountStates() map[ItemState]int {
	out := make(map[ItemState]int, 4)
	for _, p := range r.ItemStates {
		out[p.State]++
	}
	return out
}

// SettledCount returns the number of items with an outcome.
func (r *RecoveredJob) SettledCount() int {
	n := 0
	for _, p := range r.ItemStates {
		if p.State.Settled() {
			n++
		}
	}
	return n
}

// ItemOutcome is the result of processing one item.
type ItemOutcome struct {
	TrackID   int64
	Succeeded bool
	Result    *SaveResultRequest
	Failure   *AttemptFailure
}

// ApplyOutcomesResult reports the effect of applying a group of outcomes.
type ApplyOutcomesResult struct {
	Job *Job
	// Counted holds the outcomes that advanced the rollups; redelivered items are excluded.
	Counted RollupDelta
	// PersistFailed lists items whose result write failed and were recorded as failures.
	PersistFailed []int64
	// Completed is set when this apply moved the job to a terminal status.
	Completed bool
}

// BeginResult reports which items of a group should be processed.
type BeginResult struct {
	Job *Job
	// Process are items not yet settled for this job.
	Process []int64
	// Skip are items already settled, or all items when the job is terminal.
	Skip []int64
}
