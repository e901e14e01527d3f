package model

import "time"

// EventType distinguishes notification payloads.
type EventType string

const (
	// EventItemStatus reports the state of one item.
	EventItemStatus EventType = "ITEM_STATUS"
	// EventBatchQueued reports that a submission's items were enqueued.
	EventBatchQueued EventType = "batch_tracks_queued"
	// EventBatchProgress reports provider progress within a batch.
	EventBatchProgress EventType = "BATCH_PROGRESS"
	// EventJobCompleted reports that a job reached a terminal status.
	EventJobCompleted EventType = "JOB_COMPLETED"
)

// ItemStatus values carried on notifications.
type ItemStatus string

const (
	ItemStatusQueued     ItemStatus = "QUEUED"
	ItemStatusInProgress ItemStatus = "IN_PROGRESS"
	ItemStatusCompleted  ItemStatus = "COMPLETED"
	ItemStatusFailed     ItemStatus = "FAILED"
	ItemStatusSkipped    ItemStatus = "SKIPPED"
)

// Event is a best-effort notification. It is a freshness signal only.
type Event struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"jobId"`
	UserID    int64     `json:"userId,omitempty"`
	ItemID    int64     `json:"itemId,omitempty"`
	ItemIDs   []int64   `json:"itemIds,omitempty"`
	Status    string    `json:"status,omitempty"`
	Completed int       `json:"completed,omitempty"`
	Total     int       `json:"total,omitempty"`
	Stats     *JobStats `json:"stats,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewItemEvent builds a per-item status event.
func NewItemEvent(job string, userID, itemID int64, status ItemStatus, at time.Time) Event {
	return Event{
		Type:      EventItemStatus,
		JobID:     job,
		UserID:    userID,
		ItemID:    itemID,
		Status:    string(status),
		Timestamp: at.UTC(),
	}
}

// NewProgressEvent builds a batch progress event.
func NewProgressEvent(job string, userID int64, completed, total int, at time.Time) Event {
	return Event{
		Type:      EventBatchProgress,
		JobID:     job,
		UserID:    userID,
		Completed: completed,
		Total:     total,
		Timestamp: at.UTC(),
	}
}

// NewJobCompletedEvent builds a job completion event from the job's final record.
func NewJobCompletedEvent(job *Job, at time.Time) Event {
	stats := job.Stats()
	ev := Event{
		Type:      EventJobCompleted,
		JobID:     job.ID,
		UserID:    job.UserID,
		Status:    string(job.Status),
		Stats:     &stats,
		Timestamp: at.UTC(),
	}
	if job.ErrorMessage != nil {
		ev.Error = *job.ErrorMessage
	}
	return ev
}

// NewBatchQueuedEvent builds the submission acknowledgement event.
func NewBatchQueuedEvent(job string, userID int64, itemIDs []int64, at time.Time) Event {
	return Event{
		Type:      EventBatchQueued,
		JobID:     job,
		UserID:    userID,
		ItemIDs:   append([]int64(nil), itemIDs...),
		Status:    string(ItemStatusQueued),
		Total:     len(itemIDs),
		Timestamp: at.UTC(),
	}
}
