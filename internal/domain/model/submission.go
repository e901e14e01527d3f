package model

// SubmitRequest is a client's request to analyze a set of items.
type SubmitRequest struct {
	UserID        int64   `json:"-"`
	ItemIDs       []int64 `json:"itemIds"`
	BatchSizeHint int     `json:"batchSizeHint,omitempty"`
	JobID         string  `json:"jobId,omitempty"`
	JobType       JobType `json:"jobType,omitempty"`
	PlaylistID    *string `json:"playlistId,omitempty"`
}

// SubmitResult acknowledges a submission. ItemIDs are the items that resolved
// to known tracks and were queued.
type SubmitResult struct {
	JobID       string  `json:"jobId"`
	ItemIDs     []int64 `json:"itemIds"`
	TotalQueued int     `json:"totalQueued"`

	// AlreadyAnalyzed lists requested tracks left out because they have a result.
	AlreadyAnalyzed []int64 `json:"alreadyAnalyzed,omitempty"`
}
