package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/target/track-analysis-api/internal/domain/model"
)

var nextUserID atomic.Int64

// UniqueUserID returns a user id that no other test in the process uses.
// Tests sharing a database rely on this to stay clear of the one-active-job rule.
func UniqueUserID() int64 {
	return 1_000_000 + nextUserID.Add(1)
}

// JobRequestBuilder helps build test job requests with a fluent interface.
type JobRequestBuilder struct {
	request *model.CreateJobRequest
}

// NewJobRequest creates a new job request builder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		request: &model.CreateJobRequest{
			ID:      "job-" + uuid.NewString(),
			UserID:  UniqueUserID(),
			Type:    model.JobTypeTrackBatch,
			ItemIDs: []int64{1, 2, 3},
		},
	}
}

// WithID sets the job id.
func (b *JobRequestBuilder) WithID(id string) *JobRequestBuilder {
	b.request.ID = id
	return b
}

// WithUser sets the owning user.
func (b *JobRequestBuilder) WithUser(userID int64) *JobRequestBuilder {
	b.request.UserID = userID
	return b
}

// WithItems sets the item ids.
func (b *JobRequestBuilder) WithItems(ids ...int64) *JobRequestBuilder {
	b.request.ItemIDs = ids
	return b
}

// WithPlaylist turns the job into a playlist job.
func (b *JobRequestBuilder) WithPlaylist(playlistID string) *JobRequestBuilder {
	b.request.Type = model.JobTypePlaylist
	b.request.PlaylistID = &playlistID
	return b
}

// Build returns the constructed job request.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.request
}

// AnalysisJSON returns a minimal analysis payload for trackID.
func AnalysisJSON(trackID int64) []byte {
	return fmt.Appendf(nil, `{"trackId":%d,"mood":"calm","energy":0.4}`, trackID)
}
