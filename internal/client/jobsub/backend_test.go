package jobsub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/track-analysis-api/internal/domain/model"
)

func TestHTTPBackend(t *testing.T) {
	var active bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Session-ID") != "sess-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/analysis/active-job":
			if !active {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			_ = json.NewEncoder(w).Encode(model.RecoveredJob{JobID: "job-1", Status: model.JobStatusInProgress})
		case r.Method == http.MethodPost && r.URL.Path == "/api/analysis/jobs":
			var req model.SubmitRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(model.SubmitResult{JobID: req.JobID, ItemIDs: req.ItemIDs, TotalQueued: len(req.ItemIDs)})
		case r.Method == http.MethodPost && r.URL.EscapedPath() == "/api/analysis/jobs/job%2F1/cancel":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","message":"Resource not found"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/analysis/jobs/job-1/cancel":
			_ = json.NewEncoder(w).Encode(model.Job{ID: "job-1", Status: model.JobStatusFailed})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(srv.Close)

	b := HTTPBackend{BaseURL: srv.URL + "/", SessionID: "sess-1"}
	ctx := context.Background()

	t.Run("recover without active job", func(t *testing.T) {
		_, err := b.Recover(ctx)
		require.ErrorIs(t, err, model.ErrNoActiveJob)
	})

	t.Run("recover active job", func(t *testing.T) {
		active = true
		t.Cleanup(func() { active = false })
		rec, err := b.Recover(ctx)
		require.NoError(t, err)
		assert.Equal(t, "job-1", rec.JobID)
	})

	t.Run("submit", func(t *testing.T) {
		res, err := b.Submit(ctx, model.SubmitRequest{JobID: "job-2", ItemIDs: []int64{1, 2}})
		require.NoError(t, err)
		assert.Equal(t, "job-2", res.JobID)
		assert.Equal(t, 2, res.TotalQueued)
	})

	t.Run("cancel", func(t *testing.T) {
		job, err := b.Cancel(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, job.Status)
	})

	t.Run("cancel escapes job id and surfaces api errors", func(t *testing.T) {
		_, err := b.Cancel(ctx, "job/1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, "not_found", apiErr.Code)
		assert.Contains(t, apiErr.Error(), "Resource not found")
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := HTTPBackend{BaseURL: srv.URL}.Recover(ctx)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	})
}
