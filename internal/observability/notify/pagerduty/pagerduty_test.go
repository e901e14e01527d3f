package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/track-analysis-api/internal/observability/notify"
)

func TestNewClient_RequiresRoutingKey(t *testing.T) {
	_, err := NewClient(Config{RoutingKey: "  "})
	require.Error(t, err)
}

func TestBuildEvent(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := client.buildEvent(notify.JobFailurePayload{
		JobID:      "job-7",
		JobType:    "playlist",
		UserID:     9,
		Reason:     "stale",
		ItemCount:  4,
		Failed:     4,
		ErrorClass: "stale_job",
		OccurredAt: at,
		Metadata:   map[string]string{"provider": "google", "job_id": "ignored"},
	})

	assert.Equal(t, "trigger", ev.EventAction)
	assert.Equal(t, "analysis-job:job-7", ev.DedupKey)
	assert.Equal(t, "Analysis job job-7 (playlist) failed: stale", ev.Payload.Summary)
	assert.Equal(t, notify.SeverityCritical, ev.Payload.Severity)
	assert.Equal(t, "track-analysis", ev.Payload.Source)
	assert.Equal(t, "track-analysis", ev.Payload.Component)
	assert.Equal(t, "2026-03-01T12:00:00Z", ev.Payload.Timestamp)
	assert.Equal(t, "job-7", ev.Payload.CustomDetails["job_id"])
	assert.Equal(t, "google", ev.Payload.CustomDetails["provider"])
	assert.Equal(t, "stale_job", ev.Payload.CustomDetails["error_class"])
}

func TestSendJobFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "throttled", http.StatusTooManyRequests)
			return
		}
		var got event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "key", got.RoutingKey)
		assert.Equal(t, "warning", got.Payload.Severity)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL, RetryLimit: 1, Client: srv.Client()})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1", Severity: "WARNING"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendJobFailure_ExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL, Client: srv.Client()})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid routing key")
	assert.Contains(t, err.Error(), "pagerduty 400")
}
