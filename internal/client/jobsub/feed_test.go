package jobsub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/target/track-analysis-api/internal/domain/model"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    model.Event
		ok      bool
		wantErr bool
	}{
		{
			name: "job status",
			raw:  `{"type":"job_status","data":{"type":"ITEM_STATUS","jobId":"j1","itemId":7,"status":"COMPLETED","timestamp":"2025-03-01T12:00:00Z"}}`,
			want: model.Event{Type: model.EventItemStatus, JobID: "j1", ItemID: 7, Status: "COMPLETED", Timestamp: testNow},
			ok:   true,
		},
		{
			name: "job completed",
			raw:  `{"type":"job_completed","jobId":"j1","status":"completed","stats":{"processed":2,"succeeded":2,"failed":0},"timestamp":"2025-03-01T12:00:00Z"}`,
			want: model.Event{
				Type:      model.EventJobCompleted,
				JobID:     "j1",
				Status:    "completed",
				Stats:     &model.JobStats{Processed: 2, Succeeded: 2},
				Timestamp: testNow,
			},
			ok: true,
		},
		{name: "pong", raw: `{"type":"pong"}`},
		{name: "status without data", raw: `{"type":"job_status"}`, wantErr: true},
		{name: "garbage", raw: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := decodeFrame([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestWebSocketFeed(t *testing.T) {
	gotSession := make(chan string, 1)
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		gotSession <- ws.Request().Header.Get("X-Session-ID")
		frames := []string{
			`{"type":"pong"}`,
			`{"type":"job_status","data":{"type":"BATCH_PROGRESS","jobId":"j1","completed":1,"total":2,"timestamp":"2025-03-01T12:00:00Z"}}`,
			`not json`,
			`{"type":"job_completed","jobId":"j1","status":"completed","timestamp":"2025-03-01T12:00:00Z"}`,
		}
		for _, f := range frames {
			if err := websocket.Message.Send(ws, f); err != nil {
				return
			}
		}
		// Hold the connection until the client hangs up.
		var discard string
		_ = websocket.Message.Receive(ws, &discard)
	}))
	t.Cleanup(srv.Close)

	feed := WebSocketFeed{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/analysis/ws",
		Origin:    srv.URL,
		SessionID: "sess-1",
	}
	events, unsubscribe, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	assert.Equal(t, "sess-1", <-gotSession)

	var got []model.Event
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, model.EventBatchProgress, got[0].Type)
	assert.Equal(t, 1, got[0].Completed)
	assert.Equal(t, model.EventJobCompleted, got[1].Type)

	unsubscribe()
	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestWebSocketFeed_DialFailure(t *testing.T) {
	feed := WebSocketFeed{URL: "ws://127.0.0.1:1/api/analysis/ws", Origin: "http://127.0.0.1:1"}
	_, _, err := feed.Subscribe(context.Background())
	require.Error(t, err)
}
