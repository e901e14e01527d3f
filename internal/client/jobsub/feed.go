package jobsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// SubscriberFeed follows one user through an in-process EventSubscriber.
type SubscriberFeed struct {
	Subscriber core.EventSubscriber
	UserID     int64
}

// Subscribe implements Feed.
func (f SubscriberFeed) Subscribe(ctx context.Context) (<-chan model.Event, func(), error) {
	return f.Subscriber.Subscribe(ctx, f.UserID)
}

// Stream message types sent by the websocket endpoint.
const (
	frameJobStatus    = "job_status"
	frameJobCompleted = "job_completed"
)

// frame is a decoded websocket message. job_status frames carry the event in
// Data; job_completed frames carry it inline.
type frame struct {
	Type string       `json:"type"`
	Data *model.Event `json:"data,omitempty"`
	model.Event
}

// decodeFrame converts a websocket message into an event. Pongs and unknown
// frames report false.
func decodeFrame(raw []byte) (model.Event, bool, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.Event{}, false, err
	}
	switch f.Type {
	case frameJobStatus:
		if f.Data == nil {
			return model.Event{}, false, errors.New("job_status frame without data")
		}
		return *f.Data, true, nil
	case frameJobCompleted:
		ev := f.Event
		ev.Type = model.EventJobCompleted
		return ev, true, nil
	default:
		return model.Event{}, false, nil
	}
}

// WebSocketFeed follows the API's websocket push endpoint.
type WebSocketFeed struct {
	URL        string // ws:// or wss:// URL of /api/analysis/ws
	Origin     string // Origin header; must share the API host
	SessionID  string
	HeaderName string       // Optional: defaults to X-Session-ID
	Buffer     int          // Optional: channel capacity, defaults to 16
	Logger     *slog.Logger // Optional: defaults to slog.Default
}

// Subscribe implements Feed. The channel closes when the connection drops.
func (f WebSocketFeed) Subscribe(ctx context.Context) (<-chan model.Event, func(), error) {
	cfg, err := websocket.NewConfig(f.URL, f.Origin)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket config: %w", err)
	}
	header := f.HeaderName
	if header == "" {
		header = "X-Session-ID"
	}
	cfg.Header = http.Header{}
	cfg.Header.Set(header, f.SessionID)

	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", f.URL, err)
	}

	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := f.Buffer
	if buffer <= 0 {
		buffer = 16
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan model.Event, buffer)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = conn.Close()
		})
	}
	stop := context.AfterFunc(ctx, unsubscribe)

	go func() {
		defer close(out)
		defer stop()
		for {
			var raw []byte
			if err := websocket.Message.Receive(conn, &raw); err != nil {
				if ctx.Err() == nil {
					logger.WarnContext(ctx, "websocket feed ended", "error", err)
				}
				unsubscribe()
				return
			}
			ev, ok, err := decodeFrame(raw)
			if err != nil {
				logger.WarnContext(ctx, "skipping malformed frame", "error", err)
				continue
			}
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, unsubscribe, nil
}
