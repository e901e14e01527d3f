package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// Stream message types.
const (
	StreamTypeJobStatus    = "job_status"
	StreamTypeJobCompleted = "job_completed"
	StreamTypePing         = "ping"
	StreamTypePong         = "pong"
)

const defaultStreamWriteTimeout = 10 * time.Second

// StreamEnvelope wraps item, progress and queued events.
type StreamEnvelope struct {
	Type string      `json:"type"`
	Data model.Event `json:"data"`
}

// StreamCompleted is the unwrapped job completion message. Type shadows the
// embedded event type.
type StreamCompleted struct {
	Type string `json:"type"`
	model.Event
}

// StreamFrame is the decoded form of any stream message.
type StreamFrame struct {
	Type string       `json:"type"`
	Data *model.Event `json:"data,omitempty"`
	model.Event
}

// streamMessage picks the wire shape for ev.
func streamMessage(ev model.Event) any {
	if ev.Type == model.EventJobCompleted {
		return StreamCompleted{Type: StreamTypeJobCompleted, Event: ev}
	}
	return StreamEnvelope{Type: StreamTypeJobStatus, Data: ev}
}

// StreamHandler pushes the caller's job notifications over a websocket.
type StreamHandler struct {
	Events       core.EventSubscriber
	Logger       *slog.Logger
	WriteTimeout time.Duration
}

// ServeHTTP handles GET /api/analysis/ws.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	srv := websocket.Server{
		Handshake: checkSameOrigin,
		Handler: func(conn *websocket.Conn) {
			h.serve(r.Context(), conn, userID)
		},
	}
	srv.ServeHTTP(w, r)
}

// checkSameOrigin rejects cross-site upgrades. Non-browser clients may omit Origin.
func checkSameOrigin(cfg *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	if u.Host != r.Host {
		return fmt.Errorf("origin %q not allowed", origin)
	}
	cfg.Origin = u
	return nil
}

func (h *StreamHandler) serve(parent context.Context, conn *websocket.Conn, userID int64) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "stream", "user_id", userID)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	events, unsubscribe, err := h.Events.Subscribe(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "subscribe failed", "error", err)
		return
	}
	defer unsubscribe()

	timeout := h.WriteTimeout
	if timeout <= 0 {
		timeout = defaultStreamWriteTimeout
	}
	var mu sync.Mutex
	send := func(v any) error {
		mu.Lock()
		defer mu.Unlock()
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		return websocket.JSON.Send(conn, v)
	}

	go func() {
		defer cancel()
		for {
			var frame StreamFrame
			if err := websocket.JSON.Receive(conn, &frame); err != nil {
				return
			}
			if frame.Type == StreamTypePing {
				if err := send(map[string]string{"type": StreamTypePong}); err != nil {
					return
				}
			}
		}
	}()

	logger.DebugContext(ctx, "stream opened")
	for {
		select {
		case <-ctx.Done():
			logger.DebugContext(ctx, "stream closed")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := send(streamMessage(ev)); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.DebugContext(ctx, "stream write failed", "error", err)
				}
				return
			}
		}
	}
}
