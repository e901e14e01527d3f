package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/target/track-analysis-api/internal/domain/model"
)

// ErrSourceRequired indicates a hub cannot be constructed without an event source.
var ErrSourceRequired = errors.New("hub event source is required")

// EventSource streams a user's events into deliver until ctx ends or the stream fails.
type EventSource interface {
	Listen(ctx context.Context, userID int64, deliver func(model.Event)) error
}

// HubOptions configure an EventHub.
type HubOptions struct {
	Source EventSource
	// Backoff is the pause before reopening a failed upstream stream.
	Backoff time.Duration
	// Buffer is the per-subscriber channel capacity. Events beyond it are dropped.
	Buffer int
}

// EventHub shares one upstream stream per user among any number of local
// subscribers. Delivery is best effort: a slow subscriber loses events, never blocks others.
type EventHub struct {
	source  EventSource
	backoff time.Duration
	buffer  int

	mu        sync.Mutex
	subs      map[int64]map[chan model.Event]struct{}
	listeners map[int64]context.CancelFunc
}

// NewEventHub constructs an EventHub.
func NewEventHub(opts HubOptions) (*EventHub, error) {
	if opts.Source == nil {
		return nil, ErrSourceRequired
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &EventHub{
		source:    opts.Source,
		backoff:   backoff,
		buffer:    buffer,
		subs:      make(map[int64]map[chan model.Event]struct{}),
		listeners: make(map[int64]context.CancelFunc),
	}, nil
}

// Subscribe registers a subscriber for userID. The returned function unsubscribes and closes the channel.
func (h *EventHub) Subscribe(userID int64) (func(), <-chan model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[userID]; !ok {
		ctx, cancel := context.WithCancel(context.Background())
		h.listeners[userID] = cancel
		go h.listenLoop(ctx, userID)
	}

	ch := make(chan model.Event, h.buffer)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan model.Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subscribers := h.subs[userID]
			if _, ok := subscribers[ch]; !ok {
				return
			}
			delete(subscribers, ch)
			close(ch)
			if len(subscribers) == 0 {
				h.stopListener(userID)
				delete(h.subs, userID)
			}
		})
	}
	return unsub, ch
}

// Subscribers returns the number of local subscribers for userID.
func (h *EventHub) Subscribers(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// StopAll cancels every upstream stream and closes all subscriber channels.
func (h *EventHub) StopAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, cancel := range h.listeners {
		cancel()
		delete(h.listeners, userID)
	}
	for userID, subscribers := range h.subs {
		for ch := range subscribers {
			close(ch)
		}
		delete(h.subs, userID)
	}
}

func (h *EventHub) stopListener(userID int64) {
	cancel, ok := h.listeners[userID]
	if !ok {
		return
	}
	cancel()
	delete(h.listeners, userID)
}

func (h *EventHub) listenLoop(ctx context.Context, userID int64) {
	for ctx.Err() == nil {
		err := h.source.Listen(ctx, userID, func(ev model.Event) {
			h.broadcast(userID, ev)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			timer := time.NewTimer(h.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func (h *EventHub) broadcast(userID int64, ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
