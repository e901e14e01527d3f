// Package bridge implements the Notification Bridge over Redis pub/sub.
//
// Events are published to one channel per user. Delivery is best effort:
// nothing is persisted, and subscribers that are not connected miss events.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/track-analysis-api/internal/core"
	domainjob "github.com/target/track-analysis-api/internal/domain/job"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/observability/metrics"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// DefaultChannelPrefix is prepended to the user id to form a channel name.
const DefaultChannelPrefix = "analysis:events:"

// ErrClientRequired indicates a bridge component was built without a Redis client.
var ErrClientRequired = errors.New("bridge redis client is required")

// Channel returns the pub/sub channel for userID.
func Channel(prefix string, userID int64) string {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return prefix + strconv.FormatInt(userID, 10)
}

// PublisherOptions groups dependencies for Publisher.
type PublisherOptions struct {
	Client  redis.UniversalClient // Required: Redis connection
	Prefix  string                // Optional: channel prefix
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink (StatsD-compatible)
}

// Publisher posts events on the user's channel.
type Publisher struct {
	client  redis.UniversalClient
	prefix  string
	logger  *slog.Logger
	metrics statsd.Sink
}

var _ core.EventPublisher = (*Publisher)(nil)

// NewPublisher constructs a Publisher.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.Client == nil {
		return nil, ErrClientRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:  opts.Client,
		prefix:  opts.Prefix,
		logger:  logger.With("component", "bridge_publisher"),
		metrics: opts.Metrics,
	}, nil
}

// Publish implements core.EventPublisher. Events without a user id cannot be routed.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	if ev.UserID <= 0 {
		return fmt.Errorf("event %s for job %s has no user", ev.Type, ev.JobID)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.client.Publish(ctx, Channel(p.prefix, ev.UserID), payload).Err()
	if p.metrics != nil {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		p.metrics.Count("bridge.publish", 1, map[string]string{"type": string(ev.Type), "result": result})
	}
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Source reads a user's channel. It implements job.EventSource for the event hub.
type Source struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ domainjob.EventSource = (*Source)(nil)

// NewSource constructs a Source.
func NewSource(client redis.UniversalClient, prefix string, logger *slog.Logger) (*Source, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{client: client, prefix: prefix, logger: logger.With("component", "bridge_source")}, nil
}

// Listen subscribes to the user's channel and delivers decoded events until ctx ends.
func (s *Source) Listen(ctx context.Context, userID int64, deliver func(model.Event)) error {
	ps := s.client.Subscribe(ctx, Channel(s.prefix, userID))
	defer func() {
		if err := ps.Close(); err != nil {
			s.logger.Debug("close subscription", "user_id", userID, "error", err)
		}
	}()

	// Receive the subscription confirmation so a broken connection surfaces here.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe user %d: %w", userID, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			var ev model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.WarnContext(ctx, "dropping malformed event", "user_id", userID, "error", err)
				continue
			}
			deliver(ev)
		}
	}
}

// Subscriber implements core.EventSubscriber on top of an event hub, so any
// number of local subscribers share one Redis subscription per user.
type Subscriber struct {
	hub *domainjob.EventHub
}

var _ core.EventSubscriber = (*Subscriber)(nil)

// NewSubscriber constructs a Subscriber backed by hub.
func NewSubscriber(hub *domainjob.EventHub) *Subscriber {
	return &Subscriber{hub: hub}
}

// Subscribe implements core.EventSubscriber. The subscription ends when ctx
// ends or unsubscribe is called, whichever comes first.
func (s *Subscriber) Subscribe(ctx context.Context, userID int64) (<-chan model.Event, func(), error) {
	if s.hub == nil {
		return nil, nil, errors.New("event hub is not configured")
	}
	if userID <= 0 {
		return nil, nil, fmt.Errorf("invalid user id %d", userID)
	}
	unsub, ch := s.hub.Subscribe(userID)
	stop := context.AfterFunc(ctx, unsub)
	return ch, func() {
		stop()
		unsub()
	}, nil
}

// Close stops every upstream subscription.
func (s *Subscriber) Close() {
	if s.hub != nil {
		s.hub.StopAll()
	}
}
