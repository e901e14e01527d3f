package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainjob "github.com/target/track-analysis-api/internal/domain/job"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/testutil"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "analysis:events:42", Channel("", 42))
	assert.Equal(t, "x:7", Channel("x:", 7))
}

func TestConstructorsRequireClient(t *testing.T) {
	_, err := NewPublisher(PublisherOptions{})
	require.ErrorIs(t, err, ErrClientRequired)

	_, err = NewSource(nil, "", nil)
	require.ErrorIs(t, err, ErrClientRequired)
}

func TestPublisher_RejectsEventWithoutUser(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	pub, err := NewPublisher(PublisherOptions{Client: client})
	require.NoError(t, err)

	err = pub.Publish(context.Background(), model.Event{Type: model.EventItemStatus, JobID: "j"})
	require.Error(t, err)
}

func TestBridge_PublishSubscribeRoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	prefix := "test:events:" + t.Name() + ":"

	pub, err := NewPublisher(PublisherOptions{Client: client, Prefix: prefix})
	require.NoError(t, err)
	src, err := NewSource(client, prefix, nil)
	require.NoError(t, err)
	hub, err := domainjob.NewEventHub(domainjob.HubOptions{Source: src, Backoff: 20 * time.Millisecond})
	require.NoError(t, err)
	sub := NewSubscriber(hub)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, unsubscribe, err := sub.Subscribe(ctx, 11)
	require.NoError(t, err)
	defer unsubscribe()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	want := model.NewItemEvent("job-1", 11, 5, model.ItemStatusCompleted, at)

	// The upstream subscription starts asynchronously; publish until it is seen.
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
			return
		case <-ticker.C:
			require.NoError(t, pub.Publish(ctx, want))
			// Other users' channels are not delivered.
			require.NoError(t, pub.Publish(ctx, model.NewItemEvent("job-2", 12, 5, model.ItemStatusFailed, at)))
		case <-ctx.Done():
			t.Fatal("event was not delivered")
		}
	}
}

type chanSource struct {
	events chan model.Event
}

func (s *chanSource) Listen(ctx context.Context, _ int64, deliver func(model.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			deliver(ev)
		}
	}
}

func TestSubscriber_ContextEndsSubscription(t *testing.T) {
	hub, err := domainjob.NewEventHub(domainjob.HubOptions{Source: &chanSource{events: make(chan model.Event)}})
	require.NoError(t, err)
	sub := NewSubscriber(hub)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, unsubscribe, err := sub.Subscribe(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers(3))

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel closes when the context ends")
	case <-time.After(time.Second):
		t.Fatal("subscription did not end")
	}
	assert.Equal(t, 0, hub.Subscribers(3))
	unsubscribe()
}

func TestSubscriber_InvalidUser(t *testing.T) {
	hub, err := domainjob.NewEventHub(domainjob.HubOptions{Source: &chanSource{}})
	require.NoError(t, err)

	_, _, err = NewSubscriber(hub).Subscribe(context.Background(), 0)
	require.Error(t, err)
}
