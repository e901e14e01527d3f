package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/internal/domain/model"
)

type stubSource struct {
	calls  chan int64
	events chan model.Event
	err    error
	opens  atomic.Int32
}

func (s *stubSource) Listen(ctx context.Context, userID int64, deliver func(model.Event)) error {
	s.opens.Add(1)
	select {
	case s.calls <- userID:
	default:
	}
	if s.err != nil {
		return s.err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			deliver(ev)
		}
	}
}

func waitCall(t *testing.T, src *stubSource) {
	t.Helper()
	select {
	case <-src.calls:
	case <-time.After(time.Second):
		t.Fatal("expected source to be opened")
	}
}

func TestNewEventHubRequiresSource(t *testing.T) {
	hub, err := NewEventHub(HubOptions{})
	require.ErrorIs(t, err, ErrSourceRequired)
	assert.Nil(t, hub)
}

func TestEventHub_FanOutToSubscribers(t *testing.T) {
	src := &stubSource{calls: make(chan int64, 4), events: make(chan model.Event)}
	hub, err := NewEventHub(HubOptions{Source: src})
	require.NoError(t, err)
	defer hub.StopAll()

	unsubA, a := hub.Subscribe(7)
	defer unsubA()
	unsubB, b := hub.Subscribe(7)
	defer unsubB()
	waitCall(t, src)
	assert.EqualValues(t, 1, src.opens.Load(), "one upstream stream per user")
	assert.Equal(t, 2, hub.Subscribers(7))

	src.events <- model.Event{JobID: "job-1", ItemID: 3}

	for _, ch := range []<-chan model.Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, int64(3), ev.ItemID)
		case <-time.After(time.Second):
			t.Fatal("expected event")
		}
	}
}

func TestEventHub_UnsubscribeClosesChannel(t *testing.T) {
	src := &stubSource{calls: make(chan int64, 1), events: make(chan model.Event)}
	hub, err := NewEventHub(HubOptions{Source: src})
	require.NoError(t, err)

	unsub, ch := hub.Subscribe(1)
	waitCall(t, src)

	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.Zero(t, hub.Subscribers(1))
}

func TestEventHub_RestartsFailedSource(t *testing.T) {
	src := &stubSource{calls: make(chan int64, 8), err: errors.New("redis down")}
	hub, err := NewEventHub(HubOptions{Source: src, Backoff: 10 * time.Millisecond})
	require.NoError(t, err)

	unsub, _ := hub.Subscribe(2)
	defer unsub()

	waitCall(t, src)
	waitCall(t, src)
	assert.GreaterOrEqual(t, src.opens.Load(), int32(2))
}

func TestEventHub_SlowSubscriberDropsEvents(t *testing.T) {
	src := &stubSource{calls: make(chan int64, 1), events: make(chan model.Event)}
	hub, err := NewEventHub(HubOptions{Source: src, Buffer: 1})
	require.NoError(t, err)
	defer hub.StopAll()

	_, ch := hub.Subscribe(3)
	waitCall(t, src)

	src.events <- model.Event{ItemID: 1}
	src.events <- model.Event{ItemID: 2}
	src.events <- model.Event{ItemID: 3}

	require.Eventually(t, func() bool { return len(ch) == 1 }, time.Second, 10*time.Millisecond)
	ev := <-ch
	assert.Equal(t, int64(1), ev.ItemID)
}

func TestEventHub_StopAllClosesChannels(t *testing.T) {
	src := &stubSource{calls: make(chan int64, 2), events: make(chan model.Event)}
	hub, err := NewEventHub(HubOptions{Source: src})
	require.NoError(t, err)

	unsubA, a := hub.Subscribe(10)
	unsubB, b := hub.Subscribe(11)
	waitCall(t, src)
	waitCall(t, src)

	hub.StopAll()
	for _, ch := range []<-chan model.Event{a, b} {
		_, ok := <-ch
		assert.False(t, ok)
	}
	unsubA()
	unsubB()
}
