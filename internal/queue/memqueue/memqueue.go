// Package memqueue is an in-process queue transport with the same visibility
// semantics as the durable transports. It backs tests and single-process runs.
package memqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/queue"
)

type message struct {
	id        string
	group     string
	body      []byte
	handle    string
	count     int
	sentAt    time.Time
	visibleAt time.Time
	seq       uint64
}

// Transport is an in-memory QueueTransport. The zero value is not usable; call New.
type Transport struct {
	mu     sync.Mutex
	msgs   map[string]*message
	seq    uint64
	now    func() time.Time
	notify chan struct{}

	// FailEnqueue, when set, is returned by Enqueue and EnqueueBatch.
	FailEnqueue error
}

// New constructs an empty Transport. now may be nil.
func New(now func() time.Time) *Transport {
	if now == nil {
		now = time.Now
	}
	return &Transport{
		msgs:   make(map[string]*message),
		now:    now,
		notify: make(chan struct{}),
	}
}

// Enqueue adds one message.
func (t *Transport) Enqueue(ctx context.Context, msg model.OutgoingMessage) (string, error) {
	ids, err := t.EnqueueBatch(ctx, []model.OutgoingMessage{msg})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// EnqueueBatch adds all messages atomically.
func (t *Transport) EnqueueBatch(_ context.Context, msgs []model.OutgoingMessage) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailEnqueue != nil {
		return nil, t.FailEnqueue
	}
	now := t.now()
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		t.seq++
		id := uuid.NewString()
		t.msgs[id] = &message{
			id:        id,
			group:     m.GroupID,
			body:      append([]byte(nil), m.Body...),
			sentAt:    now,
			visibleAt: now,
			seq:       t.seq,
		}
		ids = append(ids, id)
	}
	t.wakeLocked()
	return ids, nil
}

func (t *Transport) wakeLocked() {
	close(t.notify)
	t.notify = make(chan struct{})
}

// Receive leases visible messages, waiting up to opts.WaitTime for an enqueue.
func (t *Transport) Receive(ctx context.Context, opts model.ReceiveOptions) ([]model.ReceivedMessage, error) {
	opts = queue.NormalizeReceive(opts)
	timer := time.NewTimer(opts.WaitTime)
	defer timer.Stop()
	for {
		msgs, wake := t.lease(opts)
		if len(msgs) > 0 || opts.WaitTime == 0 {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			msgs, _ = t.lease(opts)
			return msgs, nil
		case <-wake:
		}
	}
}

func (t *Transport) lease(opts model.ReceiveOptions) ([]model.ReceivedMessage, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	visible := make([]*message, 0)
	for _, m := range t.msgs {
		if !m.visibleAt.After(now) {
			visible = append(visible, m)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].seq < visible[j].seq })
	if len(visible) > opts.MaxMessages {
		visible = visible[:opts.MaxMessages]
	}

	out := make([]model.ReceivedMessage, 0, len(visible))
	for _, m := range visible {
		m.handle = m.id + ":" + uuid.NewString()
		m.count++
		m.visibleAt = now.Add(opts.VisibilityTimeout)
		out = append(out, model.ReceivedMessage{
			ID:            m.id,
			ReceiptHandle: m.handle,
			Body:          append([]byte(nil), m.body...),
			ReceiveCount:  m.count,
			SentAt:        m.sentAt,
		})
	}
	return out, t.notify
}

// Delete removes a leased message.
func (t *Transport) Delete(_ context.Context, receiptHandle string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, m := range t.msgs {
		if m.handle != "" && m.handle == receiptHandle {
			delete(t.msgs, id)
			return nil
		}
	}
	return model.ErrReceiptExpired
}

// PurgeGroup removes all messages of a group.
func (t *Transport) PurgeGroup(_ context.Context, groupID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	for id, m := range t.msgs {
		if m.group == groupID {
			delete(t.msgs, id)
			n++
		}
	}
	return n, nil
}

// Depth returns the number of stored messages.
func (t *Transport) Depth(context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int64(len(t.msgs)), nil
}
