// Package queuetest holds the behavioral contract every queue transport must satisfy.
package queuetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// Transport is the surface under test.
type Transport interface {
	Enqueue(ctx context.Context, msg model.OutgoingMessage) (string, error)
	EnqueueBatch(ctx context.Context, msgs []model.OutgoingMessage) ([]string, error)
	Receive(ctx context.Context, opts model.ReceiveOptions) ([]model.ReceivedMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
	PurgeGroup(ctx context.Context, groupID string) (int64, error)
}

// Factory returns a fresh, empty transport for one subtest.
type Factory func(t *testing.T) Transport

// RunContract runs the shared transport contract.
func RunContract(t *testing.T, newTransport Factory) {
	t.Helper()

	t.Run("enqueue receive delete", func(t *testing.T) {
		q := newTransport(t)
		ctx := context.Background()

		id, err := q.Enqueue(ctx, model.OutgoingMessage{GroupID: "job-1", Body: []byte(`{"itemId":1}`)})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		msgs, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 10, VisibilityTimeout: time.Minute})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, id, msgs[0].ID)
		assert.JSONEq(t, `{"itemId":1}`, string(msgs[0].Body))
		assert.Equal(t, 1, msgs[0].ReceiveCount)

		require.NoError(t, q.Delete(ctx, msgs[0].ReceiptHandle))

		msgs, err = q.Receive(ctx, model.ReceiveOptions{MaxMessages: 10, VisibilityTimeout: time.Minute})
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("leased messages are invisible until the timeout lapses", func(t *testing.T) {
		q := newTransport(t)
		ctx := context.Background()

		_, err := q.Enqueue(ctx, model.OutgoingMessage{GroupID: "job-2", Body: []byte(`{}`)})
		require.NoError(t, err)

		first, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 1, VisibilityTimeout: 300 * time.Millisecond})
		require.NoError(t, err)
		require.Len(t, first, 1)

		hidden, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 1, VisibilityTimeout: time.Minute})
		require.NoError(t, err)
		assert.Empty(t, hidden)

		var again []model.ReceivedMessage
		require.Eventually(t, func() bool {
			again, err = q.Receive(ctx, model.ReceiveOptions{MaxMessages: 1, VisibilityTimeout: time.Minute})
			return err == nil && len(again) == 1
		}, 5*time.Second, 100*time.Millisecond)
		assert.Equal(t, first[0].ID, again[0].ID)
		assert.Equal(t, 2, again[0].ReceiveCount)

		err = q.Delete(ctx, first[0].ReceiptHandle)
		require.ErrorIs(t, err, model.ErrReceiptExpired, "stale handle must not delete a re-leased message")
		require.NoError(t, q.Delete(ctx, again[0].ReceiptHandle))
	})

	t.Run("receive is bounded by the batch limit", func(t *testing.T) {
		q := newTransport(t)
		ctx := context.Background()

		batch := make([]model.OutgoingMessage, 12)
		for i := range batch {
			batch[i] = model.OutgoingMessage{GroupID: "job-3", Body: fmt.Appendf(nil, `{"itemId":%d}`, i+1)}
		}
		ids, err := q.EnqueueBatch(ctx, batch)
		require.NoError(t, err)
		require.Len(t, ids, 12)

		msgs, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 50, VisibilityTimeout: time.Minute})
		require.NoError(t, err)
		assert.Len(t, msgs, model.MaxReceiveBatch)

		rest, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 10, VisibilityTimeout: time.Minute})
		require.NoError(t, err)
		assert.Len(t, rest, 2)
	})

	t.Run("long poll wakes on enqueue", func(t *testing.T) {
		q := newTransport(t)
		ctx := context.Background()

		go func() {
			time.Sleep(150 * time.Millisecond)
			_, _ = q.Enqueue(context.Background(), model.OutgoingMessage{GroupID: "job-4", Body: []byte(`{}`)})
		}()

		start := time.Now()
		msgs, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 1, VisibilityTimeout: time.Minute, WaitTime: 5 * time.Second})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("receive honors context cancellation", func(t *testing.T) {
		q := newTransport(t)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 1, WaitTime: 10 * time.Second})
		require.Error(t, err)
	})

	t.Run("purge group", func(t *testing.T) {
		q := newTransport(t)
		ctx := context.Background()

		_, err := q.EnqueueBatch(ctx, []model.OutgoingMessage{
			{GroupID: "job-a", Body: []byte(`{}`)},
			{GroupID: "job-a", Body: []byte(`{}`)},
			{GroupID: "job-b", Body: []byte(`{}`)},
		})
		require.NoError(t, err)

		n, err := q.PurgeGroup(ctx, "job-a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		msgs, err := q.Receive(ctx, model.ReceiveOptions{MaxMessages: 10, VisibilityTimeout: time.Minute})
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})
}
