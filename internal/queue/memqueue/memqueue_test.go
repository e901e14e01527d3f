package memqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/queue/queuetest"
)

func TestTransportContract(t *testing.T) {
	queuetest.RunContract(t, func(t *testing.T) queuetest.Transport {
		return New(nil)
	})
}

func TestFailEnqueue(t *testing.T) {
	q := New(nil)
	q.FailEnqueue = errors.New("queue down")

	_, err := q.EnqueueBatch(context.Background(), []model.OutgoingMessage{{GroupID: "j", Body: []byte(`{}`)}})
	require.Error(t, err)

	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	require.Zero(t, depth)
}
