package pgqueue

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/internal/queue/queuetest"
	"github.com/target/track-analysis-api/internal/testutil"
)

func TestTransportContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	testutil.WithAutoDB(t, func(db *sql.DB) {
		queuetest.RunContract(t, func(t *testing.T) queuetest.Transport {
			q, err := New(Options{DB: db, QueueName: "test_" + uuid.NewString()[:8]})
			require.NoError(t, err)
			return q
		})
	})
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{QueueName: "q"})
	require.Error(t, err)
	_, err = New(Options{DB: &sql.DB{}})
	require.Error(t, err)
}
