package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/target/track-analysis-api/internal/errors"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"app error code", apperrors.TransportFailure(goerrors.New("dial"), "queue unavailable"), "transport_failure"},
		{"wrapped app error", fmt.Errorf("apply: %w", apperrors.StaleJob("job-1")), "stale_job"},
		{"deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"innermost type", fmt.Errorf("send: %w", &net.OpError{Op: "write", Err: goerrors.New("refused")}), "errors_errorstring"},
		{"plain", goerrors.New("boom"), "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
