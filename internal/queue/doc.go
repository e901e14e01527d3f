// Package queue holds the Queue Transport implementations: pgqueue (Postgres
// visibility leases), redisqueue (sorted-set visibility) and memqueue (in-process).
// All of them are at-least-once: a received message becomes visible again
// once its visibility timeout lapses unless it is deleted first.
package queue

import (
	"time"

	"github.com/target/track-analysis-api/internal/domain/model"
)

// Defaults applied to zero-valued receive options.
const (
	DefaultVisibilityTimeout = 5 * time.Minute
	DefaultWaitTime          = 20 * time.Second
)

// NormalizeReceive clamps opts to transport limits.
func NormalizeReceive(opts model.ReceiveOptions) model.ReceiveOptions {
	if opts.MaxMessages <= 0 || opts.MaxMessages > model.MaxReceiveBatch {
		opts.MaxMessages = model.MaxReceiveBatch
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = DefaultVisibilityTimeout
	}
	if opts.WaitTime < 0 {
		opts.WaitTime = 0
	}
	return opts
}
