// Package notify carries failed-job alerts to operator channels. Sinks live
// in subpackages; this package holds the shared payload and HTTP delivery.
package notify

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// JobFailurePayload is what every sink receives for a failed job.
type JobFailurePayload struct {
	JobID   string
	JobType string
	UserID  int64
	// Reason is the job's error code: all_items_failed, stale, cancelled
	// or enqueue_failed.
	Reason string

	ItemCount int
	Succeeded int
	Failed    int

	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink delivers one alert. Implementations must be safe for concurrent use.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc lets a plain function act as a Sink. A nil SinkFunc drops alerts.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// SeverityOrDefault normalises Severity, treating blank as critical.
func (p JobFailurePayload) SeverityOrDefault() string {
	if s := strings.ToLower(strings.TrimSpace(p.Severity)); s != "" {
		return s
	}
	return SeverityCritical
}

func (p JobFailurePayload) Summary() string {
	return fmt.Sprintf("Analysis job %s (%s) failed: %s",
		orUnknown(p.JobID), orUnknown(p.JobType), orUnknown(p.Reason))
}

// ItemTally is "N total, S succeeded, F failed"; empty jobs give "".
func (p JobFailurePayload) ItemTally() string {
	if p.ItemCount <= 0 {
		return ""
	}
	return fmt.Sprintf("%d total, %d succeeded, %d failed", p.ItemCount, p.Succeeded, p.Failed)
}

// Timestamp is OccurredAt in UTC, falling back to the current time.
func (p JobFailurePayload) Timestamp() time.Time {
	if p.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return p.OccurredAt.UTC()
}

// SortedKeys returns m's keys in order so rendered alerts are stable.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
