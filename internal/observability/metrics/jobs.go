// Package metrics holds the metric names and tag conventions shared by the
// job services, the worker and the reaper.
package metrics

import (
	"time"

	obserrors "github.com/target/track-analysis-api/internal/observability/errors"
	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// ResultFor tags an operation that touched n records: error wins, then an
// empty pass is a noop.
func ResultFor(err error, n int64) string {
	switch {
	case err != nil:
		return ResultError
	case n == 0:
		return ResultNoop
	default:
		return ResultSuccess
	}
}

// ResultTags builds {"result": ..., "error_class": ...} plus any extra
// key/value pairs. error_class is only set for ResultError.
func ResultTags(result string, err error, kv ...string) map[string]string {
	tags := make(map[string]string, 2+len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		tags[kv[i]] = kv[i+1]
	}
	tags["result"] = result
	if result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}

// JobMetric describes one job state change.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
	// Analyzed and Failed are the final item tallies of a finished job.
	Analyzed int
	Failed   int
}

// EmitJobLifecycle counts the transition, times it when Duration is set and
// records item tallies for finished jobs.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}
	tags := ResultTags(in.Result, in.Err, "job_type", in.JobType, "transition", in.Transition)
	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
	if in.Analyzed > 0 {
		sink.Count("job.items", int64(in.Analyzed), map[string]string{"job_type": in.JobType, "outcome": "analyzed"})
	}
	if in.Failed > 0 {
		sink.Count("job.items", int64(in.Failed), map[string]string{"job_type": in.JobType, "outcome": "failed"})
	}
}

// CloneTags returns a copy of src so a sink may retain it.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
