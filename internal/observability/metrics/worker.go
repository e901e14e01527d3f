package metrics

import (
	"time"

	"github.com/target/track-analysis-api/internal/observability/statsd"
)

// PollMetric summarises one worker receive-and-process cycle.
type PollMetric struct {
	Received  int
	Succeeded int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
	Err       error
}

// EmitPoll records a poll cycle. Item counters are only sent when messages arrived.
func EmitPoll(sink statsd.Sink, in PollMetric) {
	if sink == nil {
		return
	}
	tags := ResultTags(ResultFor(in.Err, int64(in.Received)), in.Err)
	sink.Count("worker.poll", 1, tags)
	sink.Timing("worker.poll_duration", in.Elapsed, CloneTags(tags))
	if in.Received == 0 {
		return
	}
	sink.Count("worker.messages_received", int64(in.Received), nil)
	sink.Count("worker.items", int64(in.Succeeded), map[string]string{"outcome": "analyzed"})
	sink.Count("worker.items", int64(in.Failed), map[string]string{"outcome": "failed"})
	sink.Count("worker.items", int64(in.Skipped), map[string]string{"outcome": "skipped"})
}

// Operation is one step of a periodic maintenance pass such as the reaper.
type Operation struct {
	Component string
	Name      string
	Count     int64
	Err       error
}

// EmitOperation counts the step and, on success, how many records it touched.
func EmitOperation(sink statsd.Sink, op Operation) {
	if sink == nil {
		return
	}
	tags := ResultTags(ResultFor(op.Err, op.Count), op.Err, "operation", op.Name)
	sink.Count(op.Component+".operation", 1, tags)
	if op.Err == nil && op.Count > 0 {
		sink.Count(op.Component+".records", op.Count, CloneTags(tags))
	}
}
