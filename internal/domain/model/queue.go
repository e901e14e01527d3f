package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AnalysisRequest is the body of one queue message: a single item of a job.
// Queue messages are transient envelopes; the job, attempt and result
// records are the durable truth.
type AnalysisRequest struct {
	JobID     string        `json:"jobId"`
	UserID    int64         `json:"userId"`
	ItemID    int64         `json:"itemId"`
	Item      TrackMetadata `json:"itemMetadata"`
	JobType   JobType       `json:"jobType,omitempty"`
	BatchSize int           `json:"batchSize,omitempty"`
}

// Validate reports whether the request can be processed.
func (r *AnalysisRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.JobID) == "":
		return errors.New("jobId is required")
	case r.UserID <= 0:
		return errors.New("userId is required")
	case r.ItemID <= 0:
		return errors.New("itemId is required")
	}
	return nil
}

// ParseAnalysisRequest decodes and validates a queue message body.
func ParseAnalysisRequest(body []byte) (AnalysisRequest, error) {
	var req AnalysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return AnalysisRequest{}, fmt.Errorf("decode analysis request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return AnalysisRequest{}, fmt.Errorf("invalid analysis request: %w", err)
	}
	return req, nil
}

// OutgoingMessage is a payload to enqueue, grouped by job id.
type OutgoingMessage struct {
	GroupID string
	Body    []byte
}

// ReceivedMessage is a message leased from the queue. ReceiptHandle is only
// valid until the visibility timeout lapses.
type ReceivedMessage struct {
	ID            string
	ReceiptHandle string
	Body          []byte
	ReceiveCount  int
	SentAt        time.Time
}

// ReceiveOptions bounds one receive call.
type ReceiveOptions struct {
	MaxMessages       int
	VisibilityTimeout time.Duration
	WaitTime          time.Duration
}

// MaxReceiveBatch is the transport batch limit.
const MaxReceiveBatch = 10

// ErrReceiptExpired is returned when deleting with a handle whose lease has lapsed.
var ErrReceiptExpired = errors.New("receipt handle expired")
