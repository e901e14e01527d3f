// Package pagerduty raises Events API v2 incidents for failed analysis jobs.
package pagerduty

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/target/track-analysis-api/internal/observability/notify"
)

// APIEndpoint is the Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config configures the client.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client triggers one incident per failed job, deduplicated by job id.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	poster     notify.Poster
}

// event is the Events API v2 trigger document.
type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Group         string         `json:"group,omitempty"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

// NewClient requires a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = APIEndpoint
	}
	return &Client{
		routingKey: key,
		source:     orDefault(cfg.Source),
		component:  orDefault(cfg.Component),
		endpoint:   endpoint,
		poster:     notify.NewPoster("pagerduty", cfg.Client, cfg.Timeout, cfg.RetryLimit),
	}, nil
}

// SendJobFailure triggers an incident for the job.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	return c.poster.PostJSON(ctx, c.endpoint, c.buildEvent(payload))
}

func (c *Client) buildEvent(p notify.JobFailurePayload) event {
	details := map[string]any{
		"job_id":          p.JobID,
		"job_type":        p.JobType,
		"user_id":         p.UserID,
		"reason":          p.Reason,
		"item_count":      p.ItemCount,
		"items_succeeded": p.Succeeded,
		"items_failed":    p.Failed,
		"error":           p.Error,
		"error_class":     p.ErrorClass,
	}
	for k, v := range p.Metadata {
		if _, taken := details[k]; !taken {
			details[k] = v
		}
	}

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    "analysis-job:" + p.JobID,
		Payload: eventPayload{
			Summary:       p.Summary(),
			Severity:      p.SeverityOrDefault(),
			Source:        c.source,
			Component:     c.component,
			Group:         p.JobType,
			Timestamp:     p.Timestamp().Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

func orDefault(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "track-analysis"
	}
	return v
}
