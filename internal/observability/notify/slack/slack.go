// Package slack posts job failure alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/target/track-analysis-api/internal/observability/notify"
)

type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// JobURLPrefix turns job ids into links, e.g. https://ops.example/jobs.
	JobURLPrefix string
}

// Client is a notify.Sink backed by a webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	jobURL     *url.URL
	poster     notify.Poster
}

func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "track-analysis"
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   username,
		jobURL:     parseJobURL(cfg.JobURLPrefix),
		poster:     notify.NewPoster("slack", cfg.Client, cfg.Timeout, cfg.RetryLimit),
	}, nil
}

func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	return c.poster.PostJSON(ctx, c.webhookURL, c.formatMessage(payload))
}

type message struct {
	Text     string  `json:"text"`
	Username string  `json:"username,omitempty"`
	Channel  string  `json:"channel,omitempty"`
	Blocks   []block `json:"blocks,omitempty"`
}

type block struct {
	Type     string       `json:"type"`
	Text     *textObject  `json:"text,omitempty"`
	Elements []textObject `json:"elements,omitempty"`
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) textObject { return textObject{Type: "mrkdwn", Text: s} }

// formatMessage renders a section per alert plus a plain text fallback for
// clients that ignore blocks.
func (c *Client) formatMessage(p notify.JobFailurePayload) message {
	title := "*Analysis job failed*"
	if p.JobID != "" {
		title += " `" + escape(p.JobID) + "`"
	}
	if p.JobType != "" {
		title += " (" + escape(p.JobType) + ")"
	}

	var body strings.Builder
	body.WriteString(title)
	for _, f := range c.fields(p) {
		fmt.Fprintf(&body, "\n• %s: %s", f[0], f[1])
	}
	for _, k := range notify.SortedKeys(p.Metadata) {
		fmt.Fprintf(&body, "\n• %s: %s", escape(k), escape(p.Metadata[k]))
	}
	stamp := "Occurred " + p.Timestamp().UTC().Format(time.RFC3339)

	return message{
		Text:     body.String() + "\n" + stamp,
		Username: c.username,
		Channel:  c.channel,
		Blocks: []block{
			{Type: "section", Text: &textObject{Type: "mrkdwn", Text: body.String()}},
			{Type: "context", Elements: []textObject{mrkdwn(stamp)}},
		},
	}
}

// fields lists the non-empty label/value pairs in display order.
func (c *Client) fields(p notify.JobFailurePayload) [][2]string {
	var user string
	if p.UserID > 0 {
		user = strconv.FormatInt(p.UserID, 10)
	}
	all := [][2]string{
		{"Severity", p.SeverityOrDefault()},
		{"Reason", escape(p.Reason)},
		{"User", user},
		{"Items", p.ItemTally()},
		{"Job", c.formatJobLink(p.JobID)},
		{"Error class", escape(p.ErrorClass)},
		{"Error", escape(p.Error)},
	}
	out := all[:0]
	for _, f := range all {
		if strings.TrimSpace(f[1]) != "" {
			out = append(out, f)
		}
	}
	return out
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escape neutralises the characters Slack treats as markup.
func escape(s string) string { return escaper.Replace(s) }

func parseJobURL(prefix string) *url.URL {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}
	u, err := url.Parse(prefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

// formatJobLink renders "<url|id>", or "" when no usable prefix is set.
func (c *Client) formatJobLink(jobID string) string {
	id := strings.TrimSpace(jobID)
	if id == "" || c.jobURL == nil {
		return ""
	}
	return fmt.Sprintf("<%s|%s>", c.jobURL.JoinPath(id).String(), escape(id))
}
