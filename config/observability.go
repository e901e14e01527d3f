package config

import (
	"strings"
	"time"
)

const defaultServiceName = "track-analysis"

// ObservabilityConfig covers statsd metrics and job-failure alerts.
type ObservabilityConfig struct {
	Metrics MetricsConfig `envPrefix:"OBSERVABILITY_METRICS_"`
	Alerts  AlertsConfig  `envPrefix:"OBSERVABILITY_ALERTS_"`
}

// Sanitize normalises both halves.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Alerts.Sanitize()
}

// MetricsConfig controls the statsd client.
type MetricsConfig struct {
	Enabled       bool   `env:"ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string `env:"PREFIX"         envDefault:"track_analysis"`
	// Tags are attached to every sample, e.g. "env:prod,region:us".
	Tags map[string]string `env:"TAGS" envSeparator:"," envKeyValSeparator:":"`
}

// Sanitize trims the address and disables metrics without one.
func (c *MetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), ".")
	c.Enabled = c.Enabled && c.StatsdAddress != ""
}

// IsEnabled reports whether a statsd client should be dialed.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// AlertsConfig controls the failure notifier and its sinks. Sinks are only
// active when Enabled is set and their credentials are present.
type AlertsConfig struct {
	Enabled    bool            `env:"ENABLED"     envDefault:"false"`
	Timeout    time.Duration   `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int             `env:"RETRY_LIMIT" envDefault:"3"`
	Slack      SlackConfig     `envPrefix:"SLACK_"`
	PagerDuty  PagerDutyConfig `envPrefix:"PAGERDUTY_"`
}

// Sanitize applies defaults and switches off sinks that cannot deliver.
func (c *AlertsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.RetryLimit = max(c.RetryLimit, 0)

	c.Slack.WebhookURL = strings.TrimSpace(c.Slack.WebhookURL)
	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
	c.Slack.JobURLPrefix = strings.TrimRight(strings.TrimSpace(c.Slack.JobURLPrefix), "/")
	c.Slack.Username = orDefault(c.Slack.Username, defaultServiceName)
	c.Slack.Enabled = c.Enabled && c.Slack.Enabled && c.Slack.WebhookURL != ""

	c.PagerDuty.RoutingKey = strings.TrimSpace(c.PagerDuty.RoutingKey)
	c.PagerDuty.Source = orDefault(c.PagerDuty.Source, defaultServiceName)
	c.PagerDuty.Component = orDefault(c.PagerDuty.Component, defaultServiceName)
	c.PagerDuty.Enabled = c.Enabled && c.PagerDuty.Enabled && c.PagerDuty.RoutingKey != ""
}

// ActiveSinks names the sinks that will receive alerts.
func (c *AlertsConfig) ActiveSinks() []string {
	var sinks []string
	if c.Slack.Enabled {
		sinks = append(sinks, "slack")
	}
	if c.PagerDuty.Enabled {
		sinks = append(sinks, "pagerduty")
	}
	return sinks
}

// SlackConfig configures the Slack incoming webhook.
type SlackConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME"    envDefault:"track-analysis"`
	// JobURLPrefix turns job ids into links, e.g. https://ops.example/jobs.
	JobURLPrefix string `env:"JOB_URL_PREFIX"`
}

// PagerDutyConfig configures the Events API v2 integration.
type PagerDutyConfig struct {
	Enabled    bool   `env:"ENABLED"     envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"track-analysis"`
	Component  string `env:"COMPONENT"   envDefault:"track-analysis"`
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
