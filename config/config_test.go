package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
			expectError: false,
		},
		{
			name:  "single service - analysis-worker",
			input: "analysis-worker",
			expected: map[ServiceMode]bool{
				ServiceModeAnalysisWorker: true,
			},
			expectError: false,
		},
		{
			name:  "single service - reaper",
			input: "reaper",
			expected: map[ServiceMode]bool{
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:  "multiple services - http and analysis-worker",
			input: "http,analysis-worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeAnalysisWorker: true,
			},
			expectError: false,
		},
		{
			name:  "all services",
			input: "http,analysis-worker,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeAnalysisWorker: true,
				ServiceModeReaper:         true,
			},
			expectError: false,
		},
		{
			name:  "services with spaces",
			input: " http , analysis-worker , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeAnalysisWorker: true,
				ServiceModeReaper:         true,
			},
			expectError: false,
		},
		{
			name:  "duplicate services",
			input: "http,http,analysis-worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeAnalysisWorker: true,
			},
			expectError: false,
		},
		{
			name:        "empty string",
			input:       "",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,invalid-service",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "mixed valid and invalid",
			input:       "http,analysis-worker,invalid",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_GetEnabledServices(t *testing.T) {
	tests := []struct {
		name        string
		services    string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "default configuration",
			services: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
			expectError: false,
		},
		{
			name:     "multiple services",
			services: "http,analysis-worker",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:           true,
				ServiceModeAnalysisWorker: true,
			},
			expectError: false,
		},
		{
			name:        "invalid configuration",
			services:    "invalid-service",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			result, err := cfg.GetEnabledServices()

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "redis")
	t.Setenv("QUEUE_RECEIVE_MAX", "25")
	t.Setenv("WORKER_BATCH_SIZE", "10")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("RECOVERY_STALE_AFTER", "45m")
	t.Setenv("ANALYSIS_DEFAULT_PROVIDER", " OpenAI ")
	t.Setenv("ANALYSIS_MAX_RETRIES", "9")
	t.Setenv("SESSION_COOKIE_NAME", "sid")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Queue.Driver != QueueDriverRedis {
		t.Errorf("queue driver = %q", cfg.Queue.Driver)
	}
	if cfg.Queue.ReceiveMax != 10 {
		t.Errorf("receive max should clamp to 10, got %d", cfg.Queue.ReceiveMax)
	}
	if cfg.Queue.VisibilityTimeout != 300*time.Second {
		t.Errorf("visibility timeout = %v", cfg.Queue.VisibilityTimeout)
	}
	if cfg.Worker.BatchSize != 10 || cfg.Worker.Concurrency != 4 {
		t.Errorf("worker = %+v", cfg.Worker)
	}
	if cfg.Recovery.StaleAfter != 45*time.Minute {
		t.Errorf("stale after = %v", cfg.Recovery.StaleAfter)
	}
	if cfg.Analysis.DefaultProvider != "openai" {
		t.Errorf("default provider = %q", cfg.Analysis.DefaultProvider)
	}
	if cfg.Analysis.MaxRetries != 5 {
		t.Errorf("max retries should clamp to 5, got %d", cfg.Analysis.MaxRetries)
	}
	if cfg.Session.CookieName != "sid" || cfg.Session.HeaderName != "X-Session-ID" {
		t.Errorf("session = %+v", cfg.Session)
	}
}

func TestQueueDriver_UnmarshalText(t *testing.T) {
	var d QueueDriver
	if err := d.UnmarshalText([]byte(" Postgres ")); err != nil || d != QueueDriverPostgres {
		t.Fatalf("got %q, %v", d, err)
	}
	if err := d.UnmarshalText([]byte("sqs")); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestWorkerConfig_Sanitize(t *testing.T) {
	w := WorkerConfig{BatchSize: 7, Concurrency: 0, ErrorBackoffBase: time.Second, ErrorBackoffMax: time.Millisecond}
	w.Sanitize()

	if w.BatchSize != 5 {
		t.Errorf("batch size should fall back to 5, got %d", w.BatchSize)
	}
	if w.Concurrency != 1 {
		t.Errorf("concurrency = %d", w.Concurrency)
	}
	if w.ErrorBackoffMax != time.Second {
		t.Errorf("backoff max should be raised to base, got %v", w.ErrorBackoffMax)
	}
	if w.RestartLimit != 1 || w.RestartWindow != time.Minute {
		t.Errorf("restart guardrails not applied: %+v", w)
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		expectedHTTP   bool
		expectedWorker bool
		expectedReaper bool
	}{
		{name: "default - http only", services: "http", expectedHTTP: true},
		{name: "http and worker", services: "http,analysis-worker", expectedHTTP: true, expectedWorker: true},
		{
			name:           "all services",
			services:       "http,analysis-worker,reaper",
			expectedHTTP:   true,
			expectedWorker: true,
			expectedReaper: true,
		},
		{name: "worker only", services: "analysis-worker", expectedWorker: true},
		{name: "reaper only", services: "reaper", expectedReaper: true},
		{name: "invalid config disables everything", services: "invalid-service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}
			if cfg.IsAnalysisWorkerEnabled() != tt.expectedWorker {
				t.Errorf("IsAnalysisWorkerEnabled(): expected %v, got %v", tt.expectedWorker, cfg.IsAnalysisWorkerEnabled())
			}
			if cfg.IsReaperEnabled() != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v, got %v", tt.expectedReaper, cfg.IsReaperEnabled())
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	expected := []ServiceMode{
		ServiceModeHTTP,
		ServiceModeAnalysisWorker,
		ServiceModeReaper,
	}

	if !reflect.DeepEqual(modes, expected) {
		t.Errorf("ValidServiceModes() = %v, want %v", modes, expected)
	}
}

func TestMetricsConfig_Sanitize(t *testing.T) {
	cfg := MetricsConfig{Enabled: true, StatsdAddress: " "}
	cfg.Sanitize()
	assert.False(t, cfg.IsEnabled(), "metrics need an address")

	cfg = MetricsConfig{Enabled: true, StatsdAddress: " statsd:8125 ", Prefix: " .track_analysis. "}
	cfg.Sanitize()
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, "statsd:8125", cfg.StatsdAddress)
	assert.Equal(t, "track_analysis", cfg.Prefix)
}

func TestAlertsConfig_Sanitize(t *testing.T) {
	t.Run("sinks without credentials are disabled", func(t *testing.T) {
		cfg := AlertsConfig{
			Enabled:    true,
			RetryLimit: -1,
			Slack:      SlackConfig{Enabled: true, WebhookURL: " ", Username: " "},
			PagerDuty:  PagerDutyConfig{Enabled: true, RoutingKey: " "},
		}
		cfg.Sanitize()

		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Zero(t, cfg.RetryLimit)
		assert.False(t, cfg.Slack.Enabled)
		assert.False(t, cfg.PagerDuty.Enabled)
		assert.Equal(t, "track-analysis", cfg.Slack.Username)
		assert.Equal(t, "track-analysis", cfg.PagerDuty.Source)
		assert.Equal(t, "track-analysis", cfg.PagerDuty.Component)
		assert.Empty(t, cfg.ActiveSinks())
	})

	t.Run("top-level switch gates every sink", func(t *testing.T) {
		cfg := AlertsConfig{
			Slack:     SlackConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/services/test"},
			PagerDuty: PagerDutyConfig{Enabled: true, RoutingKey: "abc"},
		}
		cfg.Sanitize()
		assert.Empty(t, cfg.ActiveSinks())

		cfg.Enabled = true
		cfg.Slack.Enabled = true
		cfg.PagerDuty.Enabled = true
		cfg.Slack.JobURLPrefix = "https://ops.example/jobs/"
		cfg.Sanitize()
		assert.Equal(t, []string{"slack", "pagerduty"}, cfg.ActiveSinks())
		assert.Equal(t, "https://ops.example/jobs", cfg.Slack.JobURLPrefix)
	})
}

func TestAppConfig_ParseEnvObservability(t *testing.T) {
	t.Setenv("OBSERVABILITY_METRICS_ENABLED", "true")
	t.Setenv("OBSERVABILITY_METRICS_TAGS", "env:test,region:us")
	t.Setenv("OBSERVABILITY_ALERTS_ENABLED", "true")
	t.Setenv("OBSERVABILITY_ALERTS_SLACK_ENABLED", "true")
	t.Setenv("OBSERVABILITY_ALERTS_SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/x")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.True(t, cfg.Observability.Metrics.IsEnabled())
	assert.Equal(t, map[string]string{"env": "test", "region": "us"}, cfg.Observability.Metrics.Tags)
	assert.Equal(t, []string{"slack"}, cfg.Observability.Alerts.ActiveSinks())
}

func TestEventsConfig_Sanitize(t *testing.T) {
	e := EventsConfig{ChannelPrefix: "  ", Buffer: 0, ReconnectBackoff: time.Millisecond}
	e.Sanitize()
	if e.ChannelPrefix != "analysis:events:" {
		t.Errorf("channel prefix = %q", e.ChannelPrefix)
	}
	if e.Buffer != 64 {
		t.Errorf("buffer = %d", e.Buffer)
	}
	if e.ReconnectBackoff != 10*time.Millisecond {
		t.Errorf("reconnect backoff = %v", e.ReconnectBackoff)
	}

	e = EventsConfig{ChannelPrefix: "x:", Buffer: 1 << 20, ReconnectBackoff: time.Second}
	e.Sanitize()
	if e.Buffer != 4096 || e.ChannelPrefix != "x:" || e.ReconnectBackoff != time.Second {
		t.Errorf("events = %+v", e)
	}
}

func TestDBConfig_Sanitize(t *testing.T) {
	d := DBConfig{MaxOpenConns: 1, MaxIdleConns: 10}
	d.Sanitize()
	if d.MaxOpenConns != 2 {
		t.Errorf("max open = %d", d.MaxOpenConns)
	}
	if d.MaxIdleConns != 2 {
		t.Errorf("idle should clamp to open, got %d", d.MaxIdleConns)
	}
	if d.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("lifetime = %v", d.ConnMaxLifetime)
	}
}

func TestAppConfig_ParseEnvEvents(t *testing.T) {
	t.Setenv("EVENTS_CHANNEL_PREFIX", "tracks:")
	t.Setenv("EVENTS_BUFFER", "8")
	t.Setenv("DB_MAX_OPEN_CONNS", "40")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Events.ChannelPrefix != "tracks:" || cfg.Events.Buffer != 8 {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.Postgres.MaxOpenConns != 40 || cfg.Postgres.MaxIdleConns != 5 {
		t.Errorf("postgres pool = %+v", cfg.Postgres)
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	h := HTTPConfig{CompressionLevel: 12, CompressionMinSize: -1, ReadTimeout: -time.Second, IdleTimeout: time.Minute}
	h.Sanitize()

	assert.Equal(t, 9, h.CompressionLevel)
	assert.Zero(t, h.CompressionMinSize)
	assert.Equal(t, int64(1<<20), h.MaxBodyBytes)
	assert.Equal(t, 30*time.Second, h.ReadTimeout)
	assert.Equal(t, time.Minute, h.IdleTimeout, "valid values are kept")
	assert.Equal(t, 10*time.Second, h.StreamWriteTimeout)

	h = HTTPConfig{}
	h.Sanitize()
	assert.Equal(t, 1, h.CompressionLevel)
}

func TestAppConfig_ParseEnvHTTP(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HTTP_STREAM_WRITE_TIMEOUT", "3s")
	t.Setenv("HTTP_COMPRESSION_ENABLED", "true")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.StreamWriteTimeout)
	assert.True(t, cfg.HTTP.CompressionEnabled)
	assert.Equal(t, 6, cfg.HTTP.CompressionLevel)
	assert.Equal(t, 1024, cfg.HTTP.CompressionMinSize)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.IdleTimeout)
}

func TestAppConfig_SanitizeDetectsDevMode(t *testing.T) {
	t.Setenv("NODE_ENV", " Development ")
	cfg := AppConfig{}
	cfg.Sanitize()
	assert.True(t, cfg.IsDev)

	t.Setenv("NODE_ENV", "production")
	cfg = AppConfig{}
	cfg.Sanitize()
	assert.False(t, cfg.IsDev)
}
