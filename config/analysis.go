package config

import (
	"strings"
	"time"
)

// AnalysisConfig configures the HTTP client for the external analysis collaborator.
type AnalysisConfig struct {
	// Endpoint is the default analysis endpoint; providers may override it.
	Endpoint string `env:"ENDPOINT" envDefault:"http://localhost:9000/v1/analyze"`

	// APIKey is sent as a bearer token when set.
	APIKey string `env:"API_KEY"`

	// Timeout bounds a single provider request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60s"`

	// RateLimit is the number of provider requests per second across the process.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"5"`
	RateBurst int     `env:"RATE_BURST" envDefault:"5"`

	// ResultExpression is a JMESPath expression selecting the per-item result
	// list from the provider response.
	ResultExpression string `env:"RESULT_EXPRESSION" envDefault:"results"`

	// MaxRetries is the number of extra passes over items that failed, run in
	// sub-batches of at most three. Zero disables retries.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"1"`

	// ProvidersFile is an optional TOML provider catalog.
	ProvidersFile string `env:"PROVIDERS_FILE"`

	// DefaultProvider is used when a user has no stored preference.
	DefaultProvider string `env:"DEFAULT_PROVIDER" envDefault:"google"`
}

// Sanitize applies guardrails to analysis client settings.
func (a *AnalysisConfig) Sanitize() {
	a.Endpoint = strings.TrimSpace(a.Endpoint)
	if a.Timeout < time.Second {
		a.Timeout = time.Second
	}
	if a.RateLimit <= 0 {
		a.RateLimit = 1
	}
	if a.RateBurst < 1 {
		a.RateBurst = 1
	}
	a.MaxRetries = min(max(a.MaxRetries, 0), 5)
	if a.ResultExpression = strings.TrimSpace(a.ResultExpression); a.ResultExpression == "" {
		a.ResultExpression = "results"
	}
	if a.DefaultProvider = strings.ToLower(strings.TrimSpace(a.DefaultProvider)); a.DefaultProvider == "" {
		a.DefaultProvider = "google"
	}
}
