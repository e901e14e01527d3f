package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeAnalysisWorker runs the batch analysis worker.
	ServiceModeAnalysisWorker ServiceMode = "analysis-worker"
	// ServiceModeReaper runs the stale job reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeAnalysisWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeAnalysisWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, analysis-worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// AllowedBatchSizes are the analysis batch sizes a worker or client may request.
var AllowedBatchSizes = []int{1, 5, 10}

// IsAllowedBatchSize reports whether n is one of AllowedBatchSizes.
func IsAllowedBatchSize(n int) bool {
	for _, v := range AllowedBatchSizes {
		if v == n {
			return true
		}
	}
	return false
}

// WorkerConfig contains batch worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of poll loops per process.
	Concurrency int `env:"CONCURRENCY" envDefault:"1"`

	// BatchSize is the default analysis batch size (1, 5 or 10).
	BatchSize int `env:"BATCH_SIZE" envDefault:"5"`

	// ErrorBackoffBase and ErrorBackoffMax bound the sleep after a failed poll cycle.
	ErrorBackoffBase time.Duration `env:"ERROR_BACKOFF_BASE" envDefault:"1s"`
	ErrorBackoffMax  time.Duration `env:"ERROR_BACKOFF_MAX"  envDefault:"60s"`

	// RestartLimit is the number of consecutive cycle failures before the loop restarts.
	RestartLimit int `env:"RESTART_LIMIT" envDefault:"5"`

	// MaxRestarts bounds restarts within RestartWindow before the worker gives up.
	MaxRestarts   int           `env:"MAX_RESTARTS"   envDefault:"3"`
	RestartWindow time.Duration `env:"RESTART_WINDOW" envDefault:"10m"`

	// DrainTimeout bounds the finishing of an in-flight cycle on shutdown.
	DrainTimeout time.Duration `env:"DRAIN_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > 32 {
		w.Concurrency = 32
	}
	if !IsAllowedBatchSize(w.BatchSize) {
		w.BatchSize = 5
	}
	if w.ErrorBackoffBase < 10*time.Millisecond {
		w.ErrorBackoffBase = 10 * time.Millisecond
	}
	if w.ErrorBackoffMax < w.ErrorBackoffBase {
		w.ErrorBackoffMax = w.ErrorBackoffBase
	}
	if w.RestartLimit < 1 {
		w.RestartLimit = 1
	}
	if w.MaxRestarts < 0 {
		w.MaxRestarts = 0
	}
	if w.RestartWindow < time.Minute {
		w.RestartWindow = time.Minute
	}
	if w.DrainTimeout < time.Second {
		w.DrainTimeout = time.Second
	}
}

// RecoveryConfig controls recovery of active jobs.
type RecoveryConfig struct {
	// StaleAfter is how long an incomplete job may go without progress before
	// recovery fails it.
	StaleAfter time.Duration `env:"STALE_AFTER" envDefault:"30m"`
}

// Sanitize applies guardrails to recovery configuration values.
func (r *RecoveryConfig) Sanitize() {
	if r.StaleAfter < time.Minute {
		r.StaleAfter = time.Minute
	}
}

// ReaperConfig contains stale job reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// StaleAfter is the idle age after which a non-terminal job is failed.
	StaleAfter time.Duration `env:"REAPER_STALE_AFTER" envDefault:"30m"`

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`

	// PurgeLimit bounds how many recently finished jobs have their leftover
	// queue messages purged per tick.
	PurgeLimit int `env:"REAPER_PURGE_LIMIT" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.StaleAfter < time.Minute {
		r.StaleAfter = time.Minute
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
	if r.PurgeLimit < 0 {
		r.PurgeLimit = 0
	}
}
