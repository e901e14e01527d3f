// Package config defines every setting the API, worker and reaper read from
// the environment. Each concern lives in its own file and struct; AppConfig
// composes them and is parsed with github.com/caarlos0/env.
package config

import (
	"os"
	"strings"
)

type AppConfig struct {
	// IsDev enables development conveniences such as seeding a dev session.
	// NODE_ENV=development also turns it on.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Services is a comma list of ServiceMode values to run in this process.
	Services string `env:"SERVICES" envDefault:"http"`

	HTTP     HTTPConfig
	Session  SessionConfig `envPrefix:"SESSION_"`
	Postgres DBConfig      `envPrefix:"DB_"`
	Redis    RedisConfig   `envPrefix:"REDIS_"`
	Cache    CacheConfig

	Queue    QueueConfig    `envPrefix:"QUEUE_"`
	Worker   WorkerConfig   `envPrefix:"WORKER_"`
	Analysis AnalysisConfig `envPrefix:"ANALYSIS_"`
	Events   EventsConfig   `envPrefix:"EVENTS_"`
	Recovery RecoveryConfig `envPrefix:"RECOVERY_"`
	Reaper   ReaperConfig

	Observability ObservabilityConfig
}

type sanitizer interface{ Sanitize() }

// Sanitize clamps every section into its valid range. Call it once after
// parsing.
func (c *AppConfig) Sanitize() {
	for _, s := range []sanitizer{
		&c.HTTP, &c.Session, &c.Postgres, &c.Cache,
		&c.Queue, &c.Worker, &c.Analysis, &c.Events, &c.Recovery, &c.Reaper,
		&c.Observability,
	} {
		s.Sanitize()
	}
	if !c.IsDev {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("NODE_ENV"))) {
		case "development", "dev":
			c.IsDev = true
		}
	}
}

// GetEnabledServices parses Services.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) IsHTTPServerEnabled() bool     { return c.isEnabled(ServiceModeHTTP) }
func (c *AppConfig) IsAnalysisWorkerEnabled() bool { return c.isEnabled(ServiceModeAnalysisWorker) }
func (c *AppConfig) IsReaperEnabled() bool         { return c.isEnabled(ServiceModeReaper) }

// isEnabled treats an unparsable Services value as nothing enabled.
func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}
