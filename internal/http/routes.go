package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/core"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Submitter core.Submitter
	Jobs      core.JobQueries
	Events    core.EventSubscriber
	Sessions  SessionLookup
	// Optional: named dependency probes for /healthz
	Health  map[string]HealthCheck
	Session config.SessionConfig
	HTTP    config.HTTPConfig
	Logger  *slog.Logger // Optional: defaults to slog.Default
}

// NewRouter creates the API router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := services.HTTP
	cfg.Sanitize()

	mux := http.NewServeMux()

	health := &HealthHandler{Checks: services.Health}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	jobs := &JobHandlers{
		Submitter: services.Submitter,
		Jobs:      services.Jobs,
		Logger:    logger.With("component", "http_jobs"),
	}
	stream := &StreamHandler{Events: services.Events, Logger: logger, WriteTimeout: cfg.StreamWriteTimeout}

	authed := RequireSession(services.Sessions, services.Session, logger)
	limit := LimitBody(cfg.MaxBodyBytes)
	api := func(h http.HandlerFunc) http.Handler { return authed(limit(h)) }

	mux.Handle("POST /api/analysis/jobs", api(jobs.Submit))
	mux.Handle("GET /api/analysis/jobs", api(jobs.ListJobs))
	mux.Handle("GET /api/analysis/jobs/{id}", api(jobs.GetJob))
	mux.Handle("POST /api/analysis/jobs/{id}/cancel", api(jobs.CancelJob))
	mux.Handle("GET /api/analysis/active-job", api(jobs.ActiveJob))
	mux.Handle("GET /api/analysis/ws", authed(stream))

	var handler http.Handler = mux
	if cfg.CompressionEnabled {
		handler = Compression(CompressionConfig{Level: cfg.CompressionLevel, MinSize: cfg.CompressionMinSize, Logger: logger})(handler)
	}
	return Recover(logger)(Logging(logger)(handler))
}
