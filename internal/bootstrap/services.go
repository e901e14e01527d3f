package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/adapters/analysis"
	"github.com/target/track-analysis-api/internal/adapters/bridge"
	redisadapter "github.com/target/track-analysis-api/internal/adapters/redis"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/data"
	domainjob "github.com/target/track-analysis-api/internal/domain/job"
	"github.com/target/track-analysis-api/internal/observability/notify/pagerduty"
	"github.com/target/track-analysis-api/internal/observability/notify/slack"
	"github.com/target/track-analysis-api/internal/observability/statsd"
	"github.com/target/track-analysis-api/internal/queue/pgqueue"
	"github.com/target/track-analysis-api/internal/queue/redisqueue"
	"github.com/target/track-analysis-api/internal/service"
	"github.com/target/track-analysis-api/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs        *service.JobPersistenceService
	Submission  *service.SubmissionService
	Queue       QueueBundle
	Publisher   *bridge.Publisher
	Subscriber  *bridge.Subscriber
	Sessions    *redisadapter.SessionStore
	Preferences core.ProviderPreferences
	Repos       *serviceRepositories

	Observability ObservabilityContainer
}

// QueueBundle is the configured queue transport and its group purger.
type QueueBundle struct {
	Transport core.QueueTransport
	Purger    core.QueueGroupPurger
	Driver    config.QueueDriver
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.MetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.AlertsConfig
}

// Sink returns the metrics sink, or nil when metrics are disabled.
//
//nolint:ireturn // a nil interface keeps disabled metrics out of the services.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// Notifier returns the failure notifier, or nil when no sink is configured.
//
//nolint:ireturn // a nil interface disables failure alerts.
func (o ObservabilityContainer) Notifier() core.JobFailureNotifier {
	if o.FailureNotifier == nil || !o.FailureNotifier.Enabled() {
		return nil
	}
	return o.FailureNotifier
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB        *sql.DB
	Redis     redis.UniversalClient
	Tx        *data.Transactor
	Jobs      *data.JobRepo
	Attempts  *data.AttemptRepo
	Results   *data.ResultRepo
	Outcomes  *data.OutcomeRepo
	Tracks    *data.TrackRepo
	Providers *data.ProviderPrefRepo
	Cache     *data.RedisCache
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redis redis.UniversalClient, cacheNamespace string) *serviceRepositories {
	repos := &serviceRepositories{
		DB:        db,
		Redis:     redis,
		Tx:        data.NewTransactor(db),
		Jobs:      data.NewJobRepo(db, data.RepoConfig{}),
		Attempts:  data.NewAttemptRepo(db, data.RepoConfig{}),
		Results:   data.NewResultRepo(db, data.RepoConfig{}),
		Outcomes:  data.NewOutcomeRepo(db, data.RepoConfig{}),
		Tracks:    data.NewTrackRepo(db),
		Providers: data.NewProviderPrefRepo(db, data.RepoConfig{}),
	}
	if redis != nil {
		repos.Cache = data.NewRedisCache(redis, cacheNamespace)
	}
	return repos
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Metrics.StatsdAddress,
			Prefix:     cfg.Metrics.Prefix,
			GlobalTags: cfg.Metrics.Tags,
			Logger:     obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	obs := ObservabilityContainer{
		MetricsSink:    metricsSink,
		MetricsConfig:  cfg.Metrics,
		NotifierConfig: cfg.Alerts,
	}
	obs.FailureNotifier = buildFailureNotifier(obsLogger, cfg.Alerts, obs.Sink())
	return obs
}

func buildFailureNotifier(logger *slog.Logger, cfg config.AlertsConfig, metrics statsd.Sink) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: baseLogger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)
	baseLogger.Info("job failure alerts enabled", "sinks", cfg.ActiveSinks())

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:  baseLogger,
		Sinks:   sinks,
		Metrics: metrics,
		// Each sink may retry RetryLimit times after its first attempt.
		Timeout: cfg.Timeout * time.Duration(cfg.RetryLimit+1),
	})
}

// BuildQueue constructs the queue transport selected by cfg.Driver.
func BuildQueue(cfg config.QueueConfig, db *sql.DB, client redis.UniversalClient, logger *slog.Logger) (QueueBundle, error) {
	cfg.Sanitize()
	switch cfg.Driver {
	case config.QueueDriverRedis:
		if client == nil {
			return QueueBundle{}, errors.New("redis queue driver requires a redis client")
		}
		t, err := redisqueue.New(redisqueue.Options{Client: client, QueueName: cfg.Name, Logger: logger})
		if err != nil {
			return QueueBundle{}, err
		}
		return QueueBundle{Transport: t, Purger: t, Driver: cfg.Driver}, nil
	case config.QueueDriverPostgres:
		t, err := pgqueue.New(pgqueue.Options{DB: db, QueueName: cfg.Name, Logger: logger})
		if err != nil {
			return QueueBundle{}, err
		}
		return QueueBundle{Transport: t, Purger: t, Driver: cfg.Driver}, nil
	default:
		return QueueBundle{}, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}

// buildEvents wires the notification bridge: a publisher for workers and a
// hub-backed subscriber for websocket clients.
func buildEvents(client redis.UniversalClient, cfg config.EventsConfig, obs ObservabilityContainer, logger *slog.Logger) (*bridge.Publisher, *bridge.Subscriber, error) {
	pub, err := bridge.NewPublisher(bridge.PublisherOptions{
		Client:  client,
		Prefix:  cfg.ChannelPrefix,
		Logger:  logger,
		Metrics: obs.Sink(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("event publisher: %w", err)
	}
	source, err := bridge.NewSource(client, cfg.ChannelPrefix, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("event source: %w", err)
	}
	hub, err := domainjob.NewEventHub(domainjob.HubOptions{
		Source:  source,
		Backoff: cfg.ReconnectBackoff,
		Buffer:  cfg.Buffer,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("event hub: %w", err)
	}
	return pub, bridge.NewSubscriber(hub), nil
}

func newPreferences(repos *serviceRepositories, cfg config.CacheConfig, logger *slog.Logger) core.ProviderPreferences {
	if !cfg.ProviderEnabled || repos.Cache == nil {
		return repos.Providers
	}
	return core.NewCachedProviderPreferences(core.CachedProviderPreferencesOptions{
		Store:  repos.Providers,
		Cache:  repos.Cache,
		TTL:    cfg.ProviderTTL,
		Logger: logger,
	})
}

// LoadProviderCatalog returns the TOML catalog named by cfg.ProvidersFile, or
// the built-in providers when no file is configured.
func LoadProviderCatalog(cfg config.AnalysisConfig) (*analysis.Catalog, error) {
	if cfg.ProvidersFile == "" {
		return analysis.DefaultCatalog(), nil
	}
	return analysis.LoadCatalog(cfg.ProvidersFile)
}

// NewAnalysisClient builds the analysis collaborator client with its provider catalog.
func NewAnalysisClient(cfg config.AnalysisConfig, obs ObservabilityContainer, logger *slog.Logger) (*analysis.Client, error) {
	catalog, err := LoadProviderCatalog(cfg)
	if err != nil {
		return nil, err
	}
	return analysis.NewClient(analysis.ClientOptions{
		Config:  cfg,
		Catalog: catalog,
		Logger:  logger,
		Metrics: obs.Sink(),
	})
}

// NewServices builds every service shared by the enabled modes.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	if deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, cfg.Cache.Namespace)

	queue, err := BuildQueue(cfg.Queue, deps.DB, deps.RedisClient, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("queue transport: %w", err)
	}
	pub, sub, err := buildEvents(deps.RedisClient, cfg.Events, obs, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	jobs, err := service.NewJobPersistenceService(service.JobPersistenceServiceOptions{
		Tx: repos.Tx,
		Stores: service.JobStores{
			Jobs:     repos.Jobs,
			Attempts: repos.Attempts,
			Results:  repos.Results,
			Outcomes: repos.Outcomes,
		},
		Recovery: cfg.Recovery,
		Hooks: service.JobHooks{
			Events: pub,
			Purger: queue.Purger,
			Alerts: obs.Notifier(),
		},
		Logger:  logger,
		Metrics: obs.Sink(),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("job persistence service: %w", err)
	}

	submission, err := service.NewSubmissionService(service.SubmissionServiceOptions{
		Ports: service.SubmissionPorts{
			Jobs:    jobs,
			Tracks:  repos.Tracks,
			Queue:   queue.Transport,
			Events:  pub,
			Results: repos.Results,
		},
		Config:  service.SubmissionConfig{DefaultBatchSize: cfg.Worker.BatchSize},
		Logger:  logger,
		Metrics: obs.Sink(),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("submission service: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobs,
		Submission:    submission,
		Queue:         queue,
		Publisher:     pub,
		Subscriber:    sub,
		Sessions:      redisadapter.NewSessionStore(deps.RedisClient, cfg.Session.KeyPrefix),
		Preferences:   newPreferences(repos, cfg.Cache, logger),
		Repos:         repos,
		Observability: obs,
	}, nil
}

// Close releases resources held by the container.
func (c ServiceContainer) Close() {
	if c.Subscriber != nil {
		c.Subscriber.Close()
	}
	if c.Observability.MetricsSink != nil {
		_ = c.Observability.MetricsSink.Close()
	}
}
