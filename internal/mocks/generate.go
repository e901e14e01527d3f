// Package mocks provides gomock implementations of the core ports for service and adapter tests.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockJobStore(ctrl)
//	jobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
package mocks

// Transactor: WithinTx
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=transactor_mock.go github.com/target/track-analysis-api/internal/core Transactor

// JobStore: Create, GetByID, GetForUpdate, LatestForUser, List, StartProcessing, ApplyRollup, Finish
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_store_mock.go github.com/target/track-analysis-api/internal/core JobStore

// ReaperStore: FailStaleJobs, ListFinishedSince
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_store_mock.go github.com/target/track-analysis-api/internal/core ReaperStore

// AttemptLedger: StartMany, ListByJob, DeleteMany, MarkFailed, FailInFlight
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=attempt_ledger_mock.go github.com/target/track-analysis-api/internal/core AttemptLedger

// ResultStore: Upsert, GetByTrackID, ExistingTrackIDs
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=result_store_mock.go github.com/target/track-analysis-api/internal/core ResultStore

// OutcomeTally: Record, Settled
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=outcome_tally_mock.go github.com/target/track-analysis-api/internal/core OutcomeTally

// TrackCatalog: GetByIDs
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=track_catalog_mock.go github.com/target/track-analysis-api/internal/core TrackCatalog

// ProviderPreferences: ActiveProvider
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=provider_preferences_mock.go github.com/target/track-analysis-api/internal/core ProviderPreferences

// QueueTransport: Enqueue, EnqueueBatch, Receive, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_transport_mock.go github.com/target/track-analysis-api/internal/core QueueTransport

// QueueGroupPurger: PurgeGroup
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_group_purger_mock.go github.com/target/track-analysis-api/internal/core QueueGroupPurger

// EventPublisher: Publish
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=event_publisher_mock.go github.com/target/track-analysis-api/internal/core EventPublisher

// EventSubscriber: Subscribe
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=event_subscriber_mock.go github.com/target/track-analysis-api/internal/core EventSubscriber

// AnalysisService: AnalyzeBatch
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=analysis_service_mock.go github.com/target/track-analysis-api/internal/core AnalysisService

// JobFailureNotifier: NotifyJob
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_failure_notifier_mock.go github.com/target/track-analysis-api/internal/core JobFailureNotifier

// JobRecorder: Create, GetJob, MarkEnqueueFailed
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_recorder_mock.go github.com/target/track-analysis-api/internal/core JobRecorder

// JobProgress: BeginItems, ApplyOutcomes
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_progress_mock.go github.com/target/track-analysis-api/internal/core JobProgress

// JobQueries: GetJob, ListJobs, Recover, Cancel
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_queries_mock.go github.com/target/track-analysis-api/internal/core JobQueries

// Submitter: Submit
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=submitter_mock.go github.com/target/track-analysis-api/internal/core Submitter
