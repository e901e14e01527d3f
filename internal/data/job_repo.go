package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// RepoConfig holds configuration options shared by the Postgres repositories.
type RepoConfig struct {
	Logger *slog.Logger
	// Clock defaults to the system clock.
	Clock Clock
}

func (c RepoConfig) clock() Clock {
	if c.Clock == nil {
		return systemClock{}
	}
	return c.Clock
}

func (c RepoConfig) logger(component string) *slog.Logger {
	l := c.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}

// JobRepo is the Postgres Job Store.
type JobRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	return &JobRepo{
		DB:     db,
		clock:  cfg.clock(),
		logger: cfg.logger("job_repo"),
	}
}

const jobColumns = `
  id,
  user_id,
  job_type,
  status,
  item_count,
  items_processed,
  items_succeeded,
  items_failed,
  item_ids,
  playlist_id,
  error_message,
  created_at,
  updated_at,
  completed_at
`

// activeStatusSQL matches non-terminal jobs.
const activeStatusSQL = `status IN ('pending', 'in_progress')`

// collectJob collects exactly one job, mapping an empty result to ErrJobNotFound.
func collectJob(rows pgx.Rows) (*model.Job, error) {
	job, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("collect job: %w", err)
	}
	normalizeJob(job)
	return job, nil
}

func collectJobs(rows pgx.Rows) ([]*model.Job, error) {
	jobs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
	if err != nil {
		return nil, fmt.Errorf("collect jobs: %w", err)
	}
	for _, j := range jobs {
		normalizeJob(j)
	}
	return jobs, nil
}

func normalizeJob(j *model.Job) {
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	if j.CompletedAt != nil {
		t := j.CompletedAt.UTC()
		j.CompletedAt = &t
	}
	if j.ItemIDs == nil {
		j.ItemIDs = []int64{}
	}
}
