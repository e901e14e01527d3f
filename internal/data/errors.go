package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrTrackNotFound is returned when a track is not found.
	ErrTrackNotFound = errors.New("track not found")
	// ErrResultNotFound is returned when a track has no analysis result.
	ErrResultNotFound = errors.New("analysis result not found")
	// ErrJobIDRequired is returned when an operation needs a job id.
	ErrJobIDRequired = errors.New("job_id is required")
)
