package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column list from "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// Constraint names declared by the migrations that carry a specific user-facing meaning.
const (
	ConstraintJobPrimaryKey     = "analysis_jobs_pkey"
	ConstraintOneActiveJob      = "analysis_jobs_one_active_per_user"
	ConstraintJobRollupBalanced = "analysis_jobs_rollup_balanced"
	ConstraintJobRollupBounded  = "analysis_jobs_rollup_bounded"
)

// MapDBError maps database errors to AppError instances.
//   - pgx.ErrNoRows → not_found
//   - unique violations → conflict
//   - foreign key violations → not_found
//   - check and NOT NULL violations → invalid_input
//   - context deadline/cancel → timeout/canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation, optionally on a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return &AppError{
			Code:    ErrCodeNotFound,
			Message: "Referenced " + mapTableToDomain(pgErr.TableName) + " does not exist.",
			Cause:   pgErr,
		}
	case pgerrcode.CheckViolation:
		return mapCheckViolation(pgErr)
	case pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeInvalidInput,
			Message: "This field is required.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	default:
		return &AppError{
			Code:    ErrCodePersistenceFailure,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

func mapUniqueViolation(pgErr *pgconn.PgError) error {
	switch pgErr.ConstraintName {
	case ConstraintJobPrimaryKey:
		return &AppError{Code: ErrCodeConflict, Message: "An analysis job with this id already exists.", Field: "jobId", Cause: pgErr}
	case ConstraintOneActiveJob:
		return &AppError{Code: ErrCodeConflict, Message: "An analysis job is already running.", Cause: pgErr}
	}

	field := pgErr.ColumnName
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}
	return &AppError{
		Code:    ErrCodeConflict,
		Message: "This value already exists.",
		Field:   field,
		Cause:   pgErr,
	}
}

func mapCheckViolation(pgErr *pgconn.PgError) error {
	switch pgErr.ConstraintName {
	case ConstraintJobRollupBalanced, ConstraintJobRollupBounded:
		// Rollup checks are invariants of the store, not user input.
		return &AppError{Code: ErrCodePersistenceFailure, Message: "Job progress update rejected.", Cause: pgErr}
	}
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: "Invalid data. Please check your input.",
		Field:   pgErr.ColumnName,
		Cause:   pgErr,
	}
}

// mapTableToDomain maps internal table names to user-friendly names.
func mapTableToDomain(tableName string) string {
	tableName = strings.ToLower(strings.TrimSpace(tableName))
	switch tableName {
	case "tracks":
		return "track"
	case "analysis_jobs":
		return "analysis job"
	case "analysis_attempts":
		return "analysis attempt"
	case "track_analyses":
		return "track analysis"
	case "":
		return "record"
	default:
		return strings.ReplaceAll(tableName, "_", " ")
	}
}
