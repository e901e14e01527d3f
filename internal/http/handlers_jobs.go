// Package httpx provides the JSON API for submitting, recovering and
// following track analysis jobs.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 100
)

// JobHandlers provides HTTP handlers for analysis job operations.
type JobHandlers struct {
	Submitter core.Submitter
	Jobs      core.JobQueries
	Logger    *slog.Logger
}

func (h *JobHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// writeErr logs unexpected failures and writes the mapped error response.
func (h *JobHandlers) writeErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status, _ := appErrorStatus(err); status >= http.StatusInternalServerError {
		h.logger().ErrorContext(r.Context(), op+" failed", "error", err)
	}
	WriteAppError(w, err)
}

// Submit handles POST /api/analysis/jobs.
func (h *JobHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.UserID = userID

	res, err := h.Submitter.Submit(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, "submit", err)
		return
	}
	WriteJSON(w, http.StatusAccepted, res)
}

// ActiveJob handles GET /api/analysis/active-job. It answers 204 when the
// user has nothing to resume.
func (h *JobHandlers) ActiveJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	rec, err := h.Jobs.Recover(r.Context(), userID)
	if errors.Is(err, model.ErrNoActiveJob) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.writeErr(w, r, "recover", err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

type jobListResponse struct {
	Jobs   []*model.Job `json:"jobs"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListJobs handles GET /api/analysis/jobs, newest first.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	pg, err := parsePage(r, defaultJobListLimit, maxJobListLimit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	jobs, err := h.Jobs.ListJobs(r.Context(), model.JobListOptions{UserID: userID, Limit: pg.Limit, Offset: pg.Offset})
	if err != nil {
		h.writeErr(w, r, "list jobs", err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}
	WriteJSON(w, http.StatusOK, jobListResponse{Jobs: jobs, Limit: pg.Limit, Offset: pg.Offset})
}

// GetJob handles GET /api/analysis/jobs/{id}.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	jobID, ok := requireJobID(w, r)
	if !ok {
		return
	}

	job, err := h.Jobs.GetJob(r.Context(), userID, jobID)
	if err != nil {
		h.writeErr(w, r, "get job", err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// CancelJob handles POST /api/analysis/jobs/{id}/cancel.
func (h *JobHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	jobID, ok := requireJobID(w, r)
	if !ok {
		return
	}

	job, err := h.Jobs.Cancel(r.Context(), core.CancelJobRequest{JobID: jobID, UserID: userID})
	if err != nil {
		h.writeErr(w, r, "cancel job", err)
		return
	}
	h.logger().InfoContext(r.Context(), "job cancelled", "job_id", job.ID, "user_id", userID)
	WriteJSON(w, http.StatusOK, job)
}
