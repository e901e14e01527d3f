package jobsub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// ServiceBackend calls the services in-process for one user.
type ServiceBackend struct {
	Jobs      core.JobQueries
	Submitter core.Submitter
	UserID    int64
}

// Recover implements Backend.
func (b ServiceBackend) Recover(ctx context.Context) (*model.RecoveredJob, error) {
	return b.Jobs.Recover(ctx, b.UserID)
}

// Submit implements Backend.
func (b ServiceBackend) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	if b.Submitter == nil {
		return nil, errors.New("jobsub: submitter is not configured")
	}
	req.UserID = b.UserID
	return b.Submitter.Submit(ctx, req)
}

// Cancel implements Backend.
func (b ServiceBackend) Cancel(ctx context.Context, jobID string) (*model.Job, error) {
	return b.Jobs.Cancel(ctx, core.CancelJobRequest{JobID: jobID, UserID: b.UserID})
}

// APIError is a non-2xx API response.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d %s", e.Status, e.Code)
}

// HTTPBackend calls the JSON API with a session id.
type HTTPBackend struct {
	BaseURL    string
	SessionID  string
	HeaderName string       // Optional: defaults to X-Session-ID
	Client     *http.Client // Optional: defaults to a client with a 30s timeout
}

func (b HTTPBackend) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (b HTTPBackend) do(ctx context.Context, method, path string, body, out any) (int, error) {
	endpoint := strings.TrimRight(b.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	header := b.HeaderName
	if header == "" {
		header = "X-Session-ID"
	}
	req.Header.Set(header, b.SessionID)

	resp, err := b.client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(apiErr)
		return resp.StatusCode, apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// Recover implements Backend.
func (b HTTPBackend) Recover(ctx context.Context) (*model.RecoveredJob, error) {
	var rec model.RecoveredJob
	status, err := b.do(ctx, http.MethodGet, "/api/analysis/active-job", nil, &rec)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, model.ErrNoActiveJob
	}
	return &rec, nil
}

// Submit implements Backend.
func (b HTTPBackend) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	var res model.SubmitResult
	if _, err := b.do(ctx, http.MethodPost, "/api/analysis/jobs", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Cancel implements Backend.
func (b HTTPBackend) Cancel(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	path := "/api/analysis/jobs/" + url.PathEscape(jobID) + "/cancel"
	if _, err := b.do(ctx, http.MethodPost, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
