package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/mocks"
)

func TestNewRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	submitter := mocks.NewMockSubmitter(ctrl)
	jobs := mocks.NewMockJobQueries(ctrl)

	router := NewRouter(RouterServices{
		Submitter: submitter,
		Jobs:      jobs,
		Events:    newChanSubscriber(),
		Sessions:  newFakeSessions(),
		Health: map[string]HealthCheck{
			"db": func(context.Context) error { return nil },
		},
	})

	t.Run("health needs no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("api requires a session", func(t *testing.T) {
		for _, target := range []string{"/api/analysis/jobs", "/api/analysis/active-job", "/api/analysis/jobs/job-1"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String(), target)
		}
	})

	t.Run("submit with header session", func(t *testing.T) {
		submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
				assert.Equal(t, testUserID, req.UserID)
				return &model.SubmitResult{JobID: "j", ItemIDs: req.ItemIDs, TotalQueued: len(req.ItemIDs)}, nil
			})

		req := httptest.NewRequest(http.MethodPost, "/api/analysis/jobs", strings.NewReader(`{"itemIds":[4,5]}`))
		req.Header.Set("X-Session-ID", testSessionID)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"jobId":"j","itemIds":[4,5],"totalQueued":2}`, rec.Body.String())
	})

	t.Run("cancel routes by path", func(t *testing.T) {
		jobs.EXPECT().Cancel(gomock.Any(), gomock.Any()).Return(&model.Job{ID: "job-9", Status: model.JobStatusFailed}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/analysis/jobs/job-9/cancel", nil)
		req.AddCookie(&http.Cookie{Name: "session_id", Value: testSessionID})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/analysis/jobs", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
