package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultHealthTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler serves /healthz. Checks run concurrently under a shared
// deadline; any failure turns the answer into a 503 listing the failing
// dependencies by name.
type HealthHandler struct {
	Checks  map[string]HealthCheck
	Timeout time.Duration
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	failures := h.probe(ctx)
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp = healthResponse{Status: "unavailable", Checks: failures}
		code = http.StatusServiceUnavailable
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, resp)
}

func (h *HealthHandler) probe(ctx context.Context) map[string]string {
	var (
		mu       sync.Mutex
		failures map[string]string
		g        errgroup.Group
	)
	for name, check := range h.Checks {
		g.Go(func() error {
			if err := check(ctx); err != nil {
				mu.Lock()
				if failures == nil {
					failures = make(map[string]string)
				}
				failures[name] = err.Error()
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}
