package httpx

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/target/track-analysis-api/internal/errors"
)

// page is a validated limit/offset pair.
type page struct {
	Limit  int
	Offset int
}

// parsePage reads ?limit and ?offset. Absent values take the defaults,
// an over-large limit is clamped to maxLimit, and anything that is not a
// non-negative integer is rejected.
func parsePage(r *http.Request, defLimit, maxLimit int) (page, error) {
	p := page{Limit: defLimit}
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page{}, apperrors.InvalidField("limit", "limit must be a positive integer")
		}
		p.Limit = n
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page{}, apperrors.InvalidField("offset", "offset must be zero or a positive integer")
		}
		p.Offset = n
	}
	p.Limit = min(max(p.Limit, 1), max(maxLimit, 1))
	return p, nil
}

// requireJobID returns the {id} path value, writing a 400 when it is blank.
func requireJobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		WriteAppError(w, apperrors.InvalidField("id", "job id is required"))
		return "", false
	}
	return id, true
}
