package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
	})
}

func TestCompression(t *testing.T) {
	large := `{"jobs":[` + strings.Repeat(`{"id":"job","status":"completed"},`, 200) + `{}]}`

	tests := []struct {
		name           string
		acceptEncoding string
		body           string
		minSize        int
		upgrade        bool
		expectGzip     bool
	}{
		{name: "client accepts gzip", acceptEncoding: "gzip, deflate", body: large, expectGzip: true},
		{name: "client does not accept gzip", acceptEncoding: "deflate", body: large},
		{name: "gzip disabled with q=0", acceptEncoding: "gzip;q=0", body: large},
		{name: "no accept-encoding header", body: large},
		{name: "below min size", acceptEncoding: "gzip", body: `{"ok":true}`, minSize: 1024},
		{name: "above min size", acceptEncoding: "gzip", body: large, minSize: 1024, expectGzip: true},
		{name: "websocket upgrade", acceptEncoding: "gzip", body: large, upgrade: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compression(CompressionConfig{Level: 6, MinSize: tt.minSize})(jsonHandler(tt.body))
			req := httptest.NewRequest(http.MethodGet, "/api/analysis/jobs", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			resp := rec.Result()
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var reader io.Reader = resp.Body
			if tt.expectGzip {
				require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
				gz, err := gzip.NewReader(resp.Body)
				require.NoError(t, err)
				defer gz.Close()
				reader = gz
			} else {
				assert.Empty(t, resp.Header.Get("Content-Encoding"))
			}
			got, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(got))
		})
	}
}

func TestCompression_SkipsNoContent(t *testing.T) {
	h := Compression(CompressionConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/analysis/active-job", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Zero(t, rec.Body.Len())
}

func TestAcceptsGzip(t *testing.T) {
	assert.True(t, acceptsGzip("gzip"))
	assert.True(t, acceptsGzip("br, GZIP;q=0.8"))
	assert.False(t, acceptsGzip(""))
	assert.False(t, acceptsGzip("x-gzip2"))
	assert.False(t, acceptsGzip("gzip; q=0"))
}
