package config

import "time"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr         string `env:"HTTP_ADDR"           envDefault:":8080"`
	MaxBodyBytes int64  `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT"        envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT"        envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`

	// StreamWriteTimeout bounds each websocket frame write. The server itself
	// has no write timeout because streams stay open.
	StreamWriteTimeout time.Duration `env:"HTTP_STREAM_WRITE_TIMEOUT" envDefault:"10s"`

	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`
	CompressionLevel   int  `env:"HTTP_COMPRESSION_LEVEL"   envDefault:"6"`
	// CompressionMinSize is the smallest body worth gzipping.
	CompressionMinSize int `env:"HTTP_COMPRESSION_MIN_SIZE" envDefault:"1024"`
}

// Sanitize replaces out-of-range values with their defaults and clamps the
// gzip level into 1..9.
func (h *HTTPConfig) Sanitize() {
	h.CompressionLevel = min(max(h.CompressionLevel, 1), 9)
	if h.CompressionMinSize < 0 {
		h.CompressionMinSize = 0
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 1 << 20
	}
	positive(&h.ReadHeaderTimeout, 10*time.Second)
	positive(&h.ReadTimeout, 30*time.Second)
	positive(&h.IdleTimeout, 2*time.Minute)
	positive(&h.ShutdownTimeout, 10*time.Second)
	positive(&h.StreamWriteTimeout, 10*time.Second)
}

func positive(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}
