package config

import (
	"strings"
	"time"
)

// SessionConfig controls how requests are resolved to a user.
// Sessions are issued by the external login flow and read from Redis.
type SessionConfig struct {
	CookieName string        `env:"COOKIE_NAME" envDefault:"session_id"`
	HeaderName string        `env:"HEADER_NAME" envDefault:"X-Session-ID"`
	KeyPrefix  string        `env:"KEY_PREFIX"  envDefault:"session:"`
	TTL        time.Duration `env:"TTL"         envDefault:"24h"`
}

// Sanitize applies defaults to blank session settings.
func (s *SessionConfig) Sanitize() {
	if s.CookieName = strings.TrimSpace(s.CookieName); s.CookieName == "" {
		s.CookieName = "session_id"
	}
	if s.HeaderName = strings.TrimSpace(s.HeaderName); s.HeaderName == "" {
		s.HeaderName = "X-Session-ID"
	}
	if s.KeyPrefix == "" {
		s.KeyPrefix = "session:"
	}
	if s.TTL <= 0 {
		s.TTL = 24 * time.Hour
	}
}
