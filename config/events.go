package config

import (
	"strings"
	"time"
)

// EventsConfig controls the Redis pub/sub notification bridge.
type EventsConfig struct {
	// ChannelPrefix is prepended to the user id to form the pub/sub channel.
	ChannelPrefix string `env:"CHANNEL_PREFIX" envDefault:"analysis:events:"`

	// Buffer is the per-subscriber channel capacity; slower subscribers drop events.
	Buffer int `env:"BUFFER" envDefault:"64"`

	// ReconnectBackoff is the pause before reopening a failed upstream subscription.
	ReconnectBackoff time.Duration `env:"RECONNECT_BACKOFF" envDefault:"500ms"`
}

// Sanitize applies guardrails to notification bridge settings.
func (e *EventsConfig) Sanitize() {
	if e.ChannelPrefix = strings.TrimSpace(e.ChannelPrefix); e.ChannelPrefix == "" {
		e.ChannelPrefix = "analysis:events:"
	}
	if e.Buffer < 1 {
		e.Buffer = 64
	}
	if e.Buffer > 4096 {
		e.Buffer = 4096
	}
	if e.ReconnectBackoff < 10*time.Millisecond {
		e.ReconnectBackoff = 10 * time.Millisecond
	}
}
