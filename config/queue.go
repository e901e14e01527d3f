package config

import (
	"fmt"
	"strings"
	"time"
)

// QueueDriver selects the queue transport implementation.
type QueueDriver string

const (
	// QueueDriverPostgres stores messages in the queue_messages table.
	QueueDriverPostgres QueueDriver = "postgres"
	// QueueDriverRedis stores messages in Redis sorted sets.
	QueueDriverRedis QueueDriver = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for QueueDriver.
func (d *QueueDriver) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch QueueDriver(v) {
	case QueueDriverPostgres, QueueDriverRedis:
		*d = QueueDriver(v)
		return nil
	default:
		return fmt.Errorf("invalid QueueDriver: %q (valid options: postgres, redis)", v)
	}
}

// QueueConfig contains queue transport configuration.
type QueueConfig struct {
	Driver QueueDriver `env:"DRIVER" envDefault:"postgres"`
	Name   string      `env:"NAME"   envDefault:"track-analysis"`

	// ReceiveMax is the number of messages leased per poll (transport limit 10).
	ReceiveMax int `env:"RECEIVE_MAX" envDefault:"10"`

	// WaitTime is the long-poll duration of one receive.
	WaitTime time.Duration `env:"WAIT_TIME" envDefault:"20s"`

	// VisibilityTimeout must exceed analysis latency times batch size plus margin.
	VisibilityTimeout time.Duration `env:"VISIBILITY_TIMEOUT" envDefault:"300s"`
}

// Sanitize clamps queue settings to the transport limits.
func (q *QueueConfig) Sanitize() {
	if q.Driver == "" {
		q.Driver = QueueDriverPostgres
	}
	if q.Name = strings.TrimSpace(q.Name); q.Name == "" {
		q.Name = "track-analysis"
	}
	if q.ReceiveMax < 1 {
		q.ReceiveMax = 1
	}
	if q.ReceiveMax > 10 {
		q.ReceiveMax = 10
	}
	if q.WaitTime < 0 {
		q.WaitTime = 0
	}
	if q.WaitTime > 20*time.Second {
		q.WaitTime = 20 * time.Second
	}
	if q.VisibilityTimeout < 30*time.Second {
		q.VisibilityTimeout = 30 * time.Second
	}
}
