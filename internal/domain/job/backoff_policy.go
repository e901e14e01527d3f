// Package job holds the pure policies of the analysis pipeline.
//
//   - BackoffPolicy bounds the worker's sleep after failed poll cycles.
//   - ResolveItemStates derives recovered item states from persisted records.
//   - EventHub shares one upstream subscription per user.
//   - UIStateForItemState maps job state to client display state.
package job

import (
	"errors"
	"time"
)

// ErrInvalidBackoff indicates a non-positive base or a max below base.
var ErrInvalidBackoff = errors.New("backoff base must be positive and max must be >= base")

// BackoffSource identifies how a delay was resolved.
type BackoffSource string

const (
	// BackoffSourceNone indicates no failure has been observed.
	BackoffSourceNone BackoffSource = "none"
	// BackoffSourceExponential indicates base·2^(k-1) was used.
	BackoffSourceExponential BackoffSource = "exponential"
	// BackoffSourceCapped indicates the delay was clamped to the maximum.
	BackoffSourceCapped BackoffSource = "capped"
)

// BackoffPolicy computes bounded exponential delays after consecutive failures.
type BackoffPolicy struct {
	base time.Duration
	max  time.Duration
}

// NewBackoffPolicy constructs a BackoffPolicy.
func NewBackoffPolicy(base, maxDelay time.Duration) (*BackoffPolicy, error) {
	if base <= 0 || maxDelay < base {
		return nil, ErrInvalidBackoff
	}
	return &BackoffPolicy{base: base, max: maxDelay}, nil
}

// Base returns the first-failure delay.
func (p *BackoffPolicy) Base() time.Duration {
	if p == nil {
		return 0
	}
	return p.base
}

// Max returns the delay ceiling.
func (p *BackoffPolicy) Max() time.Duration {
	if p == nil {
		return 0
	}
	return p.max
}

// BackoffDecision captures the delay chosen for a failure count.
type BackoffDecision struct {
	Delay    time.Duration
	Source   BackoffSource
	Failures int
}

// Capped reports whether the delay hit the ceiling.
func (d BackoffDecision) Capped() bool {
	return d.Source == BackoffSourceCapped
}

// Resolve returns the delay after the given number of consecutive failures.
func (p *BackoffPolicy) Resolve(failures int) BackoffDecision {
	decision := BackoffDecision{Failures: failures}
	if p == nil || failures <= 0 {
		decision.Source = BackoffSourceNone
		return decision
	}

	delay := p.base
	for i := 1; i < failures; i++ {
		if delay >= p.max/2 {
			decision.Delay = p.max
			decision.Source = BackoffSourceCapped
			return decision
		}
		delay *= 2
	}
	if delay >= p.max {
		decision.Delay = p.max
		decision.Source = BackoffSourceCapped
		return decision
	}
	decision.Delay = delay
	decision.Source = BackoffSourceExponential
	return decision
}

// Jitter scales d by a factor in [1-frac, 1+frac] using r in [0,1).
func Jitter(d time.Duration, frac, r float64) time.Duration {
	if d <= 0 || frac <= 0 {
		return d
	}
	if frac > 1 {
		frac = 1
	}
	factor := 1 - frac + 2*frac*r
	return time.Duration(float64(d) * factor)
}
