package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/track-analysis-api/config"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		ErrorBackoffBase: 100 * time.Millisecond,
		ErrorBackoffMax:  time.Second,
		RestartLimit:     3,
		MaxRestarts:      2,
		RestartWindow:    10 * time.Minute,
	}
}

func newTestSupervisor(t *testing.T, cfg config.WorkerConfig, rec *sleepRecorder, onRestart func(context.Context) error) *Supervisor {
	t.Helper()
	s, err := NewSupervisor(SupervisorOptions{
		Config:    cfg,
		OnRestart: onRestart,
		Clock:     func() time.Time { return workerNow },
		sleep:     rec.sleep,
		random:    func() float64 { return 0.5 },
	})
	require.NoError(t, err)
	return s
}

// scriptedCycle returns the scripted results in order, then cancels the run.
func scriptedCycle(cancel context.CancelFunc, results ...error) (Cycle, *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context) error {
		n := int(calls.Add(1))
		if n > len(results) {
			cancel()
			return nil
		}
		return results[n-1]
	}, &calls
}

func TestSupervisor_BackoffEscalatesAndResets(t *testing.T) {
	rec := &sleepRecorder{}
	s := newTestSupervisor(t, testWorkerConfig(), rec, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	cycle, calls := scriptedCycle(cancel, boom, boom, nil, boom)

	require.NoError(t, s.Run(ctx, cycle))

	assert.Equal(t, int32(5), calls.Load())
	// Jitter with r=0.5 leaves delays unchanged.
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		100 * time.Millisecond,
	}, rec.delays)
}

func TestSupervisor_RecoversPanics(t *testing.T) {
	rec := &sleepRecorder{}
	s := newTestSupervisor(t, testWorkerConfig(), rec, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	err := s.Run(ctx, func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("bad message")
		}
		cancel()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, rec.delays, 1)
}

func TestSupervisor_RestartsThenGivesUp(t *testing.T) {
	rec := &sleepRecorder{}
	var restarts atomic.Int32
	s := newTestSupervisor(t, testWorkerConfig(), rec, func(context.Context) error {
		restarts.Add(1)
		return nil
	})

	boom := errors.New("queue unreachable")
	err := s.Run(context.Background(), func(context.Context) error { return boom })

	require.ErrorIs(t, err, ErrRestartBudgetExhausted)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), restarts.Load())
	// Two backoff sleeps before each of the three limit hits, plus a pause per restart.
	assert.Len(t, rec.delays, 8)
}

func TestSupervisor_RestartWindowSlides(t *testing.T) {
	rec := &sleepRecorder{}
	now := workerNow
	cfg := testWorkerConfig()
	cfg.MaxRestarts = 1
	s, err := NewSupervisor(SupervisorOptions{
		Config: cfg,
		Clock:  func() time.Time { return now },
		sleep: func(ctx context.Context, d time.Duration) error {
			now = now.Add(6 * time.Minute)
			return rec.sleep(ctx, d)
		},
		random: func() float64 { return 0.5 },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	boom := errors.New("boom")
	var calls atomic.Int32
	err = s.Run(ctx, func(context.Context) error {
		// Three restarts spaced 18 minutes apart never exceed one per window.
		if calls.Add(1) > 9 {
			cancel()
			return nil
		}
		return boom
	})

	require.NoError(t, err)
}

func TestSupervisor_StopsOnCancel(t *testing.T) {
	s, err := NewSupervisor(SupervisorOptions{Config: testWorkerConfig()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestWorker_RunStopsWithContext(t *testing.T) {
	f := newWorkerFixture(t)
	s, err := NewSupervisor(SupervisorOptions{Config: testWorkerConfig()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, f.worker.Run(ctx, s, 2))
}
