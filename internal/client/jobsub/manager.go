// Package jobsub keeps a client's view of its one current analysis job.
//
// A Manager recovers the active job on load, follows the user's notification
// feed filtered to that job, and folds each event into per-item display state.
// Starting a new submission swaps the tracked job under the same lock that
// event folding takes, so late events of the previous job never touch the new
// job's items. The persisted records stay the source of truth: a fresh Load
// always rebuilds state from recovery.
package jobsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainjob "github.com/target/track-analysis-api/internal/domain/job"
	"github.com/target/track-analysis-api/internal/domain/model"
)

// ErrNoCurrentJob is returned when an operation needs a tracked job.
var ErrNoCurrentJob = errors.New("no current job")

// Backend is the server side a Manager talks to, already scoped to one user.
type Backend interface {
	// Recover returns model.ErrNoActiveJob when nothing is resumable.
	Recover(ctx context.Context) (*model.RecoveredJob, error)
	Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error)
	Cancel(ctx context.Context, jobID string) (*model.Job, error)
}

// Feed delivers the user's notifications until ctx ends or unsubscribe is called.
type Feed interface {
	Subscribe(ctx context.Context) (events <-chan model.Event, unsubscribe func(), err error)
}

// ItemView is one item's display state.
type ItemView struct {
	ItemID int64             `json:"itemId"`
	State  domainjob.UIState `json:"state"`
}

// Progress is the latest batch progress reported by the analysis provider.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Snapshot is an immutable copy of the tracked job.
type Snapshot struct {
	JobID    string          `json:"jobId"`
	Status   model.JobStatus `json:"status"`
	Items    []ItemView      `json:"items"`
	Stats    model.JobStats  `json:"stats"`
	Progress Progress        `json:"progress"`
	Done     bool            `json:"done"`
	Message  string          `json:"message,omitempty"`
	Updated  time.Time       `json:"updated"`
}

// Count returns the number of items in state.
func (s Snapshot) Count(state domainjob.UIState) int {
	n := 0
	for _, it := range s.Items {
		if it.State == state {
			n++
		}
	}
	return n
}

// Options configures a Manager.
type Options struct {
	Backend Backend // Required
	Feed    Feed    // Required
	// OnChange receives a snapshot after every applied change. Calls are serialized.
	OnChange func(Snapshot)
	Clock    func() time.Time // Optional: defaults to time.Now
	Logger   *slog.Logger     // Optional: defaults to slog.Default
}

// tracked is the mutable state of the current job.
type tracked struct {
	jobID    string
	status   model.JobStatus
	order    []int64
	items    map[int64]domainjob.UIState
	stats    model.JobStats
	progress Progress
	done     bool
	message  string
	updated  time.Time
}

func (t *tracked) snapshot() Snapshot {
	items := make([]ItemView, 0, len(t.order))
	for _, id := range t.order {
		items = append(items, ItemView{ItemID: id, State: t.items[id]})
	}
	return Snapshot{
		JobID:    t.jobID,
		Status:   t.status,
		Items:    items,
		Stats:    t.stats,
		Progress: t.progress,
		Done:     t.done,
		Message:  t.message,
		Updated:  t.updated,
	}
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks at most one job for one user.
type Manager struct {
	backend  Backend
	feed     Feed
	onChange func(Snapshot)
	now      func() time.Time
	logger   *slog.Logger

	mu  sync.Mutex
	cur *tracked
	sub *subscription

	notifyMu sync.Mutex
}

// New constructs a Manager.
func New(opts Options) (*Manager, error) {
	if opts.Backend == nil {
		return nil, errors.New("jobsub: backend is required")
	}
	if opts.Feed == nil {
		return nil, errors.New("jobsub: feed is required")
	}
	m := &Manager{
		backend:  opts.Backend,
		feed:     opts.Feed,
		onChange: opts.OnChange,
		now:      opts.Clock,
		logger:   opts.Logger,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "jobsub")
	return m, nil
}

// Load recovers the user's active job and starts following it. It reports
// false when there is nothing to resume, after clearing any tracked job.
func (m *Manager) Load(ctx context.Context) (Snapshot, bool, error) {
	rec, err := m.backend.Recover(ctx)
	if errors.Is(err, model.ErrNoActiveJob) {
		m.clear()
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("recover active job: %w", err)
	}

	t := m.fromRecovered(rec)
	snap := m.swap(t)
	if t.done {
		m.stopSubscription()
	} else if err := m.ensureSubscribed(ctx); err != nil {
		return snap, true, err
	}
	m.notify(snap)
	return snap, true, nil
}

func (m *Manager) fromRecovered(rec *model.RecoveredJob) *tracked {
	t := &tracked{
		jobID:   rec.JobID,
		status:  rec.Status,
		items:   make(map[int64]domainjob.UIState, len(rec.ItemStates)),
		stats:   rec.DBStats,
		done:    rec.Status.Terminal(),
		message: rec.Message,
		updated: m.now(),
	}
	for _, p := range rec.ItemStates {
		ui, ok := domainjob.UIStateForItemState(p.State)
		if !ok {
			ui = domainjob.UIStatePending
		}
		if _, dup := t.items[p.ItemID]; !dup {
			t.order = append(t.order, p.ItemID)
		}
		t.items[p.ItemID] = ui
	}
	return t
}

// Submit starts a new job and makes it current. A job id is generated when
// the request has none, so the new job is tracked before the request leaves
// and its first events are not missed. On failure the previous job is
// restored.
func (m *Manager) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	next := &tracked{
		jobID:   req.JobID,
		status:  model.JobStatusPending,
		items:   make(map[int64]domainjob.UIState, len(req.ItemIDs)),
		updated: m.now(),
	}
	for _, id := range req.ItemIDs {
		if _, dup := next.items[id]; dup {
			continue
		}
		next.order = append(next.order, id)
		next.items[id] = domainjob.UIStatePending
	}

	m.mu.Lock()
	prev := m.cur
	m.cur = next
	m.mu.Unlock()

	if err := m.ensureSubscribed(ctx); err != nil {
		m.restore(next, prev)
		return nil, err
	}

	res, err := m.backend.Submit(ctx, req)
	if err != nil {
		m.restore(next, prev)
		return nil, err
	}

	m.mu.Lock()
	if m.cur == next {
		next.jobID = res.JobID
		next.keepOnly(res.ItemIDs)
		next.updated = m.now()
	}
	snap := next.snapshot()
	m.mu.Unlock()
	m.notify(snap)
	return res, nil
}

// keepOnly drops items the server did not queue.
func (t *tracked) keepOnly(ids []int64) {
	keep := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	order := t.order[:0]
	for _, id := range t.order {
		if _, ok := keep[id]; ok {
			order = append(order, id)
			continue
		}
		delete(t.items, id)
	}
	t.order = order
}

// restore puts prev back if next is still current.
func (m *Manager) restore(next, prev *tracked) {
	m.mu.Lock()
	if m.cur == next {
		m.cur = prev
	}
	m.mu.Unlock()
}

// Cancel cancels the tracked job and folds the final record in without
// waiting for the completion event.
func (m *Manager) Cancel(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	t := m.cur
	var jobID string
	if t != nil && !t.done {
		jobID = t.jobID
	}
	m.mu.Unlock()
	if jobID == "" {
		return Snapshot{}, ErrNoCurrentJob
	}

	job, err := m.backend.Cancel(ctx, jobID)
	if err != nil {
		return Snapshot{}, err
	}
	m.Apply(model.NewJobCompletedEvent(job, m.now()))
	snap, _ := m.Current()
	return snap, nil
}

// Current returns the tracked job, if any.
func (m *Manager) Current() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return Snapshot{}, false
	}
	return m.cur.snapshot(), true
}

// Close stops following the feed and forgets the tracked job. It must not be
// called from OnChange.
func (m *Manager) Close() {
	m.clear()
}

func (m *Manager) swap(t *tracked) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = t
	return t.snapshot()
}

func (m *Manager) clear() {
	m.mu.Lock()
	m.cur = nil
	m.mu.Unlock()
	m.stopSubscription()
}

// stopSubscription ends the feed and waits for its goroutine. It must not be
// called from OnChange.
func (m *Manager) stopSubscription() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.cancel()
		<-sub.done
	}
}

// ensureSubscribed opens the feed if it is not already open. The
// subscription outlives ctx; it ends with the job or with Close.
func (m *Manager) ensureSubscribed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, unsubscribe, err := m.feed.Subscribe(subCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to notifications: %w", err)
	}
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	m.sub = sub

	go func() {
		defer close(sub.done)
		defer unsubscribe()
		defer m.dropSubscription(sub)
		for {
			select {
			case <-subCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					m.logger.WarnContext(subCtx, "notification feed closed")
					return
				}
				m.Apply(ev)
			}
		}
	}()
	return nil
}

func (m *Manager) dropSubscription(sub *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub == sub {
		m.sub = nil
	}
}

// Apply folds one notification into the tracked job. Events for any other
// job are ignored. It reports whether the event changed anything.
func (m *Manager) Apply(ev model.Event) bool {
	m.mu.Lock()
	t := m.cur
	if t == nil || ev.JobID != t.jobID || t.done {
		m.mu.Unlock()
		return false
	}

	changed := t.fold(ev)
	var stop *subscription
	if t.done {
		stop = m.sub
		m.sub = nil
	}
	if changed {
		t.updated = m.now()
	}
	snap := t.snapshot()
	m.mu.Unlock()

	if stop != nil {
		// Called from the subscription goroutine itself; do not wait on done.
		stop.cancel()
	}
	if changed {
		m.notify(snap)
	}
	return changed
}

func (t *tracked) fold(ev model.Event) bool {
	switch ev.Type {
	case model.EventItemStatus:
		return t.setItem(ev.ItemID, model.ItemStatus(ev.Status))
	case model.EventBatchQueued:
		changed := false
		for _, id := range ev.ItemIDs {
			if t.setItem(id, model.ItemStatusQueued) {
				changed = true
			}
		}
		return changed
	case model.EventBatchProgress:
		p := Progress{Completed: ev.Completed, Total: ev.Total}
		if p == t.progress {
			return false
		}
		t.progress = p
		if t.status == model.JobStatusPending {
			t.status = model.JobStatusInProgress
		}
		return true
	case model.EventJobCompleted:
		t.status = model.JobStatus(ev.Status)
		if ev.Stats != nil {
			t.stats = *ev.Stats
		}
		t.message = ev.Error
		t.done = true
		return true
	default:
		return false
	}
}

// setItem applies a per-item status. Settled items never move back to pending.
func (t *tracked) setItem(id int64, status model.ItemStatus) bool {
	cur, ok := t.items[id]
	if !ok {
		return false
	}
	changed := false
	if status == model.ItemStatusInProgress && t.status == model.JobStatusPending {
		t.status = model.JobStatusInProgress
		changed = true
	}
	ui, ok := domainjob.UIStateForStatus(status)
	if !ok || ui == cur || (ui == domainjob.UIStatePending && cur != domainjob.UIStatePending) {
		return changed
	}
	t.items[id] = ui
	return true
}

func (m *Manager) notify(s Snapshot) {
	if m.onChange == nil {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.onChange(s)
}
