package jobsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainjob "github.com/target/track-analysis-api/internal/domain/job"
	"github.com/target/track-analysis-api/internal/domain/model"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu        sync.Mutex
	recovered *model.RecoveredJob
	recErr    error
	submitErr error
	submitted []model.SubmitRequest
	// dropped ids are left out of the submit result, as if unknown to the catalog.
	dropped   map[int64]bool
	cancelled []string
}

func (b *fakeBackend) Recover(context.Context) (*model.RecoveredJob, error) {
	if b.recErr != nil {
		return nil, b.recErr
	}
	if b.recovered == nil {
		return nil, model.ErrNoActiveJob
	}
	return b.recovered, nil
}

func (b *fakeBackend) Submit(_ context.Context, req model.SubmitRequest) (*model.SubmitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, req)
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	var ids []int64
	for _, id := range req.ItemIDs {
		if !b.dropped[id] {
			ids = append(ids, id)
		}
	}
	return &model.SubmitResult{JobID: req.JobID, ItemIDs: ids, TotalQueued: len(ids)}, nil
}

func (b *fakeBackend) Cancel(_ context.Context, jobID string) (*model.Job, error) {
	b.cancelled = append(b.cancelled, jobID)
	msg := "cancelled"
	return &model.Job{ID: jobID, UserID: 1, Status: model.JobStatusFailed, ItemCount: 2, ErrorMessage: &msg}, nil
}

// chanFeed hands out a fresh channel per subscription.
type chanFeed struct {
	mu     sync.Mutex
	chans  []chan model.Event
	closed int
	err    error
}

func (f *chanFeed) Subscribe(context.Context) (<-chan model.Event, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	ch := make(chan model.Event, 16)
	f.chans = append(f.chans, ch)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			f.closed++
			f.mu.Unlock()
		})
	}, nil
}

func (f *chanFeed) send(ev model.Event) {
	f.mu.Lock()
	ch := f.chans[len(f.chans)-1]
	f.mu.Unlock()
	ch <- ev
}

func (f *chanFeed) counts() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chans), f.closed
}

type snapshots struct {
	mu  sync.Mutex
	all []Snapshot
}

func (s *snapshots) record(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = append(s.all, snap)
}

func (s *snapshots) last() (Snapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.all) == 0 {
		return Snapshot{}, 0
	}
	return s.all[len(s.all)-1], len(s.all)
}

func newTestManager(t *testing.T, b *fakeBackend, f *chanFeed) (*Manager, *snapshots) {
	t.Helper()
	rec := &snapshots{}
	m, err := New(Options{
		Backend:  b,
		Feed:     f,
		OnChange: rec.record,
		Clock:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, rec
}

func recoveredJob() *model.RecoveredJob {
	return &model.RecoveredJob{
		JobID:     "job-1",
		UserID:    1,
		Status:    model.JobStatusInProgress,
		JobType:   model.JobTypeTrackBatch,
		ItemCount: 4,
		ItemStates: []model.ItemStatePair{
			{ItemID: 1, State: model.ItemStateFailed},
			{ItemID: 2, State: model.ItemStateCompleted},
			{ItemID: 3, State: model.ItemStateInProgress},
			{ItemID: 4, State: model.ItemStateQueued},
		},
		DBStats: model.JobStats{Processed: 1, Failed: 1},
	}
}

func waitFor(t *testing.T, rec *snapshots, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var got Snapshot
	require.Eventually(t, func() bool {
		snap, n := rec.last()
		got = snap
		return n > 0 && cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Feed: &chanFeed{}})
	require.Error(t, err)
	_, err = New(Options{Backend: &fakeBackend{}})
	require.Error(t, err)
}

func TestManager_LoadNothingToResume(t *testing.T) {
	f := &chanFeed{}
	m, _ := newTestManager(t, &fakeBackend{}, f)

	_, ok, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = m.Current()
	assert.False(t, ok)
	opened, _ := f.counts()
	assert.Zero(t, opened, "no job means no subscription")
}

func TestManager_LoadRecoversAndMapsStates(t *testing.T) {
	f := &chanFeed{}
	m, _ := newTestManager(t, &fakeBackend{recovered: recoveredJob()}, f)

	snap, ok, err := m.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "job-1", snap.JobID)
	assert.Equal(t, []ItemView{
		{ItemID: 1, State: domainjob.UIStateFailed},
		{ItemID: 2, State: domainjob.UIStateAnalyzed},
		{ItemID: 3, State: domainjob.UIStatePending},
		{ItemID: 4, State: domainjob.UIStatePending},
	}, snap.Items)
	assert.Equal(t, model.JobStats{Processed: 1, Failed: 1}, snap.Stats)
	opened, _ := f.counts()
	assert.Equal(t, 1, opened)
}

func TestManager_LoadError(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{recErr: errors.New("db down")}, &chanFeed{})

	_, _, err := m.Load(context.Background())
	require.Error(t, err)
}

func TestManager_FoldsEventsForCurrentJobOnly(t *testing.T) {
	f := &chanFeed{}
	m, rec := newTestManager(t, &fakeBackend{recovered: recoveredJob()}, f)
	_, _, err := m.Load(context.Background())
	require.NoError(t, err)

	f.send(model.NewItemEvent("other-job", 1, 3, model.ItemStatusCompleted, testNow))
	f.send(model.NewItemEvent("job-1", 1, 3, model.ItemStatusCompleted, testNow))
	f.send(model.NewItemEvent("job-1", 1, 99, model.ItemStatusFailed, testNow))
	f.send(model.NewProgressEvent("job-1", 1, 3, 4, testNow))

	snap := waitFor(t, rec, func(s Snapshot) bool { return s.Progress.Completed == 3 })
	assert.Equal(t, 2, snap.Count(domainjob.UIStateAnalyzed))
	assert.Equal(t, 1, snap.Count(domainjob.UIStatePending))
	assert.Equal(t, Progress{Completed: 3, Total: 4}, snap.Progress)
	assert.Len(t, snap.Items, 4)
}

func TestManager_SettledItemsDoNotRegress(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{recovered: recoveredJob()}, &chanFeed{})
	_, _, err := m.Load(context.Background())
	require.NoError(t, err)

	assert.False(t, m.Apply(model.NewItemEvent("job-1", 1, 2, model.ItemStatusInProgress, testNow)))
	assert.False(t, m.Apply(model.NewItemEvent("job-1", 1, 2, model.ItemStatusSkipped, testNow)))
	assert.True(t, m.Apply(model.NewItemEvent("job-1", 1, 1, model.ItemStatusCompleted, testNow)))

	snap, _ := m.Current()
	assert.Equal(t, domainjob.UIStateAnalyzed, snap.Items[1].State)
	assert.Equal(t, domainjob.UIStateAnalyzed, snap.Items[0].State)
}

func TestManager_CompletionStopsSubscription(t *testing.T) {
	f := &chanFeed{}
	m, rec := newTestManager(t, &fakeBackend{recovered: recoveredJob()}, f)
	_, _, err := m.Load(context.Background())
	require.NoError(t, err)

	f.send(model.NewJobCompletedEvent(&model.Job{
		ID:             "job-1",
		UserID:         1,
		Status:         model.JobStatusCompleted,
		ItemCount:      4,
		ItemsProcessed: 4,
		ItemsSucceeded: 3,
		ItemsFailed:    1,
	}, testNow))

	snap := waitFor(t, rec, func(s Snapshot) bool { return s.Done })
	assert.Equal(t, model.JobStatusCompleted, snap.Status)
	assert.Equal(t, model.JobStats{Processed: 4, Succeeded: 3, Failed: 1}, snap.Stats)
	assert.Eventually(t, func() bool {
		_, closed := f.counts()
		return closed == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, m.Apply(model.NewItemEvent("job-1", 1, 4, model.ItemStatusCompleted, testNow)))
}

func TestManager_SubmitSwapsTarget(t *testing.T) {
	f := &chanFeed{}
	b := &fakeBackend{recovered: recoveredJob(), dropped: map[int64]bool{12: true}}
	m, _ := newTestManager(t, b, f)
	_, _, err := m.Load(context.Background())
	require.NoError(t, err)

	res, err := m.Submit(context.Background(), model.SubmitRequest{ItemIDs: []int64{10, 11, 12, 10}})
	require.NoError(t, err)
	require.Len(t, b.submitted, 1)
	assert.NotEmpty(t, b.submitted[0].JobID, "job id is generated client-side")
	assert.Equal(t, b.submitted[0].JobID, res.JobID)

	snap, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, res.JobID, snap.JobID)
	assert.Equal(t, []ItemView{
		{ItemID: 10, State: domainjob.UIStatePending},
		{ItemID: 11, State: domainjob.UIStatePending},
	}, snap.Items)

	// Late events of the previous job are ignored.
	assert.False(t, m.Apply(model.NewItemEvent("job-1", 1, 10, model.ItemStatusCompleted, testNow)))
	assert.True(t, m.Apply(model.NewItemEvent(res.JobID, 1, 10, model.ItemStatusInProgress, testNow)))

	snap, _ = m.Current()
	assert.Equal(t, model.JobStatusInProgress, snap.Status)

	opened, _ := f.counts()
	assert.Equal(t, 1, opened, "the user feed is reused across jobs")
}

func TestManager_SubmitFailureRestoresPrevious(t *testing.T) {
	b := &fakeBackend{recovered: recoveredJob(), submitErr: errors.New("queue down")}
	m, _ := newTestManager(t, b, &chanFeed{})
	_, _, err := m.Load(context.Background())
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), model.SubmitRequest{JobID: "job-2", ItemIDs: []int64{10}})
	require.Error(t, err)

	snap, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "job-1", snap.JobID)
}

func TestManager_SubmitSubscribeFailure(t *testing.T) {
	f := &chanFeed{err: errors.New("redis down")}
	b := &fakeBackend{}
	m, _ := newTestManager(t, b, f)

	_, err := m.Submit(context.Background(), model.SubmitRequest{ItemIDs: []int64{1}})
	require.Error(t, err)
	assert.Empty(t, b.submitted, "nothing is submitted without a feed")
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_Cancel(t *testing.T) {
	b := &fakeBackend{recovered: recoveredJob()}
	m, _ := newTestManager(t, b, &chanFeed{})

	_, err := m.Cancel(context.Background())
	require.ErrorIs(t, err, ErrNoCurrentJob)

	_, _, err = m.Load(context.Background())
	require.NoError(t, err)

	snap, err := m.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, b.cancelled)
	assert.True(t, snap.Done)
	assert.Equal(t, model.JobStatusFailed, snap.Status)
	assert.Equal(t, "cancelled", snap.Message)

	_, err = m.Cancel(context.Background())
	require.ErrorIs(t, err, ErrNoCurrentJob)
}

func TestManager_LoadTerminalJob(t *testing.T) {
	rec := recoveredJob()
	rec.Status = model.JobStatusFailed
	rec.Message = "analysis stalled, please retry"
	f := &chanFeed{}
	m, _ := newTestManager(t, &fakeBackend{recovered: rec}, f)

	snap, ok, err := m.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Done)
	assert.Equal(t, "analysis stalled, please retry", snap.Message)
	opened, _ := f.counts()
	assert.Zero(t, opened)
}
