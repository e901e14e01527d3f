package job

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/target/track-analysis-api/internal/domain/model"
)

func TestResolveItemState(t *testing.T) {
	tests := []struct {
		name       string
		ev         ItemEvidence
		wantState  model.ItemState
		wantSource model.ItemStateSource
	}{
		{"untouched item is queued", ItemEvidence{}, model.ItemStateQueued, model.SourceDefault},
		{"in-flight attempt", ItemEvidence{Attempt: model.AttemptStatusInProgress}, model.ItemStateInProgress, model.SourceAttempt},
		{"failed attempt", ItemEvidence{Attempt: model.AttemptStatusFailed}, model.ItemStateFailed, model.SourceAttempt},
		{"result without attempt", ItemEvidence{HasResult: true}, model.ItemStateCompleted, model.SourceResult},
		{
			name:       "result beats leftover in-flight attempt",
			ev:         ItemEvidence{Attempt: model.AttemptStatusInProgress, HasResult: true},
			wantState:  model.ItemStateCompleted,
			wantSource: model.SourceResult,
		},
		{
			name:       "failed attempt beats result",
			ev:         ItemEvidence{Attempt: model.AttemptStatusFailed, HasResult: true},
			wantState:  model.ItemStateFailed,
			wantSource: model.SourceAttempt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, source := ResolveItemState(tt.ev)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestResolveItemStates_RoundTrip(t *testing.T) {
	// 6 items: k=2 failed attempts, m=2 results, rest untouched.
	items := []int64{10, 11, 12, 13, 14, 15}
	attempts := map[int64]model.AttemptStatus{
		11: model.AttemptStatusFailed,
		14: model.AttemptStatusFailed,
	}
	results := map[int64]bool{12: true, 15: true}

	states := ResolveItemStates(items, attempts, results)

	assert.Len(t, states, len(items))
	for i, p := range states {
		assert.Equal(t, items[i], p.ItemID, "order follows itemIDs")
	}

	counts := (&model.RecoveredJob{ItemStates: states}).CountStates()
	assert.Equal(t, 2, counts[model.ItemStateFailed])
	assert.Equal(t, 2, counts[model.ItemStateCompleted])
	assert.Equal(t, 2, counts[model.ItemStateQueued])
	assert.Zero(t, counts[model.ItemStateInProgress])
}

func TestResolveItemStates_Dedupes(t *testing.T) {
	states := ResolveItemStates([]int64{1, 2, 1}, nil, nil)
	assert.Len(t, states, 2)
}

func TestAllFailed(t *testing.T) {
	failed := model.ItemStatePair{ItemID: 1, State: model.ItemStateFailed}
	done := model.ItemStatePair{ItemID: 2, State: model.ItemStateCompleted}

	assert.False(t, AllFailed(nil))
	assert.True(t, AllFailed([]model.ItemStatePair{failed}))
	assert.False(t, AllFailed([]model.ItemStatePair{failed, done}))
}

func TestNeedsResultProbe(t *testing.T) {
	assert.True(t, NeedsResultProbe(""))
	assert.True(t, NeedsResultProbe(model.AttemptStatusInProgress))
	assert.False(t, NeedsResultProbe(model.AttemptStatusFailed))
}
