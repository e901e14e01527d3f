package job

import "github.com/target/track-analysis-api/internal/domain/model"

// ItemEvidence is what the datastore holds for one item of a job.
type ItemEvidence struct {
	// Attempt is the item's attempt status, or "" when it has no attempt record.
	Attempt model.AttemptStatus
	// HasResult is set when an analysis result exists for the item.
	HasResult bool
}

// ResolveItemState applies the recovery lookup for one item:
//
//  1. a failed attempt wins;
//  2. otherwise an existing result means completed, even over an in_progress
//     attempt left behind by a worker that crashed before cleanup;
//  3. otherwise an in_progress attempt means in_progress;
//  4. otherwise the item is queued.
func ResolveItemState(ev ItemEvidence) (model.ItemState, model.ItemStateSource) {
	switch {
	case ev.Attempt == model.AttemptStatusFailed:
		return model.ItemStateFailed, model.SourceAttempt
	case ev.HasResult:
		return model.ItemStateCompleted, model.SourceResult
	case ev.Attempt == model.AttemptStatusInProgress:
		return model.ItemStateInProgress, model.SourceAttempt
	default:
		return model.ItemStateQueued, model.SourceDefault
	}
}

// ResolveItemStates resolves every item in itemIDs order. Duplicate ids are reported once.
func ResolveItemStates(
	itemIDs []int64,
	attempts map[int64]model.AttemptStatus,
	results map[int64]bool,
) []model.ItemStatePair {
	out := make([]model.ItemStatePair, 0, len(itemIDs))
	seen := make(map[int64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		state, source := ResolveItemState(ItemEvidence{Attempt: attempts[id], HasResult: results[id]})
		out = append(out, model.ItemStatePair{ItemID: id, State: state, Source: source})
	}
	return out
}

// NeedsResultProbe reports whether the result store must be consulted for an item.
// A failed attempt is decisive on its own.
func NeedsResultProbe(attempt model.AttemptStatus) bool {
	return attempt != model.AttemptStatusFailed
}

// AllFailed reports whether every state is failed. It is false for an empty list.
func AllFailed(states []model.ItemStatePair) bool {
	if len(states) == 0 {
		return false
	}
	for _, p := range states {
		if p.State != model.ItemStateFailed {
			return false
		}
	}
	return true
}
