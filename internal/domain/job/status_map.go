package job

import "github.com/target/track-analysis-api/internal/domain/model"

// UIState is the per-item state shown to a client.
type UIState string

const (
	UIStatePending  UIState = "pending"
	UIStateAnalyzed UIState = "analyzed"
	UIStateFailed   UIState = "failed"
)

var itemStateUI = map[model.ItemState]UIState{
	model.ItemStateQueued:     UIStatePending,
	model.ItemStateInProgress: UIStatePending,
	model.ItemStateCompleted:  UIStateAnalyzed,
	model.ItemStateFailed:     UIStateFailed,
}

var itemStatusUI = map[model.ItemStatus]UIState{
	model.ItemStatusQueued:     UIStatePending,
	model.ItemStatusInProgress: UIStatePending,
	model.ItemStatusCompleted:  UIStateAnalyzed,
	model.ItemStatusFailed:     UIStateFailed,
}

// UIStateForItemState maps a recovered item state. Unknown states report false.
func UIStateForItemState(s model.ItemState) (UIState, bool) {
	ui, ok := itemStateUI[s]
	return ui, ok
}

// UIStateForStatus maps a notification status. SKIPPED and unknown values report
// false: the item keeps whatever state the client already holds.
func UIStateForStatus(s model.ItemStatus) (UIState, bool) {
	ui, ok := itemStatusUI[s]
	return ui, ok
}
