package model

import (
	"encoding/json"
	"time"
)

// AnalysisResult is the durable output of a successful item analysis. Its
// existence is the authoritative completed signal for an item.
type AnalysisResult struct {
	ID        int64           `json:"id"        db:"id"`
	TrackID   int64           `json:"trackId"   db:"track_id"`
	ModelName string          `json:"modelName" db:"model_name"`
	Analysis  json.RawMessage `json:"analysis"  db:"analysis"`
	Version   int             `json:"version"   db:"version"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// SaveResultRequest carries one analysis output to persist.
type SaveResultRequest struct {
	TrackID   int64
	ModelName string
	Analysis  json.RawMessage
}

// CurrentAnalysisVersion is stamped on newly written results.
const CurrentAnalysisVersion = 1
