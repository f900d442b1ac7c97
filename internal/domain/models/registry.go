package models

import (
	"fmt"
	"time"
)

// ModelMetadata is one registry catalog entry. All fields except IsActive
// are immutable once written; IsActive is owned exclusively by the registry.
type ModelMetadata struct {
	ModelID      string             `json:"model_id"`
	Family       ModelFamily        `json:"family"`
	Currency     string             `json:"currency"`
	TrainedAt    time.Time          `json:"trained_at"`
	WindowStart  time.Time          `json:"window_start"`
	WindowEnd    time.Time          `json:"window_end"`
	Metrics      map[string]float64 `json:"metrics"`
	ArtifactPath string             `json:"artifact_path"`
	IsActive     bool               `json:"is_active"`
}

// NewModelID builds the id for a registered model version.
func NewModelID(family ModelFamily, currency string, trainedAt time.Time) string {
	return fmt.Sprintf("%s_%s_%s", family, currency, trainedAt.UTC().Format("20060102T150405"))
}

// NextModelID returns the first id not present in taken for the given
// family/currency/timestamp. Same-second retrains get a numeric suffix
// so ids stay unique and existing artifacts are never overwritten.
func NextModelID(family ModelFamily, currency string, trainedAt time.Time, taken map[string]bool) string {
	base := NewModelID(family, currency, trainedAt)
	id := base
	for seq := 2; taken[id]; seq++ {
		id = fmt.Sprintf("%s_%d", base, seq)
	}
	return id
}

// Catalog maps currency to its registered model versions, oldest first.
// The registry re-serializes the whole catalog on every structural change
// so readers always observe the single-active invariant.
type Catalog map[string][]ModelMetadata
