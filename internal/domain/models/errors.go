package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmer-level misuse. These are matched with
// errors.Is and never wrapped with additional causes.
var (
	// ErrNotTrained: predict was called before train.
	ErrNotTrained = errors.New("model is not trained")
	// ErrNothingToSave: orchestrator save was called before a successful train.
	ErrNothingToSave = errors.New("nothing to save: train first")
)

// InsufficientDataError reports that a history series is too short to fit
// a model family.
type InsufficientDataError struct {
	Family   ModelFamily
	Currency string
	Need     int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s/%s: need %d samples, got %d", e.Family, e.Currency, e.Need, e.Got)
}

// ModelNotFoundError reports that no registered model exists for a
// currency. The forecast service surfaces this as-is; there is no
// fallback to an untrained or default model.
type ModelNotFoundError struct {
	Currency string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("no trained model registered for currency %q", e.Currency)
}

// ModelLoadError reports a corrupt or missing model artifact. The
// underlying I/O or decode cause is always preserved.
type ModelLoadError struct {
	ModelID string
	Path    string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s from %s: %v", e.ModelID, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
