package service

import (
	"context"

	"RateCast/internal/domain/models"
)

// Trainer fits one model family to a currency's history and produces
// multi-step forecasts from the fitted state.
//
// Train splits history chronologically at trainRatio, fits on the prefix
// and evaluates on the suffix. A second Train call re-fits and replaces
// all internal state. Predict before a successful Train (or Restore)
// returns models.ErrNotTrained.
type Trainer interface {
	Family() models.ModelFamily
	Train(ctx context.Context, history []models.RatePoint, currency string, trainRatio float64) (models.TrainingMetrics, error)
	Predict(horizon int, confidence float64) (models.ForecastResult, error)
	// Snapshot serializes the fitted model; Restore rebuilds a trainer
	// capable of Predict without re-training.
	Snapshot() (*models.ModelArtifact, error)
	Restore(a *models.ModelArtifact) error
}
