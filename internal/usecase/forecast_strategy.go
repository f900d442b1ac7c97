package usecase

import (
	"fmt"

	"RateCast/internal/domain/models"
	domsvc "RateCast/internal/domain/service"
	"RateCast/internal/services/training"
)

// forecastStrategy is selected once when a model artifact is loaded, not
// re-dispatched per call.
type forecastStrategy interface {
	Forecast(horizon int, confidence float64, historicalContext []models.RatePoint) (models.ForecastResult, error)
}

// loadedModel pairs a restored trainer with its strategy.
type loadedModel struct {
	trainer  domsvc.Trainer
	strategy forecastStrategy
}

func newLoadedModel(artifact *models.ModelArtifact) (*loadedModel, error) {
	trainer, err := training.FromArtifact(artifact)
	if err != nil {
		return nil, err
	}
	lm := &loadedModel{trainer: trainer}
	switch models.ModeForFamily(artifact.Family) {
	case models.ModeRecursive:
		lr, ok := trainer.(*training.LagRegTrainer)
		if !ok {
			return nil, fmt.Errorf("family %s claims recursive mode but is %T", artifact.Family, trainer)
		}
		lm.strategy = &recursiveStrategy{trainer: lr, residuals: artifact.Residuals}
	default:
		lm.strategy = &nativeStrategy{trainer: trainer}
	}
	return lm, nil
}

// nativeStrategy delegates to the model's own multi-step predictor.
type nativeStrategy struct {
	trainer domsvc.Trainer
}

func (s *nativeStrategy) Forecast(horizon int, confidence float64, _ []models.RatePoint) (models.ForecastResult, error) {
	return s.trainer.Predict(horizon, confidence)
}

// recursiveStrategy runs the feedback loop with an interval margin of
// z * residual_std * sqrt(step+1). residual_std comes from the persisted
// residual array when present; the trainer falls back to a fraction of
// the last observed value otherwise. The seeded recursion runs over a
// per-call buffer, so the shared cached trainer is never written on the
// serving path.
type recursiveStrategy struct {
	trainer   *training.LagRegTrainer
	residuals []float64
}

func (s *recursiveStrategy) Forecast(horizon int, confidence float64, historicalContext []models.RatePoint) (models.ForecastResult, error) {
	return s.trainer.PredictSeeded(horizon, confidence, training.ResidualStdOf(s.residuals), historicalContext)
}
