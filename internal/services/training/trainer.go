// Package training implements the model families behind rate forecasting:
// fitting, evaluation on a held-out tail, multi-step prediction and
// artifact round-tripping. Trainers mutate only their own state; catalog
// and artifact persistence belong to the registry.
package training

import (
	"fmt"

	"RateCast/internal/domain/models"
	domsvc "RateCast/internal/domain/service"
)

// New creates an untrained trainer for a base family. Ensembles are
// built with NewEnsembleTrainer since they need member configuration.
func New(family models.ModelFamily) (domsvc.Trainer, error) {
	switch family {
	case models.FamilyTrend:
		return NewTrendTrainer(), nil
	case models.FamilyAR:
		return NewARTrainer(), nil
	case models.FamilyLagReg:
		return NewLagRegTrainer(), nil
	case models.FamilyEnsemble:
		return NewEnsembleTrainer(nil, WeightInverseMAPE, nil)
	default:
		return nil, fmt.Errorf("unknown model family %q", family)
	}
}

// MinSamples returns the minimum history length a family needs to train.
func MinSamples(family models.ModelFamily) int {
	if family == models.FamilyLagReg {
		return minLagRegSamples
	}
	return minTrendSamples
}

// FromArtifact rebuilds a predict-capable trainer from a serialized
// artifact without re-training.
func FromArtifact(a *models.ModelArtifact) (domsvc.Trainer, error) {
	t, err := New(a.Family)
	if err != nil {
		return nil, err
	}
	if err := t.Restore(a); err != nil {
		return nil, err
	}
	return t, nil
}
