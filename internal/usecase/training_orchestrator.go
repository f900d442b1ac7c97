package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"time"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
	domsvc "RateCast/internal/domain/service"
	"RateCast/internal/registry"
	"RateCast/internal/services/training"
	applogger "RateCast/pkg/logger"
)

// OrchestratorConfig selects what and how the orchestrator trains.
type OrchestratorConfig struct {
	Family          models.ModelFamily
	EnsembleMembers []models.ModelFamily
	Weighting       training.WeightingMode
	TrainRatio      float64
	LookbackDays    int
}

// TrainingOrchestrator drives trainers over datasets and hands winners to
// the registry. It runs in an offline/batch context, never in the serving
// path, and is the only catalog writer besides direct registry callers.
type TrainingOrchestrator struct {
	cfg       OrchestratorConfig
	registry  *registry.ModelRegistry
	artifacts domrepo.ArtifactStore
	rates     domrepo.RateHistory
	metrics   domrepo.Metrics
	logger    *applogger.Logger

	trainer     domsvc.Trainer
	lastMetrics *models.TrainingMetrics
}

func NewTrainingOrchestrator(cfg OrchestratorConfig, reg *registry.ModelRegistry, artifacts domrepo.ArtifactStore, rates domrepo.RateHistory, metrics domrepo.Metrics, l *applogger.Logger) *TrainingOrchestrator {
	if cfg.Family == "" {
		cfg.Family = models.FamilyEnsemble
	}
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = 0.8
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	return &TrainingOrchestrator{cfg: cfg, registry: reg, artifacts: artifacts, rates: rates, metrics: metrics, logger: l}
}

// Train fits the configured family on history and keeps the fitted
// trainer for a subsequent Save.
func (o *TrainingOrchestrator) Train(ctx context.Context, history []models.RatePoint, currency string, trainRatio float64) (models.TrainingMetrics, error) {
	if trainRatio <= 0 || trainRatio >= 1 {
		trainRatio = o.cfg.TrainRatio
	}
	trainer, err := o.newTrainer(o.cfg.Family)
	if err != nil {
		return models.TrainingMetrics{}, err
	}
	metrics, err := trainer.Train(ctx, history, currency, trainRatio)
	if err != nil {
		return models.TrainingMetrics{}, err
	}

	o.trainer = trainer
	o.lastMetrics = &metrics
	if o.metrics != nil {
		o.metrics.RecordTrainingDuration(string(metrics.Family), metrics.TrainingDuration.Seconds())
		o.metrics.RecordModelMAPE(currency, string(metrics.Family), metrics.MAPE)
	}
	if o.logger != nil {
		o.logger.Info("model trained",
			applogger.String("family", string(metrics.Family)),
			applogger.String("currency", currency),
			applogger.Any("mape", metrics.MAPE),
			applogger.Duration("duration", metrics.TrainingDuration),
		)
	}
	return metrics, nil
}

// Save serializes the last trained model, stores the artifact and
// registers it, optionally activating it. Fails with ErrNothingToSave
// when no successful Train preceded it.
func (o *TrainingOrchestrator) Save(ctx context.Context, setActive bool) (string, error) {
	if o.trainer == nil || o.lastMetrics == nil {
		return "", models.ErrNothingToSave
	}
	artifact, err := o.trainer.Snapshot()
	if err != nil {
		return "", fmt.Errorf("snapshot model: %w", err)
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	m := *o.lastMetrics
	// derive the id against the current catalog so a same-second retrain
	// gets a fresh artifact path instead of overwriting the previous one
	existing, err := o.registry.ListModels(ctx, m.Currency)
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, e := range existing {
		taken[e.ModelID] = true
	}
	modelID := models.NextModelID(m.Family, m.Currency, m.TrainedAt, taken)
	artifactPath := path.Join(m.Currency, modelID+".json")
	if err := o.artifacts.WriteArtifact(ctx, artifactPath, data); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	entry, err := o.registry.Register(ctx, m.Family, m.Currency, artifactPath, m, m.WindowStart, m.WindowEnd, setActive)
	if err != nil {
		return "", fmt.Errorf("register model: %w", err)
	}
	if setActive && o.metrics != nil {
		o.metrics.RecordActiveModel(m.Currency, string(m.Family), entry.ModelID)
	}
	return artifactPath, nil
}

// CompareModels trains each requested family independently, continuing
// past individual failures, and returns the per-family metrics plus the
// family with the lowest MAPE.
func (o *TrainingOrchestrator) CompareModels(ctx context.Context, history []models.RatePoint, currency string, families []models.ModelFamily) (map[models.ModelFamily]models.TrainingMetrics, models.ModelFamily, error) {
	if len(families) == 0 {
		families = []models.ModelFamily{models.FamilyTrend, models.FamilyAR, models.FamilyLagReg}
	}
	results := make(map[models.ModelFamily]models.TrainingMetrics, len(families))
	failures := make(map[models.ModelFamily]error)

	for _, f := range families {
		trainer, err := o.newTrainer(f)
		if err != nil {
			failures[f] = err
			continue
		}
		metrics, err := trainer.Train(ctx, history, currency, o.cfg.TrainRatio)
		if err != nil {
			failures[f] = err
			if o.logger != nil {
				o.logger.Warn("comparison: family failed",
					applogger.String("family", string(f)),
					applogger.String("currency", currency),
					applogger.Error(err),
				)
			}
			continue
		}
		results[f] = metrics
	}
	if len(results) == 0 {
		return nil, "", fmt.Errorf("comparison failed for all %d families on %s", len(families), currency)
	}

	ranked := make([]models.ModelFamily, 0, len(results))
	for f := range results {
		ranked = append(ranked, f)
	}
	sort.Slice(ranked, func(i, j int) bool { return results[ranked[i]].MAPE < results[ranked[j]].MAPE })

	if o.logger != nil {
		for i, f := range ranked {
			o.logger.Info("comparison result",
				applogger.Int("rank", i+1),
				applogger.String("family", string(f)),
				applogger.Any("mape", results[f].MAPE),
				applogger.Any("directional_accuracy", results[f].DirectionalAccuracy),
			)
		}
		for f, err := range failures {
			o.logger.Warn("comparison: excluded family",
				applogger.String("family", string(f)),
				applogger.Error(err),
			)
		}
	}
	return results, ranked[0], nil
}

// TrainAllCurrencies runs the single-currency train+save flow per
// currency, isolating failures so one bad dataset does not abort the
// batch. It reports which currencies failed and why.
func (o *TrainingOrchestrator) TrainAllCurrencies(ctx context.Context, currencies []string, setActive bool) (int, map[string]error) {
	failures := make(map[string]error)
	trained := 0
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -o.cfg.LookbackDays)

	for _, currency := range currencies {
		history, err := o.rates.GetHistory(ctx, currency, from, to)
		if err != nil {
			failures[currency] = fmt.Errorf("fetch history: %w", err)
			continue
		}
		if _, err := o.Train(ctx, history, currency, o.cfg.TrainRatio); err != nil {
			failures[currency] = err
			continue
		}
		if _, err := o.Save(ctx, setActive); err != nil {
			failures[currency] = err
			continue
		}
		trained++
	}

	if o.logger != nil {
		o.logger.Info("batch training finished",
			applogger.Int("trained", trained),
			applogger.Int("failed", len(failures)),
		)
		for currency, err := range failures {
			o.logger.Error("batch training: currency failed",
				applogger.String("currency", currency),
				applogger.Error(err),
			)
		}
	}
	return trained, failures
}

func (o *TrainingOrchestrator) newTrainer(family models.ModelFamily) (domsvc.Trainer, error) {
	if family == models.FamilyEnsemble {
		return training.NewEnsembleTrainer(o.cfg.EnsembleMembers, o.cfg.Weighting, o.logger)
	}
	return training.New(family)
}
