package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
	"RateCast/internal/registry"
	applogger "RateCast/pkg/logger"
)

// ForecastService serves predictions from registered models. It is the
// only component allowed in the request-serving path and it never trains
// or writes: a missing model is an error, not a trigger to fit one.
//
// Loaded models are cached per (currency, model_id) under a lock so the
// service is safe for concurrent GenerateForecast calls.
type ForecastService struct {
	registry  *registry.ModelRegistry
	artifacts domrepo.ArtifactStore
	metrics   domrepo.Metrics
	logger    *applogger.Logger

	mu    sync.RWMutex
	cache map[string]*loadedModel
}

func NewForecastService(reg *registry.ModelRegistry, artifacts domrepo.ArtifactStore, metrics domrepo.Metrics, l *applogger.Logger) *ForecastService {
	return &ForecastService{
		registry:  reg,
		artifacts: artifacts,
		metrics:   metrics,
		logger:    l,
		cache:     make(map[string]*loadedModel),
	}
}

// GenerateForecast loads the active model for currency and predicts
// horizon future points at the given confidence level. The registry is
// re-read on every call so a newly activated model is picked up without
// a restart. historicalContext, when non-nil, seeds the recursive
// feature buffer for this call only, with observations newer than the
// training window; it is ignored by native families. Cached models are
// never mutated, so concurrent calls may share them.
func (s *ForecastService) GenerateForecast(ctx context.Context, currency string, horizon int, confidence float64, historicalContext []models.RatePoint) (models.ForecastResult, error) {
	start := time.Now()

	meta, err := s.registry.GetActiveModel(ctx, currency)
	if err != nil {
		return models.ForecastResult{}, fmt.Errorf("lookup active model: %w", err)
	}
	if meta == nil {
		if s.metrics != nil {
			s.metrics.RecordError("model_not_found")
		}
		return models.ForecastResult{}, &models.ModelNotFoundError{Currency: currency}
	}

	lm, err := s.load(ctx, meta)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("model_load")
		}
		return models.ForecastResult{}, err
	}

	result, err := lm.strategy.Forecast(horizon, confidence, historicalContext)
	if err != nil {
		return models.ForecastResult{}, fmt.Errorf("predict %s with %s: %w", currency, meta.ModelID, err)
	}
	result.Metadata.ModelID = meta.ModelID

	if s.metrics != nil {
		s.metrics.RecordForecast(currency, string(meta.Family))
		s.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	}
	if s.logger != nil {
		s.logger.Debug("forecast generated",
			applogger.String("currency", currency),
			applogger.String("model_id", meta.ModelID),
			applogger.Int("horizon", horizon),
			applogger.String("strategy", string(result.Metadata.Strategy)),
		)
	}
	return result, nil
}

// ClearCache drops all cached models, forcing artifact reloads. Called
// after a known retrain instead of waiting for the next registry re-read
// to surface a new model id.
func (s *ForecastService) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]*loadedModel)
	s.mu.Unlock()
}

func (s *ForecastService) load(ctx context.Context, meta *models.ModelMetadata) (*loadedModel, error) {
	key := meta.Currency + "|" + meta.ModelID

	s.mu.RLock()
	lm, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		if s.metrics != nil {
			s.metrics.RecordCacheHit("model")
		}
		return lm, nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss("model")
	}

	data, err := s.artifacts.ReadArtifact(ctx, meta.ArtifactPath)
	if err != nil {
		return nil, &models.ModelLoadError{ModelID: meta.ModelID, Path: meta.ArtifactPath, Err: err}
	}
	var artifact models.ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, &models.ModelLoadError{ModelID: meta.ModelID, Path: meta.ArtifactPath, Err: err}
	}
	lm, err = newLoadedModel(&artifact)
	if err != nil {
		return nil, &models.ModelLoadError{ModelID: meta.ModelID, Path: meta.ArtifactPath, Err: err}
	}

	s.mu.Lock()
	s.cache[key] = lm
	s.mu.Unlock()
	return lm, nil
}
