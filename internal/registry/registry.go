// Package registry is the single source of truth for which model version
// is live per currency. Only the registry writes the catalog; trainers
// and the forecast service read through it.
package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
	applogger "RateCast/pkg/logger"
)

// ModelRegistry owns the model catalog and its persistence. Structural
// mutations re-serialize the whole catalog so any subsequent reader
// observes the single-active invariant atomically. It assumes a single
// writer; concurrent reads are safe.
type ModelRegistry struct {
	store  domrepo.CatalogStore
	events domrepo.EventPublisher
	logger *applogger.Logger
}

func New(store domrepo.CatalogStore, events domrepo.EventPublisher, l *applogger.Logger) *ModelRegistry {
	return &ModelRegistry{store: store, events: events, logger: l}
}

// Register appends a new catalog entry for a trained model. With
// setActive, the new entry becomes the only active one for its currency
// within the same catalog write.
func (r *ModelRegistry) Register(ctx context.Context, family models.ModelFamily, currency, artifactPath string, metrics models.TrainingMetrics, windowStart, windowEnd time.Time, setActive bool) (models.ModelMetadata, error) {
	catalog, err := r.store.ReadCatalog(ctx)
	if err != nil {
		return models.ModelMetadata{}, fmt.Errorf("read catalog: %w", err)
	}

	trainedAt := metrics.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}
	taken := make(map[string]bool, len(catalog[currency]))
	for _, e := range catalog[currency] {
		taken[e.ModelID] = true
	}
	entry := models.ModelMetadata{
		ModelID:      models.NextModelID(family, currency, trainedAt, taken),
		Family:       family,
		Currency:     currency,
		TrainedAt:    trainedAt,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Metrics:      metrics.AsMap(),
		ArtifactPath: artifactPath,
		IsActive:     setActive,
	}

	entries := catalog[currency]
	if setActive {
		for i := range entries {
			entries[i].IsActive = false
		}
	}
	catalog[currency] = append(entries, entry)

	if err := r.store.WriteCatalog(ctx, catalog); err != nil {
		return models.ModelMetadata{}, fmt.Errorf("write catalog: %w", err)
	}

	r.publish(ctx, models.EventModelRegistered, entry)
	if setActive {
		r.publish(ctx, models.EventModelActivated, entry)
	}
	if r.logger != nil {
		r.logger.Info("model registered",
			applogger.String("model_id", entry.ModelID),
			applogger.String("currency", currency),
			applogger.Bool("active", setActive),
		)
	}
	return entry, nil
}

// SetActive flips the active flag to the named version and off all its
// siblings, in one catalog write. Returns false if the model id does not
// exist for the currency.
func (r *ModelRegistry) SetActive(ctx context.Context, currency, modelID string) (bool, error) {
	catalog, err := r.store.ReadCatalog(ctx)
	if err != nil {
		return false, fmt.Errorf("read catalog: %w", err)
	}
	entries := catalog[currency]
	found := -1
	for i := range entries {
		if entries[i].ModelID == modelID {
			found = i
			break
		}
	}
	if found < 0 {
		return false, nil
	}
	for i := range entries {
		entries[i].IsActive = i == found
	}
	catalog[currency] = entries
	if err := r.store.WriteCatalog(ctx, catalog); err != nil {
		return false, fmt.Errorf("write catalog: %w", err)
	}
	r.publish(ctx, models.EventModelActivated, entries[found])
	return true, nil
}

// GetActiveModel returns the active entry for a currency. When no entry
// is flagged active (e.g. after a crash mid-write) it falls back to the
// most recently trained entry instead of failing; the fallback is logged
// so catalog corruption stays observable.
func (r *ModelRegistry) GetActiveModel(ctx context.Context, currency string) (*models.ModelMetadata, error) {
	catalog, err := r.store.ReadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	entries := catalog[currency]
	if len(entries) == 0 {
		return nil, nil
	}
	for i := range entries {
		if entries[i].IsActive {
			e := entries[i]
			return &e, nil
		}
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.TrainedAt.After(latest.TrainedAt) {
			latest = e
		}
	}
	if r.logger != nil {
		r.logger.Warn("no active model flagged, falling back to most recent",
			applogger.String("currency", currency),
			applogger.String("model_id", latest.ModelID),
		)
	}
	return &latest, nil
}

// GetBestModel returns the entry with the minimum value of a
// lower-is-better metric (mape, rmse, mae).
func (r *ModelRegistry) GetBestModel(ctx context.Context, currency, metric string) (*models.ModelMetadata, error) {
	switch metric {
	case "mape", "rmse", "mae":
	default:
		return nil, fmt.Errorf("metric %q is not a lower-is-better metric", metric)
	}
	catalog, err := r.store.ReadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	entries := catalog[currency]
	var best *models.ModelMetadata
	for i := range entries {
		v, ok := entries[i].Metrics[metric]
		if !ok {
			continue
		}
		if best == nil || v < best.Metrics[metric] {
			e := entries[i]
			best = &e
		}
	}
	return best, nil
}

// ListModels returns all registered versions for a currency, newest first.
func (r *ModelRegistry) ListModels(ctx context.Context, currency string) ([]models.ModelMetadata, error) {
	catalog, err := r.store.ReadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	entries := append([]models.ModelMetadata(nil), catalog[currency]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].TrainedAt.After(entries[j].TrainedAt) })
	return entries, nil
}

// CleanupOldModels removes entries and their artifacts beyond the N most
// recent per currency. The active entry survives regardless of age.
func (r *ModelRegistry) CleanupOldModels(ctx context.Context, artifacts domrepo.ArtifactStore, keepPerCurrency int) (int, error) {
	if keepPerCurrency < 1 {
		keepPerCurrency = 1
	}
	catalog, err := r.store.ReadCatalog(ctx)
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}

	removed := 0
	for currency, entries := range catalog {
		if len(entries) <= keepPerCurrency {
			continue
		}
		sorted := append([]models.ModelMetadata(nil), entries...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].TrainedAt.After(sorted[j].TrainedAt) })

		keep := make([]models.ModelMetadata, 0, keepPerCurrency+1)
		for i, e := range sorted {
			if i < keepPerCurrency || e.IsActive {
				keep = append(keep, e)
				continue
			}
			if err := artifacts.DeleteArtifact(ctx, e.ArtifactPath); err != nil && r.logger != nil {
				r.logger.Warn("cleanup: artifact delete failed",
					applogger.String("model_id", e.ModelID),
					applogger.Error(err),
				)
			}
			r.publish(ctx, models.EventModelPruned, e)
			removed++
		}
		// restore chronological order for the catalog document
		sort.Slice(keep, func(i, j int) bool { return keep[i].TrainedAt.Before(keep[j].TrainedAt) })
		catalog[currency] = keep
	}
	if removed == 0 {
		return 0, nil
	}
	if err := r.store.WriteCatalog(ctx, catalog); err != nil {
		return 0, fmt.Errorf("write catalog: %w", err)
	}
	return removed, nil
}

func (r *ModelRegistry) publish(ctx context.Context, eventType string, e models.ModelMetadata) {
	if r.events == nil {
		return
	}
	ev := &models.ModelEvent{
		Type:      eventType,
		Currency:  e.Currency,
		ModelID:   e.ModelID,
		Family:    e.Family,
		Metrics:   e.Metrics,
		Timestamp: time.Now().UTC(),
	}
	if err := r.events.Publish(ctx, ev); err != nil && r.logger != nil {
		r.logger.Warn("lifecycle event publish failed",
			applogger.String("type", eventType),
			applogger.String("model_id", e.ModelID),
			applogger.Error(err),
		)
	}
}
