package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"RateCast/internal/domain/models"
)

type memCatalog struct {
	catalog models.Catalog
}

func (c *memCatalog) ReadCatalog(ctx context.Context) (models.Catalog, error) {
	out := make(models.Catalog, len(c.catalog))
	for cur, entries := range c.catalog {
		cp := make([]models.ModelMetadata, len(entries))
		copy(cp, entries)
		out[cur] = cp
	}
	return out, nil
}

func (c *memCatalog) WriteCatalog(ctx context.Context, cat models.Catalog) error {
	c.catalog = cat
	return nil
}

type memArtifacts struct {
	blobs map[string][]byte
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{blobs: make(map[string][]byte)}
}

func (a *memArtifacts) WriteArtifact(ctx context.Context, path string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	a.blobs[path] = cp
	return nil
}

func (a *memArtifacts) ReadArtifact(ctx context.Context, path string) ([]byte, error) {
	data, ok := a.blobs[path]
	if !ok {
		return nil, errors.New("artifact not found: " + path)
	}
	return data, nil
}

func (a *memArtifacts) DeleteArtifact(ctx context.Context, path string) error {
	delete(a.blobs, path)
	return nil
}

// memHistory serves a fixed series per currency; missing currencies fail.
type memHistory struct {
	series map[string][]models.RatePoint
}

func (h *memHistory) GetHistory(ctx context.Context, currency string, from, to time.Time) ([]models.RatePoint, error) {
	pts, ok := h.series[currency]
	if !ok {
		return nil, errors.New("no history for " + currency)
	}
	return pts, nil
}

func (h *memHistory) GetLatestN(ctx context.Context, currency string, n int) ([]models.RatePoint, error) {
	pts, ok := h.series[currency]
	if !ok {
		return nil, errors.New("no history for " + currency)
	}
	if len(pts) > n {
		pts = pts[len(pts)-n:]
	}
	return pts, nil
}

func (h *memHistory) Health(ctx context.Context) error { return nil }

// countingMetrics tallies calls so tests can assert on cache behavior
// without a real Prometheus registry.
type countingMetrics struct {
	forecasts   int
	errors      map[string]int
	cacheHits   map[string]int
	cacheMisses map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		errors:      make(map[string]int),
		cacheHits:   make(map[string]int),
		cacheMisses: make(map[string]int),
	}
}

func (m *countingMetrics) RecordForecast(currency, family string)              { m.forecasts++ }
func (m *countingMetrics) RecordLatency(op string, seconds float64)            {}
func (m *countingMetrics) RecordTrainingDuration(family string, secs float64)  {}
func (m *countingMetrics) RecordModelMAPE(currency, family string, m2 float64) {}
func (m *countingMetrics) RecordActiveModel(currency, family, modelID string)  {}
func (m *countingMetrics) RecordError(kind string)                             { m.errors[kind]++ }
func (m *countingMetrics) RecordCacheHit(cache string)                         { m.cacheHits[cache]++ }
func (m *countingMetrics) RecordCacheMiss(cache string)                        { m.cacheMisses[cache]++ }
func (m *countingMetrics) RecordRateIngested(currency string, rate float64)    {}

// driftingSeries builds n daily points with a linear drift and a weekly
// wave, which every trainer family can fit.
func driftingSeries(n int) []models.RatePoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]models.RatePoint, n)
	for i := 0; i < n; i++ {
		pts[i] = models.RatePoint{
			Currency: "USD",
			Date:     start.AddDate(0, 0, i),
			Rate:     100 + 0.3*float64(i) + 1.5*math.Sin(2*math.Pi*float64(i)/7),
		}
	}
	return pts
}
