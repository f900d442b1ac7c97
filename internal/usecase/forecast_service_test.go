package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"RateCast/internal/domain/models"
	"RateCast/internal/registry"
)

// trainAndRegister fits a trend model on 120 synthetic points and
// activates it, returning the stores a ForecastService needs.
func trainAndRegister(t *testing.T) (*memCatalog, *memArtifacts, string) {
	t.Helper()
	o, catalog, artifacts := newTestOrchestrator(models.FamilyTrend, nil)
	ctx := context.Background()
	if _, err := o.Train(ctx, driftingSeries(120), "USD", 0.8); err != nil {
		t.Fatalf("train: %v", err)
	}
	artifactPath, err := o.Save(ctx, true)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return catalog, artifacts, artifactPath
}

func TestGenerateForecastNoModel(t *testing.T) {
	reg := registry.New(&memCatalog{}, nil, nil)
	obs := newCountingMetrics()
	svc := NewForecastService(reg, newMemArtifacts(), obs, nil)

	_, err := svc.GenerateForecast(context.Background(), "GBP", 6, 0.8, nil)
	var notFound *models.ModelNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
	if notFound.Currency != "GBP" {
		t.Fatalf("error names currency %q, want GBP", notFound.Currency)
	}
	if obs.errors["model_not_found"] != 1 {
		t.Fatalf("model_not_found count = %d, want 1", obs.errors["model_not_found"])
	}
}

func TestGenerateForecastActiveModel(t *testing.T) {
	catalog, artifacts, _ := trainAndRegister(t)
	reg := registry.New(catalog, nil, nil)
	svc := NewForecastService(reg, artifacts, nil, nil)

	result, err := svc.GenerateForecast(context.Background(), "USD", 7, 0.9, nil)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(result.Points) != 7 {
		t.Fatalf("got %d points, want 7", len(result.Points))
	}
	if result.Currency != "USD" || result.Horizon != 7 || result.Confidence != 0.9 {
		t.Fatalf("result identity wrong: %+v", result)
	}
	if result.Metadata.ModelID != catalog.catalog["USD"][0].ModelID {
		t.Fatalf("metadata model id %q != registered %q",
			result.Metadata.ModelID, catalog.catalog["USD"][0].ModelID)
	}
	for i, p := range result.Points {
		if p.Lower > p.Value || p.Value > p.Upper {
			t.Fatalf("point %d bounds do not bracket value: %+v", i, p)
		}
		if i > 0 && !result.Points[i].Date.After(result.Points[i-1].Date) {
			t.Fatalf("forecast dates not strictly increasing at %d", i)
		}
	}
}

func TestGenerateForecastCachesLoadedModel(t *testing.T) {
	catalog, artifacts, _ := trainAndRegister(t)
	reg := registry.New(catalog, nil, nil)
	obs := newCountingMetrics()
	svc := NewForecastService(reg, artifacts, obs, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.GenerateForecast(ctx, "USD", 5, 0.8, nil); err != nil {
			t.Fatalf("forecast %d: %v", i, err)
		}
	}
	if obs.cacheMisses["model"] != 1 {
		t.Fatalf("model cache misses = %d, want 1", obs.cacheMisses["model"])
	}
	if obs.cacheHits["model"] != 2 {
		t.Fatalf("model cache hits = %d, want 2", obs.cacheHits["model"])
	}

	svc.ClearCache()
	if _, err := svc.GenerateForecast(ctx, "USD", 5, 0.8, nil); err != nil {
		t.Fatalf("forecast after clear: %v", err)
	}
	if obs.cacheMisses["model"] != 2 {
		t.Fatalf("expected a reload after ClearCache, misses = %d", obs.cacheMisses["model"])
	}
}

func TestGenerateForecastCorruptArtifact(t *testing.T) {
	catalog, artifacts, artifactPath := trainAndRegister(t)
	artifacts.blobs[artifactPath] = []byte("{not a model artifact")
	reg := registry.New(catalog, nil, nil)
	obs := newCountingMetrics()
	svc := NewForecastService(reg, artifacts, obs, nil)

	_, err := svc.GenerateForecast(context.Background(), "USD", 5, 0.8, nil)
	var loadErr *models.ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}
	if loadErr.Path != artifactPath {
		t.Fatalf("error names path %q, want %q", loadErr.Path, artifactPath)
	}
	if obs.errors["model_load"] != 1 {
		t.Fatalf("model_load count = %d, want 1", obs.errors["model_load"])
	}
}

func TestGenerateForecastConcurrentWithContext(t *testing.T) {
	o, catalog, artifacts := newTestOrchestrator(models.FamilyLagReg, nil)
	ctx := context.Background()
	if _, err := o.Train(ctx, driftingSeries(120), "USD", 0.8); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := o.Save(ctx, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	reg := registry.New(catalog, nil, nil)
	svc := NewForecastService(reg, artifacts, nil, nil)
	series := driftingSeries(160)
	recent := series[len(series)-40:]

	// all goroutines share the one cached recursive model
	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				res, err := svc.GenerateForecast(ctx, "USD", 7, 0.8, recent)
				if err != nil {
					errCh <- err
					return
				}
				if len(res.Points) != 7 {
					errCh <- errors.New("short forecast")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		t.Fatalf("concurrent forecast: %v", err)
	}
}

func TestGenerateForecastPicksUpNewActivation(t *testing.T) {
	catalog, artifacts, _ := trainAndRegister(t)
	reg := registry.New(catalog, nil, nil)
	svc := NewForecastService(reg, artifacts, nil, nil)
	ctx := context.Background()

	first, err := svc.GenerateForecast(ctx, "USD", 5, 0.8, nil)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}

	// Register a second version through the orchestrator sharing the
	// same stores; activation must flip without restarting the service.
	cfg := OrchestratorConfig{Family: models.FamilyAR, TrainRatio: 0.8}
	o := NewTrainingOrchestrator(cfg, reg, artifacts, nil, nil, nil)
	if _, err := o.Train(ctx, driftingSeries(200), "USD", 0.8); err != nil {
		t.Fatalf("train second: %v", err)
	}
	if _, err := o.Save(ctx, true); err != nil {
		t.Fatalf("save second: %v", err)
	}

	second, err := svc.GenerateForecast(ctx, "USD", 5, 0.8, nil)
	if err != nil {
		t.Fatalf("forecast after activation: %v", err)
	}
	if second.Metadata.ModelID == first.Metadata.ModelID {
		t.Fatalf("forecast still served by %s after a newer activation", first.Metadata.ModelID)
	}
	if second.Metadata.Family != models.FamilyAR {
		t.Fatalf("expected ar model to serve, got %s", second.Metadata.Family)
	}
}
