package usecase

import (
	"context"
	"errors"
	"testing"

	"RateCast/internal/domain/models"
	"RateCast/internal/registry"
)

func newTestOrchestrator(family models.ModelFamily, history *memHistory) (*TrainingOrchestrator, *memCatalog, *memArtifacts) {
	catalog := &memCatalog{}
	artifacts := newMemArtifacts()
	reg := registry.New(catalog, nil, nil)
	cfg := OrchestratorConfig{Family: family, TrainRatio: 0.8, LookbackDays: 365}
	return NewTrainingOrchestrator(cfg, reg, artifacts, history, nil, nil), catalog, artifacts
}

func TestSaveBeforeTrain(t *testing.T) {
	o, _, _ := newTestOrchestrator(models.FamilyTrend, nil)

	_, err := o.Save(context.Background(), true)
	if !errors.Is(err, models.ErrNothingToSave) {
		t.Fatalf("expected ErrNothingToSave, got %v", err)
	}
}

func TestTrainAndSaveRoundTrip(t *testing.T) {
	o, catalog, artifacts := newTestOrchestrator(models.FamilyTrend, nil)
	ctx := context.Background()

	metrics, err := o.Train(ctx, driftingSeries(120), "USD", 0.8)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if metrics.Family != models.FamilyTrend || metrics.Currency != "USD" {
		t.Fatalf("unexpected metrics identity: %+v", metrics)
	}

	artifactPath, err := o.Save(ctx, true)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := artifacts.ReadArtifact(ctx, artifactPath); err != nil {
		t.Fatalf("artifact missing at %q: %v", artifactPath, err)
	}

	entries := catalog.catalog["USD"]
	if len(entries) != 1 {
		t.Fatalf("expected 1 catalog entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ArtifactPath != artifactPath {
		t.Fatalf("catalog path %q != saved path %q", entry.ArtifactPath, artifactPath)
	}
	if !entry.IsActive {
		t.Fatalf("setActive=true but entry inactive")
	}
	want := models.NewModelID(models.FamilyTrend, "USD", metrics.TrainedAt)
	if entry.ModelID != want {
		t.Fatalf("model id %q, want %q", entry.ModelID, want)
	}
}

func TestSaveTwiceKeepsBothArtifacts(t *testing.T) {
	o, catalog, artifacts := newTestOrchestrator(models.FamilyTrend, nil)
	ctx := context.Background()

	if _, err := o.Train(ctx, driftingSeries(120), "USD", 0.8); err != nil {
		t.Fatalf("train: %v", err)
	}
	firstPath, err := o.Save(ctx, true)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	secondPath, err := o.Save(ctx, true)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if firstPath == secondPath {
		t.Fatalf("same-second saves must not share an artifact path: %s", firstPath)
	}
	for _, p := range []string{firstPath, secondPath} {
		if _, err := artifacts.ReadArtifact(ctx, p); err != nil {
			t.Fatalf("artifact missing at %q: %v", p, err)
		}
	}
	entries := catalog.catalog["USD"]
	if len(entries) != 2 {
		t.Fatalf("expected 2 catalog entries, got %d", len(entries))
	}
	if entries[0].ModelID == entries[1].ModelID {
		t.Fatalf("catalog entries share model id %s", entries[0].ModelID)
	}
	if entries[0].ArtifactPath != firstPath || entries[1].ArtifactPath != secondPath {
		t.Fatalf("catalog paths %q/%q do not match saved paths %q/%q",
			entries[0].ArtifactPath, entries[1].ArtifactPath, firstPath, secondPath)
	}
}

func TestSaveWithoutActivation(t *testing.T) {
	o, catalog, _ := newTestOrchestrator(models.FamilyTrend, nil)
	ctx := context.Background()

	if _, err := o.Train(ctx, driftingSeries(120), "USD", 0.8); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := o.Save(ctx, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if catalog.catalog["USD"][0].IsActive {
		t.Fatalf("setActive=false but entry active")
	}
}

func TestCompareModelsIsolatesFailures(t *testing.T) {
	o, _, _ := newTestOrchestrator(models.FamilyTrend, nil)
	ctx := context.Background()

	// 32 points: enough for trend and ar, too short for lagreg.
	results, best, err := o.CompareModels(ctx, driftingSeries(32), "USD",
		[]models.ModelFamily{models.FamilyTrend, models.FamilyAR, models.FamilyLagReg})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 surviving families, got %d: %v", len(results), results)
	}
	if _, ok := results[models.FamilyLagReg]; ok {
		t.Fatalf("lagreg should have been excluded for insufficient data")
	}
	bestMAPE := results[best].MAPE
	for f, m := range results {
		if m.MAPE < bestMAPE {
			t.Fatalf("family %s has MAPE %.4f below winner %s (%.4f)", f, m.MAPE, best, bestMAPE)
		}
	}
}

func TestCompareModelsAllFail(t *testing.T) {
	o, _, _ := newTestOrchestrator(models.FamilyTrend, nil)

	_, _, err := o.CompareModels(context.Background(), driftingSeries(5), "USD",
		[]models.ModelFamily{models.FamilyTrend, models.FamilyAR})
	if err == nil {
		t.Fatalf("expected error when every family fails")
	}
}

func TestTrainAllCurrenciesPartialFailure(t *testing.T) {
	history := &memHistory{series: map[string][]models.RatePoint{
		"USD": driftingSeries(120),
		"JPY": driftingSeries(10), // too short for any family
	}}
	o, catalog, _ := newTestOrchestrator(models.FamilyTrend, history)

	trained, failures := o.TrainAllCurrencies(context.Background(), []string{"USD", "JPY", "EUR"}, true)
	if trained != 1 {
		t.Fatalf("trained = %d, want 1", trained)
	}
	if len(failures) != 2 {
		t.Fatalf("failures = %v, want JPY and EUR", failures)
	}
	var insufficient *models.InsufficientDataError
	if !errors.As(failures["JPY"], &insufficient) {
		t.Fatalf("JPY failure = %v, want InsufficientDataError", failures["JPY"])
	}
	if failures["EUR"] == nil {
		t.Fatalf("expected fetch failure for EUR")
	}
	if len(catalog.catalog["USD"]) != 1 {
		t.Fatalf("USD should have been registered despite sibling failures")
	}
}
