package registry

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"RateCast/internal/domain/models"
)

// memCatalog is an in-memory CatalogStore that deep-copies on both ends,
// mirroring the isolation a file store gives.
type memCatalog struct {
	catalog models.Catalog
	writes  int
}

func (s *memCatalog) ReadCatalog(context.Context) (models.Catalog, error) {
	out := models.Catalog{}
	for k, v := range s.catalog {
		out[k] = append([]models.ModelMetadata(nil), v...)
	}
	return out, nil
}

func (s *memCatalog) WriteCatalog(_ context.Context, c models.Catalog) error {
	s.writes++
	out := models.Catalog{}
	for k, v := range c {
		out[k] = append([]models.ModelMetadata(nil), v...)
	}
	s.catalog = out
	return nil
}

type memEvents struct {
	events []*models.ModelEvent
}

func (s *memEvents) Publish(_ context.Context, ev *models.ModelEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *memEvents) Close() error { return nil }

type memArtifacts struct {
	deleted []string
}

func (s *memArtifacts) WriteArtifact(context.Context, string, []byte) error { return nil }
func (s *memArtifacts) ReadArtifact(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("not found")
}
func (s *memArtifacts) DeleteArtifact(_ context.Context, path string) error {
	s.deleted = append(s.deleted, path)
	return nil
}

func metricsAt(trainedAt time.Time, mape float64) models.TrainingMetrics {
	return models.TrainingMetrics{
		Family:    models.FamilyTrend,
		Currency:  "EUR",
		MAPE:      mape,
		RMSE:      mape / 100,
		MAE:       mape / 150,
		TrainedAt: trainedAt,
	}
}

func countActive(entries []models.ModelMetadata) int {
	n := 0
	for _, e := range entries {
		if e.IsActive {
			n++
		}
	}
	return n
}

func TestRegisterKeepsSingleActive(t *testing.T) {
	store := &memCatalog{}
	reg := New(store, nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var last models.ModelMetadata
	for i := 0; i < 3; i++ {
		entry, err := reg.Register(ctx, models.FamilyTrend, "EUR", fmt.Sprintf("EUR/v%d.json", i),
			metricsAt(base.Add(time.Duration(i)*time.Hour), 2.0), base, base.AddDate(0, 0, 90), true)
		if err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
		last = entry
	}

	if n := countActive(store.catalog["EUR"]); n != 1 {
		t.Fatalf("expected exactly 1 active entry, got %d", n)
	}
	active, err := reg.GetActiveModel(ctx, "EUR")
	if err != nil {
		t.Fatalf("GetActiveModel: %v", err)
	}
	if active == nil || active.ModelID != last.ModelID {
		t.Fatalf("expected the last registered model to be active, got %+v", active)
	}
}

func TestSingleActiveUnderRandomSequence(t *testing.T) {
	store := &memCatalog{}
	reg := New(store, nil, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 40; i++ {
		switch {
		case len(ids) > 0 && rng.Intn(3) == 0:
			ok, err := reg.SetActive(ctx, "EUR", ids[rng.Intn(len(ids))])
			if err != nil || !ok {
				t.Fatalf("SetActive: ok=%v err=%v", ok, err)
			}
		default:
			entry, err := reg.Register(ctx, models.FamilyTrend, "EUR", "EUR/x.json",
				metricsAt(base.Add(time.Duration(i)*time.Minute), 2.0), base, base, rng.Intn(2) == 0)
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			ids = append(ids, entry.ModelID)
		}
		if n := countActive(store.catalog["EUR"]); n > 1 {
			t.Fatalf("invariant violated after op %d: %d active entries", i, n)
		}
	}
}

func TestSetActiveUnknownModel(t *testing.T) {
	reg := New(&memCatalog{}, nil, nil)
	ok, err := reg.SetActive(context.Background(), "EUR", "trend_EUR_nope")
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if ok {
		t.Fatal("expected false for an unknown model id")
	}
}

func TestGetActiveModelEmpty(t *testing.T) {
	reg := New(&memCatalog{}, nil, nil)
	meta, err := reg.GetActiveModel(context.Background(), "JPY")
	if err != nil {
		t.Fatalf("GetActiveModel: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil for empty catalog, got %+v", meta)
	}
}

func TestGetActiveModelFallsBackToMostRecent(t *testing.T) {
	store := &memCatalog{}
	reg := New(store, nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := reg.Register(ctx, models.FamilyTrend, "EUR", "EUR/x.json",
			metricsAt(base.Add(time.Duration(i)*time.Hour), 2.0), base, base, false); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	meta, err := reg.GetActiveModel(ctx, "EUR")
	if err != nil {
		t.Fatalf("GetActiveModel: %v", err)
	}
	if meta == nil {
		t.Fatal("fallback should return the most recent entry, got nil")
	}
	if !meta.TrainedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected the newest entry, got trained_at %v", meta.TrainedAt)
	}
}

func TestGetBestModel(t *testing.T) {
	store := &memCatalog{}
	reg := New(store, nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mapes := []float64{3.0, 1.5, 2.2}
	var bestID string
	for i, mape := range mapes {
		entry, err := reg.Register(ctx, models.FamilyTrend, "EUR", "EUR/x.json",
			metricsAt(base.Add(time.Duration(i)*time.Hour), mape), base, base, false)
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if mape == 1.5 {
			bestID = entry.ModelID
		}
	}

	best, err := reg.GetBestModel(ctx, "EUR", "mape")
	if err != nil {
		t.Fatalf("GetBestModel: %v", err)
	}
	if best == nil || best.ModelID != bestID {
		t.Fatalf("expected model with lowest mape, got %+v", best)
	}

	if _, err := reg.GetBestModel(ctx, "EUR", "directional_accuracy"); err == nil {
		t.Fatal("higher-is-better metrics must be rejected")
	}
}

func TestListModelsNewestFirst(t *testing.T) {
	store := &memCatalog{}
	reg := New(store, nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := reg.Register(ctx, models.FamilyTrend, "EUR", "EUR/x.json",
			metricsAt(base.Add(time.Duration(i)*time.Hour), 2.0), base, base, false); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	list, err := reg.ListModels(ctx, "EUR")
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].TrainedAt.After(list[i-1].TrainedAt) {
			t.Fatal("expected newest-first ordering")
		}
	}
}

func TestCleanupKeepsActiveAndRecent(t *testing.T) {
	store := &memCatalog{}
	events := &memEvents{}
	reg := New(store, events, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// oldest entry is the active one
	oldest, err := reg.Register(ctx, models.FamilyTrend, "EUR", "EUR/v0.json",
		metricsAt(base, 2.0), base, base, true)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 1; i < 6; i++ {
		if _, err := reg.Register(ctx, models.FamilyTrend, "EUR", fmt.Sprintf("EUR/v%d.json", i),
			metricsAt(base.Add(time.Duration(i)*time.Hour), 2.0), base, base, false); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	artifacts := &memArtifacts{}
	removed, err := reg.CleanupOldModels(ctx, artifacts, 2)
	if err != nil {
		t.Fatalf("CleanupOldModels: %v", err)
	}
	// 6 entries, keep 2 newest plus the old active one
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if len(store.catalog["EUR"]) != 3 {
		t.Fatalf("expected 3 surviving entries, got %d", len(store.catalog["EUR"]))
	}
	if len(artifacts.deleted) != 3 {
		t.Fatalf("expected 3 artifacts deleted, got %v", artifacts.deleted)
	}

	survivors := store.catalog["EUR"]
	foundActive := false
	for _, e := range survivors {
		if e.ModelID == oldest.ModelID {
			foundActive = true
		}
	}
	if !foundActive {
		t.Fatal("active entry must survive cleanup regardless of age")
	}

	pruned := 0
	for _, ev := range events.events {
		if ev.Type == models.EventModelPruned {
			pruned++
		}
	}
	if pruned != 3 {
		t.Fatalf("expected 3 pruned events, got %d", pruned)
	}
}

func TestRegisterPublishesEvents(t *testing.T) {
	events := &memEvents{}
	reg := New(&memCatalog{}, events, nil)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := reg.Register(context.Background(), models.FamilyTrend, "EUR", "EUR/v0.json",
		metricsAt(base, 2.0), base, base, true); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if len(events.events) != 2 {
		t.Fatalf("expected registered+activated events, got %d", len(events.events))
	}
	if events.events[0].Type != models.EventModelRegistered || events.events[1].Type != models.EventModelActivated {
		t.Fatalf("unexpected event order: %s, %s", events.events[0].Type, events.events[1].Type)
	}
}

func TestActivationLeavesSiblingMetadataIntact(t *testing.T) {
	store := &memCatalog{}
	reg := New(store, nil, nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	v1, err := reg.Register(ctx, models.FamilyTrend, "EUR", "EUR/v1.json",
		metricsAt(base, 2.0), base.AddDate(0, 0, -90), base, true)
	if err != nil {
		t.Fatalf("Register v1: %v", err)
	}
	v2, err := reg.Register(ctx, models.FamilyAR, "EUR", "EUR/v2.json",
		metricsAt(base.Add(time.Hour), 1.5), base.AddDate(0, 0, -90), base, true)
	if err != nil {
		t.Fatalf("Register v2: %v", err)
	}

	// registering and activating v2 may only touch v1's active flag
	got := findEntry(t, store, "EUR", v1.ModelID)
	if got.IsActive {
		t.Fatal("v1 should have been deactivated")
	}
	got.IsActive = v1.IsActive
	if !reflect.DeepEqual(got, v1) {
		t.Fatalf("v1 metadata changed by sibling activation:\n got %+v\nwant %+v", got, v1)
	}

	// flipping back must leave v2's metadata untouched the same way
	ok, err := reg.SetActive(ctx, "EUR", v1.ModelID)
	if err != nil || !ok {
		t.Fatalf("SetActive: ok=%v err=%v", ok, err)
	}
	got = findEntry(t, store, "EUR", v2.ModelID)
	if got.IsActive {
		t.Fatal("v2 should have been deactivated")
	}
	got.IsActive = v2.IsActive
	if !reflect.DeepEqual(got, v2) {
		t.Fatalf("v2 metadata changed by SetActive:\n got %+v\nwant %+v", got, v2)
	}
}

func TestRegisterSameSecondKeepsDistinctIDs(t *testing.T) {
	store := &memCatalog{}
	reg := New(store, nil, nil)
	ctx := context.Background()
	trainedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := make(map[string]bool)
	var first string
	for i := 0; i < 3; i++ {
		entry, err := reg.Register(ctx, models.FamilyTrend, "EUR", fmt.Sprintf("EUR/r%d.json", i),
			metricsAt(trainedAt, 2.0), trainedAt.AddDate(0, 0, -90), trainedAt, false)
		if err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
		if ids[entry.ModelID] {
			t.Fatalf("duplicate model id on same-second retrain: %s", entry.ModelID)
		}
		ids[entry.ModelID] = true
		if i == 0 {
			first = entry.ModelID
		}
	}
	if !ids[first+"_2"] || !ids[first+"_3"] {
		t.Fatalf("expected suffixed ids for same-second retrains, got %v", ids)
	}
}

func findEntry(t *testing.T, store *memCatalog, currency, modelID string) models.ModelMetadata {
	t.Helper()
	for _, e := range store.catalog[currency] {
		if e.ModelID == modelID {
			return e
		}
	}
	t.Fatalf("model %s not found for %s", modelID, currency)
	return models.ModelMetadata{}
}
