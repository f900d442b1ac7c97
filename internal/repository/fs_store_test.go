package repository

import (
	"context"
	"testing"
	"time"

	"RateCast/internal/domain/models"
)

func TestFSStoreCatalogRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()

	c, err := store.ReadCatalog(ctx)
	if err != nil {
		t.Fatalf("ReadCatalog on empty store: %v", err)
	}
	if len(c) != 0 {
		t.Fatalf("expected empty catalog, got %d entries", len(c))
	}

	trained := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c = models.Catalog{
		"USD": {
			{
				ModelID:  models.NewModelID(models.FamilyTrend, "USD", trained),
				Family:   models.FamilyTrend,
				Currency: "USD",
				IsActive: true,
			},
		},
	}
	if err := store.WriteCatalog(ctx, c); err != nil {
		t.Fatalf("WriteCatalog: %v", err)
	}

	got, err := store.ReadCatalog(ctx)
	if err != nil {
		t.Fatalf("ReadCatalog: %v", err)
	}
	if len(got["USD"]) != 1 {
		t.Fatalf("expected 1 USD model, got %d", len(got["USD"]))
	}
	if got["USD"][0].ModelID != c["USD"][0].ModelID {
		t.Fatalf("model id mismatch: got %s want %s", got["USD"][0].ModelID, c["USD"][0].ModelID)
	}
	if !got["USD"][0].IsActive {
		t.Fatal("expected active flag to survive the round trip")
	}
}

func TestFSStoreArtifacts(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()

	payload := []byte(`{"family":"trend"}`)
	if err := store.WriteArtifact(ctx, "USD/trend_USD_20260301T120000.json", payload); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}

	got, err := store.ReadArtifact(ctx, "USD/trend_USD_20260301T120000.json")
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("artifact mismatch: got %s", got)
	}

	if err := store.DeleteArtifact(ctx, "USD/trend_USD_20260301T120000.json"); err != nil {
		t.Fatalf("DeleteArtifact: %v", err)
	}
	if _, err := store.ReadArtifact(ctx, "USD/trend_USD_20260301T120000.json"); err == nil {
		t.Fatal("expected read of deleted artifact to fail")
	}

	// deleting a missing artifact is not an error
	if err := store.DeleteArtifact(ctx, "USD/missing.json"); err != nil {
		t.Fatalf("DeleteArtifact on missing file: %v", err)
	}
}

func TestFSStoreRejectsEscapingPaths(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()

	for _, path := range []string{"../outside.json", "/etc/passwd", "a/../../b.json"} {
		if err := store.WriteArtifact(ctx, path, []byte("x")); err == nil {
			t.Fatalf("expected write to %q to be rejected", path)
		}
	}
}
