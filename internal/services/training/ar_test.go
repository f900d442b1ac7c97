package training

import (
	"context"
	"errors"
	"math"
	"testing"

	"RateCast/internal/domain/models"
)

func TestARTrainerInsufficientData(t *testing.T) {
	tr := NewARTrainer()
	_, err := tr.Train(context.Background(), syntheticSeries(minARSamples-1, 100, 0, 0.5), "USD", 0.8)

	var insufficient *models.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestARTrainAndPredict(t *testing.T) {
	history := syntheticSeries(200, 100, 0.02, 0.5)
	tr := NewARTrainer()

	m, err := tr.Train(context.Background(), history, "USD", 0.8)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.MAPE > 10 {
		t.Fatalf("AR should track an oscillating drift, MAPE = %v", m.MAPE)
	}

	res, err := tr.Predict(14, 0.8)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(res.Points) != 14 {
		t.Fatalf("expected 14 points, got %d", len(res.Points))
	}
	if !assertWidening(intervalWidths(res.Points)) {
		t.Fatal("psi-weight variance must not shrink with horizon")
	}
	// forecasts of a ~100-level series should stay in a sane band
	for i, p := range res.Points {
		if p.Value < 50 || p.Value > 200 {
			t.Fatalf("point %d implausible: %v", i, p.Value)
		}
	}
}

func TestARSnapshotRestoreRoundTrip(t *testing.T) {
	history := syntheticSeries(150, 100, 0.01, 0.3)
	tr := NewARTrainer()
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}
	want, err := tr.Predict(7, 0.8)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	artifact, err := tr.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if artifact.Family != models.FamilyAR {
		t.Fatalf("unexpected artifact family %s", artifact.Family)
	}
	restored, err := FromArtifact(artifact)
	if err != nil {
		t.Fatalf("FromArtifact: %v", err)
	}
	got, err := restored.Predict(7, 0.8)
	if err != nil {
		t.Fatalf("restored Predict: %v", err)
	}
	for i := range want.Points {
		if math.Abs(want.Points[i].Value-got.Points[i].Value) > 1e-12 {
			t.Fatalf("point %d diverged after round trip", i)
		}
	}
}
