package training

import (
	"context"
	"errors"
	"math"
	"testing"

	"RateCast/internal/domain/models"
)

func TestTrendTrainerInsufficientData(t *testing.T) {
	tr := NewTrendTrainer()
	_, err := tr.Train(context.Background(), syntheticSeries(10, 100, 0.1, 0), "USD", 0.8)

	var insufficient *models.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Need != minTrendSamples || insufficient.Got != 10 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
}

func TestTrendPredictBeforeTrain(t *testing.T) {
	tr := NewTrendTrainer()
	if _, err := tr.Predict(7, 0.8); !errors.Is(err, models.ErrNotTrained) {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
}

func TestTrendTrainAndPredict(t *testing.T) {
	history := syntheticSeries(120, 100, 0.1, 0.2)
	tr := NewTrendTrainer()

	m, err := tr.Train(context.Background(), history, "USD", 0.8)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.Family != models.FamilyTrend || m.Currency != "USD" {
		t.Fatalf("unexpected metrics identity: %+v", m)
	}
	if m.TrainSamples+m.TestSamples != len(history) {
		t.Fatalf("split mismatch: %d + %d != %d", m.TrainSamples, m.TestSamples, len(history))
	}
	if m.MAPE > 5 {
		t.Fatalf("trend should fit a near-linear series, MAPE = %v", m.MAPE)
	}

	res, err := tr.Predict(7, 0.8)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(res.Points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(res.Points))
	}
	last := history[len(history)-1]
	for i, p := range res.Points {
		if !p.Date.After(last.Date) {
			t.Fatalf("point %d date %v not after window end %v", i, p.Date, last.Date)
		}
		if p.Lower > p.Value || p.Value > p.Upper {
			t.Fatalf("point %d bounds do not bracket value: %+v", i, p)
		}
	}
	// positive drift should carry into the forecast
	if res.Points[6].Value <= res.Points[0].Value {
		t.Fatalf("expected upward forecast, got %v .. %v", res.Points[0].Value, res.Points[6].Value)
	}
	if !assertWidening(intervalWidths(res.Points)) {
		t.Fatal("expected non-decreasing interval widths")
	}
	if res.Metadata.Strategy != models.ModeNative {
		t.Fatalf("expected native strategy, got %s", res.Metadata.Strategy)
	}
}

func TestTrendSnapshotRestoreRoundTrip(t *testing.T) {
	history := syntheticSeries(90, 100, 0.05, 0.1)
	tr := NewTrendTrainer()
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}
	want, err := tr.Predict(10, 0.9)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	artifact, err := tr.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored, err := FromArtifact(artifact)
	if err != nil {
		t.Fatalf("FromArtifact: %v", err)
	}
	got, err := restored.Predict(10, 0.9)
	if err != nil {
		t.Fatalf("restored Predict: %v", err)
	}

	for i := range want.Points {
		if math.Abs(want.Points[i].Value-got.Points[i].Value) > 1e-12 {
			t.Fatalf("point %d diverged after round trip: %v != %v", i, want.Points[i].Value, got.Points[i].Value)
		}
		if math.Abs(want.Points[i].Upper-got.Points[i].Upper) > 1e-12 {
			t.Fatalf("point %d interval diverged after round trip", i)
		}
	}
}
