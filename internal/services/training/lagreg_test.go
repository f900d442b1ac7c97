package training

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"RateCast/internal/domain/models"
)

func TestLagRegInsufficientData(t *testing.T) {
	tr := NewLagRegTrainer()
	_, err := tr.Train(context.Background(), syntheticSeries(minLagRegSamples-1, 100, 0, 0.5), "USD", 0.8)

	var insufficient *models.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Need != minLagRegSamples {
		t.Fatalf("unexpected need: %d", insufficient.Need)
	}
}

func TestLagRegWideningIntervals(t *testing.T) {
	history := syntheticSeries(180, 100, 0.03, 0.4)
	tr := NewLagRegTrainer()
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}

	res, err := tr.PredictWithResidualStd(10, 0.8, 0.5)
	if err != nil {
		t.Fatalf("PredictWithResidualStd: %v", err)
	}
	widths := intervalWidths(res.Points)
	if !assertWidening(widths) {
		t.Fatal("expected non-decreasing interval widths")
	}
	// sqrt(step+1) law: width at step i is sqrt(i+1) times step 0
	for i, w := range widths {
		want := widths[0] * math.Sqrt(float64(i)+1)
		if math.Abs(w-want) > 1e-9 {
			t.Fatalf("step %d width %v, want %v", i, w, want)
		}
	}
	if res.Metadata.Strategy != models.ModeRecursive {
		t.Fatalf("expected recursive strategy, got %s", res.Metadata.Strategy)
	}
}

func TestLagRegClipSubstitutesRandomWalk(t *testing.T) {
	// Craft a model whose raw prediction explodes: clipping must replace
	// it with a small random-walk step around the last observed value.
	history := syntheticSeries(180, 100, 0.03, 0.4)
	tr := NewLagRegTrainer()
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}
	artifact, err := tr.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	broken := NewLagRegTrainer()
	if err := broken.Restore(artifact); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	// blow up the intercept so every raw prediction exceeds the 50% band
	brokenCoef := make([]float64, len(tr.coef))
	copy(brokenCoef, tr.coef)
	brokenCoef[0] += 1e6
	broken.coef = brokenCoef

	last := broken.LastObserved()
	values := broken.forecastValues(5)
	for i, v := range values {
		if math.Abs(v-last)/math.Abs(last) > lagRegClipFraction {
			t.Fatalf("step %d escaped the clip: %v vs last %v", i, v, last)
		}
		last = v
	}
}

func TestLagRegPredictSeeded(t *testing.T) {
	history := syntheticSeries(180, 100, 0.03, 0.4)
	tr := NewLagRegTrainer()
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}
	trainLast := tr.LastObserved()

	fresh := make([]models.RatePoint, 30)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range fresh {
		fresh[i] = models.RatePoint{Currency: "USD", Date: start.AddDate(0, 0, i), Rate: 120 + float64(i)*0.01}
	}

	res, err := tr.PredictSeeded(3, 0.8, 0.5, fresh)
	if err != nil {
		t.Fatalf("PredictSeeded: %v", err)
	}
	if !res.Points[0].Date.After(fresh[len(fresh)-1].Date) {
		t.Fatalf("forecast should continue from the seeded window, got %v", res.Points[0].Date)
	}

	// seeding is per call: the trainer's own state must not change
	if got := tr.LastObserved(); math.Abs(got-trainLast) > 1e-12 {
		t.Fatalf("trainer buffer mutated by seeded predict: %v vs %v", got, trainLast)
	}
	plain, err := tr.Predict(3, 0.8)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !plain.Points[0].Date.Equal(history[len(history)-1].Date.AddDate(0, 0, 1)) {
		t.Fatalf("unseeded forecast no longer starts at the training window edge: %v", plain.Points[0].Date)
	}

	// context shorter than the lag depth is ignored
	short, err := tr.PredictSeeded(3, 0.8, 0.5, fresh[:2])
	if err != nil {
		t.Fatalf("PredictSeeded short: %v", err)
	}
	if !short.Points[0].Date.Equal(plain.Points[0].Date) {
		t.Fatalf("short context should fall back to the training buffer, got %v", short.Points[0].Date)
	}
}

func TestLagRegPredictSeededConcurrent(t *testing.T) {
	history := syntheticSeries(180, 100, 0.03, 0.4)
	tr := NewLagRegTrainer()
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}

	fresh := make([]models.RatePoint, 40)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range fresh {
		fresh[i] = models.RatePoint{Currency: "USD", Date: start.AddDate(0, 0, i), Rate: 118 + float64(i)*0.02}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := tr.PredictSeeded(7, 0.8, 0.5, fresh); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		t.Fatalf("concurrent PredictSeeded: %v", err)
	}
}

func TestLagRegRestoreRejectsMalformedState(t *testing.T) {
	history := syntheticSeries(180, 100, 0.03, 0.4)
	tr := NewLagRegTrainer()
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}
	artifact, err := tr.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	artifact.State = []byte(`{"lags":5,"coef":[1,2],"sigma":0.1,"buffer":[1,2,3,4,5]}`)
	if err := NewLagRegTrainer().Restore(artifact); err == nil {
		t.Fatal("expected malformed state to be rejected")
	}
}
