package training

import (
	"math"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
		wantMAPE  float64
		wantDA    float64
	}{
		{
			name:      "perfect constant series",
			actual:    []float64{10, 10, 10},
			predicted: []float64{10, 10, 10},
			wantMAPE:  0,
			wantDA:    0, // no actual moves to score
		},
		{
			name:      "perfect tracking of moves",
			actual:    []float64{1, 2, 3, 2},
			predicted: []float64{1, 2, 3, 2},
			wantMAPE:  0,
			wantDA:    1,
		},
		{
			name:      "all directions wrong",
			actual:    []float64{1, 2, 1, 2},
			predicted: []float64{2, 1, 2, 1},
			wantMAPE:  75,
			wantDA:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.actual, tt.predicted)
			if math.Abs(got.MAPE-tt.wantMAPE) > 1e-9 {
				t.Fatalf("MAPE = %v, want %v", got.MAPE, tt.wantMAPE)
			}
			if math.Abs(got.DirectionalAccuracy-tt.wantDA) > 1e-9 {
				t.Fatalf("DirectionalAccuracy = %v, want %v", got.DirectionalAccuracy, tt.wantDA)
			}
		})
	}
}

func TestEvaluateSkipsZeroActuals(t *testing.T) {
	got := Evaluate([]float64{0, 10}, []float64{5, 11})
	// only the second term contributes: |11-10|/10 = 10%
	if math.Abs(got.MAPE-10) > 1e-9 {
		t.Fatalf("MAPE = %v, want 10", got.MAPE)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	got := Evaluate(nil, nil)
	if got.RMSE != 0 || got.MAE != 0 || got.MAPE != 0 || got.DirectionalAccuracy != 0 {
		t.Fatalf("expected zero metrics, got %+v", got)
	}
}

func TestZScore(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{0.80, 1.2816},
		{0.90, 1.6449},
		{0.95, 1.9600},
		{0.99, 2.5758},
	}
	for _, tt := range tests {
		got := zScore(tt.confidence)
		if math.Abs(got-tt.want) > 1e-3 {
			t.Fatalf("zScore(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
	// out-of-range confidence falls back to 95%
	if got := zScore(1.5); math.Abs(got-1.96) > 1e-9 {
		t.Fatalf("zScore(1.5) = %v, want 1.96", got)
	}
}

func TestResidualStdOf(t *testing.T) {
	if got := ResidualStdOf([]float64{1}); got != 0 {
		t.Fatalf("single residual should give 0, got %v", got)
	}
	got := ResidualStdOf([]float64{-1, 1, -1, 1})
	if math.Abs(got-1) > 0.16 {
		t.Fatalf("unexpected std %v", got)
	}
}
