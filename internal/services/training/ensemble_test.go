package training

import (
	"context"
	"math"
	"testing"

	"RateCast/internal/domain/models"
)

func TestEnsembleCannotContainItself(t *testing.T) {
	_, err := NewEnsembleTrainer([]models.ModelFamily{models.FamilyTrend, models.FamilyEnsemble}, WeightEqual, nil)
	if err == nil {
		t.Fatal("expected constructor to reject a nested ensemble")
	}
}

func TestEnsembleSingleSurvivor(t *testing.T) {
	// 32 points: enough for trend, below the lagreg minimum, so one of
	// the two members fails to fit and training continues with the other.
	history := syntheticSeries(32, 100, 0.1, 0.2)
	tr, err := NewEnsembleTrainer([]models.ModelFamily{models.FamilyTrend, models.FamilyLagReg}, WeightInverseMAPE, nil)
	if err != nil {
		t.Fatalf("NewEnsembleTrainer: %v", err)
	}

	m, err := tr.Train(context.Background(), history, "USD", 0.8)
	if err != nil {
		t.Fatalf("Train should survive one failing member: %v", err)
	}
	if m.Family != models.FamilyEnsemble {
		t.Fatalf("unexpected family %s", m.Family)
	}

	weights := tr.Weights()
	if len(weights) != 1 {
		t.Fatalf("expected a single surviving member, got %v", weights)
	}
	if w := weights[models.FamilyTrend]; math.Abs(w-1) > 1e-12 {
		t.Fatalf("sole survivor must carry weight 1.0, got %v", w)
	}
}

func TestEnsembleRetrainRecoversFailedMember(t *testing.T) {
	tr, err := NewEnsembleTrainer([]models.ModelFamily{models.FamilyTrend, models.FamilyLagReg}, WeightInverseMAPE, nil)
	if err != nil {
		t.Fatalf("NewEnsembleTrainer: %v", err)
	}
	ctx := context.Background()

	// first call: 32 points, lagreg fails and trend carries the ensemble
	if _, err := tr.Train(ctx, syntheticSeries(32, 100, 0.1, 0.2), "USD", 0.8); err != nil {
		t.Fatalf("first Train: %v", err)
	}
	if len(tr.Weights()) != 1 {
		t.Fatalf("expected one survivor on short data, got %v", tr.Weights())
	}

	// second call on enough data: the failed member must be back
	if _, err := tr.Train(ctx, syntheticSeries(120, 100, 0.1, 0.2), "USD", 0.8); err != nil {
		t.Fatalf("second Train: %v", err)
	}
	weights := tr.Weights()
	if len(weights) != 2 {
		t.Fatalf("retrain should recover the failed member, got %v", weights)
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("weights must renormalize after recovery, sum %v", sum)
	}
}

func TestEnsembleAllMembersFail(t *testing.T) {
	history := syntheticSeries(5, 100, 0, 0)
	tr, err := NewEnsembleTrainer(nil, WeightEqual, nil)
	if err != nil {
		t.Fatalf("NewEnsembleTrainer: %v", err)
	}
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err == nil {
		t.Fatal("expected training to fail when every member fails")
	}
}

func TestEnsembleWeightsSumToOne(t *testing.T) {
	history := syntheticSeries(200, 100, 0.03, 0.4)
	for _, mode := range []WeightingMode{WeightEqual, WeightInverseMAPE} {
		tr, err := NewEnsembleTrainer(nil, mode, nil)
		if err != nil {
			t.Fatalf("NewEnsembleTrainer: %v", err)
		}
		if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
			t.Fatalf("Train(%s): %v", mode, err)
		}

		sum := 0.0
		for _, w := range tr.Weights() {
			if w < 0 {
				t.Fatalf("%s produced a negative weight", mode)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%s weights sum to %v, want 1", mode, sum)
		}
	}
}

func TestEnsemblePredictEnsemble(t *testing.T) {
	history := syntheticSeries(200, 100, 0.03, 0.4)
	tr, err := NewEnsembleTrainer(nil, WeightInverseMAPE, nil)
	if err != nil {
		t.Fatalf("NewEnsembleTrainer: %v", err)
	}
	if _, err := tr.Train(context.Background(), history, "USD", 0.8); err != nil {
		t.Fatalf("Train: %v", err)
	}

	ef, err := tr.PredictEnsemble(7, 0.8)
	if err != nil {
		t.Fatalf("PredictEnsemble: %v", err)
	}
	if len(ef.Points) != 7 {
		t.Fatalf("expected 7 combined points, got %d", len(ef.Points))
	}
	if len(ef.Contributions) != 3 {
		t.Fatalf("expected 3 member contributions, got %d", len(ef.Contributions))
	}
	if ef.TrustScore < 0 || ef.TrustScore > 1 {
		t.Fatalf("trust score out of range: %v", ef.TrustScore)
	}
	for i, p := range ef.Points {
		if p.Lower > p.Value || p.Value > p.Upper {
			t.Fatalf("combined point %d bounds do not bracket value: %+v", i, p)
		}
	}

	// the plain Predict surface must carry the same explainability
	res, err := tr.Predict(7, 0.8)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Ensemble == nil {
		t.Fatal("ensemble forecast result should carry member explainability")
	}
	if len(res.Ensemble.Contributions) != 3 {
		t.Fatalf("expected 3 contributions in the result, got %d", len(res.Ensemble.Contributions))
	}
	if res.Ensemble.TrustScore < 0 || res.Ensemble.TrustScore > 1 {
		t.Fatalf("result trust score out of range: %v", res.Ensemble.TrustScore)
	}
}

func TestEnsembleSnapshotRestoreRoundTrip(t *testing.T) {
	history := syntheticSeries(200, 100, 0.03, 0.4)
	tr, err := NewEnsembleTrainer(nil, WeightInverseMAPE, nil)
	if err != nil {
		t.Fatalf("NewEnsembleTrainer: %v", err)
	}
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
	restored, err := FromArtifact(artifact)
	if err != nil {
		t.Fatalf("FromArtifact: %v", err)
	}
	got, err := restored.Predict(7, 0.8)
	if err != nil {
		t.Fatalf("restored Predict: %v", err)
	}
	for i := range want.Points {
		if math.Abs(want.Points[i].Value-got.Points[i].Value) > 1e-9 {
			t.Fatalf("point %d diverged after round trip", i)
		}
	}
}
