package models

import "time"

// ModelFamily identifies one of the supported forecasting model families.
type ModelFamily string

const (
	FamilyTrend    ModelFamily = "trend"    // Holt linear trend decomposition
	FamilyAR       ModelFamily = "ar"       // autoregressive, least-squares fit
	FamilyLagReg   ModelFamily = "lagreg"   // regression on lag/rolling features
	FamilyEnsemble ModelFamily = "ensemble" // weighted composite of the above
)

// ForecastMode distinguishes how a family produces multi-step forecasts.
type ForecastMode string

const (
	// ModeNative: the model emits a horizon-length sequence with its own
	// calibrated uncertainty.
	ModeNative ForecastMode = "native"
	// ModeRecursive: each step's point forecast is fed back into the
	// feature history to predict the next step.
	ModeRecursive ForecastMode = "recursive"
)

// ModeForFamily returns the forecast strategy a family requires.
func ModeForFamily(f ModelFamily) ForecastMode {
	if f == FamilyLagReg {
		return ModeRecursive
	}
	return ModeNative
}

// TrainingMetrics is the immutable evaluation record produced once per
// trained model. It is never mutated after Train returns it.
type TrainingMetrics struct {
	Family              ModelFamily   `json:"family"`
	Currency            string        `json:"currency"`
	RMSE                float64       `json:"rmse"`
	MAE                 float64       `json:"mae"`
	MAPE                float64       `json:"mape"`
	DirectionalAccuracy float64       `json:"directional_accuracy"`
	TrainSamples        int           `json:"train_samples"`
	TestSamples         int           `json:"test_samples"`
	TrainingDuration    time.Duration `json:"training_duration"`
	WindowStart         time.Time     `json:"window_start"`
	WindowEnd           time.Time     `json:"window_end"`
	TrainedAt           time.Time     `json:"trained_at"`
}

// AsMap flattens metrics for registry persistence.
func (m TrainingMetrics) AsMap() map[string]float64 {
	return map[string]float64{
		"rmse":                 m.RMSE,
		"mae":                  m.MAE,
		"mape":                 m.MAPE,
		"directional_accuracy": m.DirectionalAccuracy,
		"train_samples":        float64(m.TrainSamples),
		"test_samples":         float64(m.TestSamples),
	}
}

// ModelArtifact is the serialized form of a fitted model. The byte layout
// is owned by the training package; everything else treats it as opaque.
// Artifacts are write-once: a retrain produces a new artifact, never an
// in-place update.
type ModelArtifact struct {
	Family      ModelFamily     `json:"family"`
	Currency    string          `json:"currency"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	State       []byte          `json:"state"`     // family-specific fitted parameters
	Residuals   []float64       `json:"residuals"` // errors on the evaluation window, optional
	Metrics     TrainingMetrics `json:"metrics"`
	MigratedAt  time.Time       `json:"migrated_at"`
}
