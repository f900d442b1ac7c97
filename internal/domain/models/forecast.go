package models

import "time"

// ForecastPoint is a single future prediction with its confidence band.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// ForecastMetadata carries the provenance of a forecast. A forecast
// without provenance is not valid output, so every ForecastResult
// embeds one.
type ForecastMetadata struct {
	Family       ModelFamily  `json:"family"`
	ModelID      string       `json:"model_id"`
	TrainedAt    time.Time    `json:"trained_at"`
	MAPE         float64      `json:"mape"`
	RMSE         float64      `json:"rmse"`
	TrainSamples int          `json:"train_samples"`
	TestSamples  int          `json:"test_samples"`
	Strategy     ForecastMode `json:"strategy"`
	WindowStart  time.Time    `json:"window_start"`
	WindowEnd    time.Time    `json:"window_end"`
}

// ForecastResult is the output of a single predict call.
type ForecastResult struct {
	Currency   string           `json:"currency"`
	Horizon    int              `json:"horizon"`
	Confidence float64          `json:"confidence"`
	Points     []ForecastPoint  `json:"points"`
	Metadata   ForecastMetadata `json:"metadata"`
	// Ensemble carries member weights, raw contributions and the trust
	// score when a composite model served the forecast; nil otherwise.
	Ensemble  *EnsembleForecast `json:"ensemble,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// MemberContribution records one ensemble member's raw forecast next to
// the weight it received, for explainability.
type MemberContribution struct {
	Family ModelFamily     `json:"family"`
	Weight float64         `json:"weight"`
	Points []ForecastPoint `json:"points"`
}

// EnsembleForecast is derived on every predict call and never persisted.
type EnsembleForecast struct {
	Currency      string               `json:"currency"`
	Points        []ForecastPoint      `json:"points"`
	Weights       map[ModelFamily]float64 `json:"weights"`
	Contributions []MemberContribution `json:"contributions"`
	// TrustScore in [0,1] summarizes member agreement: 1 means members
	// forecast identically, values near 0 mean they diverge widely.
	TrustScore float64 `json:"trust_score"`
}
