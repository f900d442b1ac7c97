package training

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"RateCast/internal/domain/models"
	domsvc "RateCast/internal/domain/service"
)

const (
	minTrendSamples = 30

	// Holt smoothing parameters. Fixed rather than searched: hyperparameter
	// tuning is out of scope and these behave well on daily FX series.
	holtAlpha = 0.8
	holtBeta  = 0.2
)

// TrendTrainer fits a Holt linear trend decomposition. It predicts
// natively over the whole horizon with analytically widening intervals.
type TrendTrainer struct {
	currency    string
	windowStart time.Time
	windowEnd   time.Time

	level     float64
	trend     float64
	sigma     float64 // one-step-ahead residual std on the fit window
	lastDate  time.Time
	residuals []float64

	metrics models.TrainingMetrics
	trained bool
}

type trendState struct {
	Alpha    float64   `json:"alpha"`
	Beta     float64   `json:"beta"`
	Level    float64   `json:"level"`
	Trend    float64   `json:"trend"`
	Sigma    float64   `json:"sigma"`
	LastDate time.Time `json:"last_date"`
}

func NewTrendTrainer() *TrendTrainer { return &TrendTrainer{} }

func (t *TrendTrainer) Family() models.ModelFamily { return models.FamilyTrend }

func (t *TrendTrainer) Train(ctx context.Context, history []models.RatePoint, currency string, trainRatio float64) (models.TrainingMetrics, error) {
	if len(history) < minTrendSamples {
		return models.TrainingMetrics{}, &models.InsufficientDataError{
			Family: models.FamilyTrend, Currency: currency, Need: minTrendSamples, Got: len(history),
		}
	}
	start := time.Now()

	trainSet, testSet := chronoSplit(history, trainRatio)
	level, trend, _ := fitHolt(models.RateValues(trainSet))

	// evaluate on the held-out tail
	actual := models.RateValues(testSet)
	predicted := make([]float64, len(actual))
	for i := range predicted {
		predicted[i] = level + float64(i+1)*trend
	}
	em := Evaluate(actual, predicted)

	residuals := make([]float64, len(actual))
	for i := range actual {
		residuals[i] = actual[i] - predicted[i]
	}

	// refit on the full window so production forecasts start from the
	// newest observation
	t.level, t.trend, t.sigma = fitHolt(models.RateValues(history))
	t.currency = currency
	t.windowStart = history[0].Date
	t.windowEnd = history[len(history)-1].Date
	t.lastDate = t.windowEnd
	t.residuals = residuals
	t.metrics = models.TrainingMetrics{
		Family:              models.FamilyTrend,
		Currency:            currency,
		RMSE:                em.RMSE,
		MAE:                 em.MAE,
		MAPE:                em.MAPE,
		DirectionalAccuracy: em.DirectionalAccuracy,
		TrainSamples:        len(trainSet),
		TestSamples:         len(testSet),
		TrainingDuration:    time.Since(start),
		WindowStart:         t.windowStart,
		WindowEnd:           t.windowEnd,
		TrainedAt:           time.Now().UTC(),
	}
	t.trained = true
	return t.metrics, nil
}

func (t *TrendTrainer) Predict(horizon int, confidence float64) (models.ForecastResult, error) {
	if !t.trained {
		return models.ForecastResult{}, models.ErrNotTrained
	}
	if horizon <= 0 {
		return models.ForecastResult{}, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	z := zScore(confidence)
	dates := futureDates(t.lastDate, horizon)

	points := make([]models.ForecastPoint, horizon)
	cumVar := 1.0
	for i := 0; i < horizon; i++ {
		if i > 0 {
			c := holtAlpha * (1 + float64(i)*holtBeta)
			cumVar += c * c
		}
		value := t.level + float64(i+1)*t.trend
		margin := z * t.sigma * math.Sqrt(cumVar)
		points[i] = models.ForecastPoint{Date: dates[i], Value: value, Lower: value - margin, Upper: value + margin}
	}
	return t.result(horizon, confidence, points), nil
}

func (t *TrendTrainer) result(horizon int, confidence float64, points []models.ForecastPoint) models.ForecastResult {
	return models.ForecastResult{
		Currency:   t.currency,
		Horizon:    horizon,
		Confidence: confidence,
		Points:     points,
		Metadata: models.ForecastMetadata{
			Family:       models.FamilyTrend,
			TrainedAt:    t.metrics.TrainedAt,
			MAPE:         t.metrics.MAPE,
			RMSE:         t.metrics.RMSE,
			TrainSamples: t.metrics.TrainSamples,
			TestSamples:  t.metrics.TestSamples,
			Strategy:     models.ModeNative,
			WindowStart:  t.windowStart,
			WindowEnd:    t.windowEnd,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (t *TrendTrainer) Snapshot() (*models.ModelArtifact, error) {
	if !t.trained {
		return nil, models.ErrNotTrained
	}
	state, err := json.Marshal(trendState{
		Alpha: holtAlpha, Beta: holtBeta,
		Level: t.level, Trend: t.trend, Sigma: t.sigma, LastDate: t.lastDate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal trend state: %w", err)
	}
	return &models.ModelArtifact{
		Family:      models.FamilyTrend,
		Currency:    t.currency,
		WindowStart: t.windowStart,
		WindowEnd:   t.windowEnd,
		State:       state,
		Residuals:   t.residuals,
		Metrics:     t.metrics,
		MigratedAt:  time.Now().UTC(),
	}, nil
}

func (t *TrendTrainer) Restore(a *models.ModelArtifact) error {
	var st trendState
	if err := json.Unmarshal(a.State, &st); err != nil {
		return fmt.Errorf("unmarshal trend state: %w", err)
	}
	t.currency = a.Currency
	t.windowStart = a.WindowStart
	t.windowEnd = a.WindowEnd
	t.level = st.Level
	t.trend = st.Trend
	t.sigma = st.Sigma
	t.lastDate = st.LastDate
	t.residuals = a.Residuals
	t.metrics = a.Metrics
	t.trained = true
	return nil
}

// fitHolt runs Holt's linear exponential smoothing over values and
// returns the final level, trend and the one-step-ahead residual std.
func fitHolt(values []float64) (level, trend, sigma float64) {
	if len(values) < 2 {
		if len(values) == 1 {
			return values[0], 0, 0
		}
		return 0, 0, 0
	}
	level = values[0]
	trend = values[1] - values[0]
	residuals := make([]float64, 0, len(values)-1)
	for _, v := range values[1:] {
		forecast := level + trend
		residuals = append(residuals, v-forecast)
		prevLevel := level
		level = holtAlpha*v + (1-holtAlpha)*(level+trend)
		trend = holtBeta*(level-prevLevel) + (1-holtBeta)*trend
	}
	return level, trend, stddev(residuals)
}

var _ domsvc.Trainer = (*TrendTrainer)(nil)
