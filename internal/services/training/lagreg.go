package training

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"RateCast/internal/domain/models"
	domsvc "RateCast/internal/domain/service"
)

const (
	lagRegLags       = 5
	minLagRegSamples = lagRegLags + 30
	lagRegBufferLen  = 30

	// A step that moves more than half the last observed value is a
	// numerical failure, not a forecast; it is replaced by a small
	// random-walk step so the recursion stays stable.
	lagRegClipFraction = 0.5
	lagRegWalkStep     = 0.01

	// interval fallback when no residual spread is available: a band
	// proportional to the newest observation
	residualFallbackFraction = 0.02
)

// LagRegTrainer fits a linear regression over lag, rolling-mean and
// day-of-week features. Multi-step prediction is recursive: each point
// forecast is appended to the feature history to build the next step's
// features, so interval width grows with sqrt(step+1).
type LagRegTrainer struct {
	currency    string
	windowStart time.Time
	windowEnd   time.Time

	coef      []float64
	sigma     float64
	buffer    []float64 // trailing observations, ascending
	lastDate  time.Time
	residuals []float64

	metrics models.TrainingMetrics
	trained bool
}

type lagRegState struct {
	Lags     int       `json:"lags"`
	Coef     []float64 `json:"coef"`
	Sigma    float64   `json:"sigma"`
	Buffer   []float64 `json:"buffer"`
	LastDate time.Time `json:"last_date"`
}

func NewLagRegTrainer() *LagRegTrainer { return &LagRegTrainer{} }

func (t *LagRegTrainer) Family() models.ModelFamily { return models.FamilyLagReg }

func (t *LagRegTrainer) Train(ctx context.Context, history []models.RatePoint, currency string, trainRatio float64) (models.TrainingMetrics, error) {
	if len(history) < minLagRegSamples {
		return models.TrainingMetrics{}, &models.InsufficientDataError{
			Family: models.FamilyLagReg, Currency: currency, Need: minLagRegSamples, Got: len(history),
		}
	}
	start := time.Now()

	trainSet, testSet := chronoSplit(history, trainRatio)
	coef, _, err := fitLagReg(trainSet)
	if err != nil {
		return models.TrainingMetrics{}, fmt.Errorf("fit lagreg for %s: %w", currency, err)
	}

	// evaluate recursively, exactly as production prediction runs
	evalModel := &LagRegTrainer{
		coef:    coef,
		buffer:  tailOf(models.RateValues(trainSet), lagRegBufferLen),
		lastDate: trainSet[len(trainSet)-1].Date,
		trained: true,
	}
	predicted := evalModel.forecastValues(len(testSet))
	actual := models.RateValues(testSet)
	em := Evaluate(actual, predicted)

	residuals := make([]float64, len(actual))
	for i := range actual {
		residuals[i] = actual[i] - predicted[i]
	}

	// refit on the full window for production state
	t.coef, t.sigma, err = fitLagReg(history)
	if err != nil {
		return models.TrainingMetrics{}, fmt.Errorf("refit lagreg for %s: %w", currency, err)
	}
	if s := stddev(residuals); s > 0 {
		t.sigma = s
	}
	t.buffer = tailOf(models.RateValues(history), lagRegBufferLen)
	t.currency = currency
	t.windowStart = history[0].Date
	t.windowEnd = history[len(history)-1].Date
	t.lastDate = t.windowEnd
	t.residuals = residuals
	t.metrics = models.TrainingMetrics{
		Family:              models.FamilyLagReg,
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

func (t *LagRegTrainer) Predict(horizon int, confidence float64) (models.ForecastResult, error) {
	return t.PredictWithResidualStd(horizon, confidence, t.sigma)
}

// PredictWithResidualStd forecasts with an explicit residual std, so a
// caller holding persisted residuals (or a fallback estimate) can widen
// intervals without re-training. Width scales with sqrt(step+1): a fixed
// band would understate the error the recursion accumulates.
func (t *LagRegTrainer) PredictWithResidualStd(horizon int, confidence, residualStd float64) (models.ForecastResult, error) {
	return t.PredictSeeded(horizon, confidence, residualStd, nil)
}

// PredictSeeded forecasts from fresher observations when the seed series
// is long enough, falling back to the training-window buffer otherwise. The
// trainer itself is never mutated, so one restored model can serve
// concurrent calls. A residualStd of zero widens intervals by a fraction
// of the last value in the chosen buffer instead.
func (t *LagRegTrainer) PredictSeeded(horizon int, confidence, residualStd float64, recent []models.RatePoint) (models.ForecastResult, error) {
	if !t.trained {
		return models.ForecastResult{}, models.ErrNotTrained
	}
	if horizon <= 0 {
		return models.ForecastResult{}, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	buf, lastDate := t.buffer, t.lastDate
	if len(recent) >= lagRegLags {
		buf = tailOf(models.RateValues(recent), lagRegBufferLen)
		lastDate = recent[len(recent)-1].Date
	}
	if residualStd <= 0 {
		residualStd = residualFallbackFraction * math.Abs(buf[len(buf)-1])
	}
	z := zScore(confidence)
	dates := futureDates(lastDate, horizon)
	values := t.forecastFrom(buf, lastDate, horizon)

	points := make([]models.ForecastPoint, horizon)
	for i := 0; i < horizon; i++ {
		margin := z * residualStd * math.Sqrt(float64(i)+1)
		points[i] = models.ForecastPoint{Date: dates[i], Value: values[i], Lower: values[i] - margin, Upper: values[i] + margin}
	}

	return models.ForecastResult{
		Currency:   t.currency,
		Horizon:    horizon,
		Confidence: confidence,
		Points:     points,
		Metadata: models.ForecastMetadata{
			Family:       models.FamilyLagReg,
			TrainedAt:    t.metrics.TrainedAt,
			MAPE:         t.metrics.MAPE,
			RMSE:         t.metrics.RMSE,
			TrainSamples: t.metrics.TrainSamples,
			TestSamples:  t.metrics.TestSamples,
			Strategy:     models.ModeRecursive,
			WindowStart:  t.windowStart,
			WindowEnd:    t.windowEnd,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// forecastValues runs the recursion from the training-window buffer.
func (t *LagRegTrainer) forecastValues(horizon int) []float64 {
	return t.forecastFrom(t.buffer, t.lastDate, horizon)
}

// forecastFrom runs the recursive loop over a private copy of the seed
// buffer: predict one step, clip runaway values, append, repeat. It only
// reads the fitted coefficients, so concurrent callers never interfere.
func (t *LagRegTrainer) forecastFrom(seed []float64, lastDate time.Time, horizon int) []float64 {
	buf := append([]float64(nil), seed...)
	date := lastDate
	out := make([]float64, horizon)
	for s := 0; s < horizon; s++ {
		date = date.AddDate(0, 0, 1)
		row := buildFeatures(buf, date, lagRegLags)
		pred := 0.0
		for i, c := range t.coef {
			pred += c * row[i]
		}
		last := buf[len(buf)-1]
		if math.Abs(pred-last) > lagRegClipFraction*math.Abs(last) || math.IsNaN(pred) || math.IsInf(pred, 0) {
			pred = last * (1 + (rand.Float64()*2-1)*lagRegWalkStep)
		}
		out[s] = pred
		buf = append(buf, pred)
		if len(buf) > lagRegBufferLen {
			buf = buf[1:]
		}
	}
	return out
}

// ResidualStd exposes the training residual spread for interval callers.
func (t *LagRegTrainer) ResidualStd() float64 { return t.sigma }

// LastObserved returns the newest value in the feature buffer.
func (t *LagRegTrainer) LastObserved() float64 {
	if len(t.buffer) == 0 {
		return 0
	}
	return t.buffer[len(t.buffer)-1]
}

func (t *LagRegTrainer) Snapshot() (*models.ModelArtifact, error) {
	if !t.trained {
		return nil, models.ErrNotTrained
	}
	state, err := json.Marshal(lagRegState{
		Lags: lagRegLags, Coef: t.coef, Sigma: t.sigma, Buffer: t.buffer, LastDate: t.lastDate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal lagreg state: %w", err)
	}
	return &models.ModelArtifact{
		Family:      models.FamilyLagReg,
		Currency:    t.currency,
		WindowStart: t.windowStart,
		WindowEnd:   t.windowEnd,
		State:       state,
		Residuals:   t.residuals,
		Metrics:     t.metrics,
		MigratedAt:  time.Now().UTC(),
	}, nil
}

func (t *LagRegTrainer) Restore(a *models.ModelArtifact) error {
	var st lagRegState
	if err := json.Unmarshal(a.State, &st); err != nil {
		return fmt.Errorf("unmarshal lagreg state: %w", err)
	}
	if len(st.Coef) != featureCount(st.Lags) {
		return fmt.Errorf("lagreg state malformed: %d coefficients for %d lags", len(st.Coef), st.Lags)
	}
	if len(st.Buffer) < st.Lags {
		return fmt.Errorf("lagreg state malformed: buffer of %d for %d lags", len(st.Buffer), st.Lags)
	}
	t.currency = a.Currency
	t.windowStart = a.WindowStart
	t.windowEnd = a.WindowEnd
	t.coef = st.Coef
	t.sigma = st.Sigma
	t.buffer = st.Buffer
	t.lastDate = st.LastDate
	t.residuals = a.Residuals
	t.metrics = a.Metrics
	t.trained = true
	return nil
}

// fitLagReg builds the lag/rolling/cyclical design matrix over history
// and solves it by least squares.
func fitLagReg(history []models.RatePoint) ([]float64, float64, error) {
	values := models.RateValues(history)
	rows := len(values) - lagRegLags
	if rows < 1 {
		return nil, 0, fmt.Errorf("series too short: %d values for %d lags", len(values), lagRegLags)
	}
	X := make([][]float64, rows)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		i := lagRegLags + r
		X[r] = buildFeatures(values[:i], history[i].Date, lagRegLags)
		y[r] = values[i]
	}
	coef := solveLeastSquares(X, y)
	if coef == nil {
		return nil, 0, fmt.Errorf("singular design matrix")
	}
	residuals := make([]float64, rows)
	for r := 0; r < rows; r++ {
		pred := 0.0
		for i, c := range coef {
			pred += c * X[r][i]
		}
		residuals[r] = y[r] - pred
	}
	return coef, stddev(residuals), nil
}

var _ domsvc.Trainer = (*LagRegTrainer)(nil)
