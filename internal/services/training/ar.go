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
	arOrder      = 5
	minARSamples = 30
)

// ARTrainer fits an autoregressive model of fixed order by least squares.
// Multi-step prediction is native: the model iterates its own equation
// and widens intervals analytically using psi weights.
type ARTrainer struct {
	currency    string
	windowStart time.Time
	windowEnd   time.Time

	coef     []float64 // [intercept, phi_1..phi_p]
	sigma    float64
	tail     []float64 // last p observations, ascending
	lastDate time.Time
	residuals []float64

	metrics models.TrainingMetrics
	trained bool
}

type arState struct {
	Order    int       `json:"order"`
	Coef     []float64 `json:"coef"`
	Sigma    float64   `json:"sigma"`
	Tail     []float64 `json:"tail"`
	LastDate time.Time `json:"last_date"`
}

func NewARTrainer() *ARTrainer { return &ARTrainer{} }

func (t *ARTrainer) Family() models.ModelFamily { return models.FamilyAR }

func (t *ARTrainer) Train(ctx context.Context, history []models.RatePoint, currency string, trainRatio float64) (models.TrainingMetrics, error) {
	if len(history) < minARSamples {
		return models.TrainingMetrics{}, &models.InsufficientDataError{
			Family: models.FamilyAR, Currency: currency, Need: minARSamples, Got: len(history),
		}
	}
	start := time.Now()

	trainSet, testSet := chronoSplit(history, trainRatio)
	coef, _, err := fitAR(models.RateValues(trainSet), arOrder)
	if err != nil {
		return models.TrainingMetrics{}, fmt.Errorf("fit ar(%d) for %s: %w", arOrder, currency, err)
	}

	trainValues := models.RateValues(trainSet)
	predicted := iterateAR(coef, tailOf(trainValues, arOrder), len(testSet))
	actual := models.RateValues(testSet)
	em := Evaluate(actual, predicted)

	residuals := make([]float64, len(actual))
	for i := range actual {
		residuals[i] = actual[i] - predicted[i]
	}

	// refit on the full window for production state
	fullValues := models.RateValues(history)
	t.coef, t.sigma, err = fitAR(fullValues, arOrder)
	if err != nil {
		return models.TrainingMetrics{}, fmt.Errorf("refit ar(%d) for %s: %w", arOrder, currency, err)
	}
	t.tail = tailOf(fullValues, arOrder)
	t.currency = currency
	t.windowStart = history[0].Date
	t.windowEnd = history[len(history)-1].Date
	t.lastDate = t.windowEnd
	t.residuals = residuals
	t.metrics = models.TrainingMetrics{
		Family:              models.FamilyAR,
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

func (t *ARTrainer) Predict(horizon int, confidence float64) (models.ForecastResult, error) {
	if !t.trained {
		return models.ForecastResult{}, models.ErrNotTrained
	}
	if horizon <= 0 {
		return models.ForecastResult{}, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	z := zScore(confidence)
	dates := futureDates(t.lastDate, horizon)
	values := iterateAR(t.coef, t.tail, horizon)
	psis := psiWeights(t.coef[1:], horizon)

	points := make([]models.ForecastPoint, horizon)
	cumVar := 0.0
	for i := 0; i < horizon; i++ {
		cumVar += psis[i] * psis[i]
		margin := z * t.sigma * math.Sqrt(cumVar)
		points[i] = models.ForecastPoint{Date: dates[i], Value: values[i], Lower: values[i] - margin, Upper: values[i] + margin}
	}

	return models.ForecastResult{
		Currency:   t.currency,
		Horizon:    horizon,
		Confidence: confidence,
		Points:     points,
		Metadata: models.ForecastMetadata{
			Family:       models.FamilyAR,
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
	}, nil
}

func (t *ARTrainer) Snapshot() (*models.ModelArtifact, error) {
	if !t.trained {
		return nil, models.ErrNotTrained
	}
	state, err := json.Marshal(arState{
		Order: arOrder, Coef: t.coef, Sigma: t.sigma, Tail: t.tail, LastDate: t.lastDate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ar state: %w", err)
	}
	return &models.ModelArtifact{
		Family:      models.FamilyAR,
		Currency:    t.currency,
		WindowStart: t.windowStart,
		WindowEnd:   t.windowEnd,
		State:       state,
		Residuals:   t.residuals,
		Metrics:     t.metrics,
		MigratedAt:  time.Now().UTC(),
	}, nil
}

func (t *ARTrainer) Restore(a *models.ModelArtifact) error {
	var st arState
	if err := json.Unmarshal(a.State, &st); err != nil {
		return fmt.Errorf("unmarshal ar state: %w", err)
	}
	if len(st.Coef) != st.Order+1 {
		return fmt.Errorf("ar state malformed: %d coefficients for order %d", len(st.Coef), st.Order)
	}
	t.currency = a.Currency
	t.windowStart = a.WindowStart
	t.windowEnd = a.WindowEnd
	t.coef = st.Coef
	t.sigma = st.Sigma
	t.tail = st.Tail
	t.lastDate = st.LastDate
	t.residuals = a.Residuals
	t.metrics = a.Metrics
	t.trained = true
	return nil
}

// fitAR fits value_t = c + sum phi_i * value_{t-i} by least squares and
// returns [c, phi_1..phi_p] with the in-sample residual std.
func fitAR(values []float64, p int) ([]float64, float64, error) {
	if len(values) <= p+1 {
		return nil, 0, fmt.Errorf("series too short: %d values for order %d", len(values), p)
	}
	rows := len(values) - p
	X := make([][]float64, rows)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		row := make([]float64, p+1)
		row[0] = 1
		for i := 1; i <= p; i++ {
			row[i] = values[p+r-i]
		}
		X[r] = row
		y[r] = values[p+r]
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

// iterateAR rolls the AR equation forward steps times from tail.
func iterateAR(coef []float64, tail []float64, steps int) []float64 {
	p := len(coef) - 1
	buf := append([]float64(nil), tail...)
	out := make([]float64, steps)
	for s := 0; s < steps; s++ {
		v := coef[0]
		for i := 1; i <= p && i <= len(buf); i++ {
			v += coef[i] * buf[len(buf)-i]
		}
		out[s] = v
		buf = append(buf, v)
	}
	return out
}

// psiWeights computes the MA(inf) representation weights psi_0..psi_{h-1}
// for an AR process, used for analytic multi-step variance.
func psiWeights(phi []float64, h int) []float64 {
	psi := make([]float64, h)
	psi[0] = 1
	for j := 1; j < h; j++ {
		for i := 1; i <= len(phi) && i <= j; i++ {
			psi[j] += phi[i-1] * psi[j-i]
		}
	}
	return psi
}

func tailOf(values []float64, n int) []float64 {
	if len(values) <= n {
		return append([]float64(nil), values...)
	}
	return append([]float64(nil), values[len(values)-n:]...)
}

var _ domsvc.Trainer = (*ARTrainer)(nil)
