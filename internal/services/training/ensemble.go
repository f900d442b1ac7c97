package training

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"RateCast/internal/domain/models"
	domsvc "RateCast/internal/domain/service"
	applogger "RateCast/pkg/logger"
)

// WeightingMode selects how ensemble member weights are computed.
type WeightingMode string

const (
	WeightEqual       WeightingMode = "equal"
	WeightInverseMAPE WeightingMode = "inverse_mape"

	// floor for MAPE in inverse weighting, so a perfectly-scoring member
	// does not divide by zero
	weightEpsilon = 1e-6
)

// EnsembleTrainer trains a set of member families independently and
// combines their forecasts by weight. Member failures are tolerated as
// long as at least one member trains successfully.
type EnsembleTrainer struct {
	families  []models.ModelFamily
	members   []domsvc.Trainer
	weighting WeightingMode
	logger    *applogger.Logger

	weights       map[models.ModelFamily]float64
	memberMetrics map[models.ModelFamily]models.TrainingMetrics
	currency      string
	windowStart   time.Time
	windowEnd     time.Time
	metrics       models.TrainingMetrics
	trained       bool
}

type ensembleState struct {
	Weighting WeightingMode                      `json:"weighting"`
	Weights   map[models.ModelFamily]float64     `json:"weights"`
	Members   []*models.ModelArtifact            `json:"members"`
	Metrics   map[models.ModelFamily]models.TrainingMetrics `json:"member_metrics"`
}

// NewEnsembleTrainer builds an ensemble over the given member families.
// An empty family list defaults to all three base families.
func NewEnsembleTrainer(families []models.ModelFamily, weighting WeightingMode, l *applogger.Logger) (*EnsembleTrainer, error) {
	if len(families) == 0 {
		families = []models.ModelFamily{models.FamilyTrend, models.FamilyAR, models.FamilyLagReg}
	}
	if weighting == "" {
		weighting = WeightInverseMAPE
	}
	for _, f := range families {
		if f == models.FamilyEnsemble {
			return nil, fmt.Errorf("ensemble cannot contain itself")
		}
		if _, err := New(f); err != nil {
			return nil, fmt.Errorf("ensemble member %s: %w", f, err)
		}
	}
	return &EnsembleTrainer{families: families, weighting: weighting, logger: l}, nil
}

func (t *EnsembleTrainer) Family() models.ModelFamily { return models.FamilyEnsemble }

func (t *EnsembleTrainer) Train(ctx context.Context, history []models.RatePoint, currency string, trainRatio float64) (models.TrainingMetrics, error) {
	start := time.Now()

	// rebuild from the configured families so a member that failed on a
	// previous call gets another chance on fresh data
	candidates := make([]domsvc.Trainer, 0, len(t.families))
	for _, f := range t.families {
		m, err := New(f)
		if err != nil {
			return models.TrainingMetrics{}, fmt.Errorf("ensemble member %s: %w", f, err)
		}
		candidates = append(candidates, m)
	}

	survivors := make([]domsvc.Trainer, 0, len(candidates))
	memberMetrics := make(map[models.ModelFamily]models.TrainingMetrics, len(candidates))
	var firstErr error

	for _, m := range candidates {
		metrics, err := m.Train(ctx, history, currency, trainRatio)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if t.logger != nil {
				t.logger.Warn("ensemble member failed to train",
					applogger.String("family", string(m.Family())),
					applogger.String("currency", currency),
					applogger.Error(err),
				)
			}
			continue
		}
		survivors = append(survivors, m)
		memberMetrics[m.Family()] = metrics
	}
	if len(survivors) == 0 {
		return models.TrainingMetrics{}, fmt.Errorf("ensemble: all %d members failed for %s: %w", len(candidates), currency, firstErr)
	}

	t.members = survivors
	t.memberMetrics = memberMetrics
	t.weights = computeWeights(memberMetrics, t.weighting)
	t.currency = currency
	t.windowStart = history[0].Date
	t.windowEnd = history[len(history)-1].Date

	t.metrics = combineMetrics(memberMetrics, t.weights)
	t.metrics.Family = models.FamilyEnsemble
	t.metrics.Currency = currency
	t.metrics.TrainingDuration = time.Since(start)
	t.metrics.WindowStart = t.windowStart
	t.metrics.WindowEnd = t.windowEnd
	t.metrics.TrainedAt = time.Now().UTC()
	t.trained = true
	return t.metrics, nil
}

// Weights returns the member weights computed at train time.
func (t *EnsembleTrainer) Weights() map[models.ModelFamily]float64 { return t.weights }

func (t *EnsembleTrainer) Predict(horizon int, confidence float64) (models.ForecastResult, error) {
	ef, err := t.PredictEnsemble(horizon, confidence)
	if err != nil {
		return models.ForecastResult{}, err
	}
	return models.ForecastResult{
		Currency:   t.currency,
		Horizon:    horizon,
		Confidence: confidence,
		Points:     ef.Points,
		Ensemble:   &ef,
		Metadata: models.ForecastMetadata{
			Family:       models.FamilyEnsemble,
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

// PredictEnsemble runs every member and combines per-step values by
// weight, recording raw member contributions for explainability.
func (t *EnsembleTrainer) PredictEnsemble(horizon int, confidence float64) (models.EnsembleForecast, error) {
	if !t.trained {
		return models.EnsembleForecast{}, models.ErrNotTrained
	}
	if horizon <= 0 {
		return models.EnsembleForecast{}, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	contributions := make([]models.MemberContribution, 0, len(t.members))
	for _, m := range t.members {
		res, err := m.Predict(horizon, confidence)
		if err != nil {
			return models.EnsembleForecast{}, fmt.Errorf("ensemble member %s predict: %w", m.Family(), err)
		}
		contributions = append(contributions, models.MemberContribution{
			Family: m.Family(),
			Weight: t.weights[m.Family()],
			Points: res.Points,
		})
	}

	points := make([]models.ForecastPoint, 0, horizon)
	trustSum, trustSteps := 0.0, 0
	for step := 0; step < horizon; step++ {
		// renormalize in case a member returned fewer steps
		var wSum, v, lo, hi float64
		memberValues := make([]float64, 0, len(contributions))
		var date time.Time
		for _, c := range contributions {
			if step >= len(c.Points) {
				continue
			}
			p := c.Points[step]
			wSum += c.Weight
			v += c.Weight * p.Value
			lo += c.Weight * p.Lower
			hi += c.Weight * p.Upper
			memberValues = append(memberValues, p.Value)
			date = p.Date
		}
		if wSum == 0 {
			continue
		}
		points = append(points, models.ForecastPoint{
			Date:  date,
			Value: v / wSum,
			Lower: lo / wSum,
			Upper: hi / wSum,
		})
		trustSum += stepAgreement(memberValues)
		trustSteps++
	}

	trust := 0.0
	if trustSteps > 0 {
		trust = trustSum / float64(trustSteps)
	}
	return models.EnsembleForecast{
		Currency:      t.currency,
		Points:        points,
		Weights:       t.weights,
		Contributions: contributions,
		TrustScore:    trust,
	}, nil
}

func (t *EnsembleTrainer) Snapshot() (*models.ModelArtifact, error) {
	if !t.trained {
		return nil, models.ErrNotTrained
	}
	memberArtifacts := make([]*models.ModelArtifact, 0, len(t.members))
	for _, m := range t.members {
		a, err := m.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot ensemble member %s: %w", m.Family(), err)
		}
		memberArtifacts = append(memberArtifacts, a)
	}
	state, err := json.Marshal(ensembleState{
		Weighting: t.weighting,
		Weights:   t.weights,
		Members:   memberArtifacts,
		Metrics:   t.memberMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ensemble state: %w", err)
	}
	return &models.ModelArtifact{
		Family:      models.FamilyEnsemble,
		Currency:    t.currency,
		WindowStart: t.windowStart,
		WindowEnd:   t.windowEnd,
		State:       state,
		Metrics:     t.metrics,
		MigratedAt:  time.Now().UTC(),
	}, nil
}

func (t *EnsembleTrainer) Restore(a *models.ModelArtifact) error {
	var st ensembleState
	if err := json.Unmarshal(a.State, &st); err != nil {
		return fmt.Errorf("unmarshal ensemble state: %w", err)
	}
	if len(st.Members) == 0 {
		return fmt.Errorf("ensemble state malformed: no members")
	}
	members := make([]domsvc.Trainer, 0, len(st.Members))
	for _, ma := range st.Members {
		m, err := FromArtifact(ma)
		if err != nil {
			return fmt.Errorf("restore ensemble member %s: %w", ma.Family, err)
		}
		members = append(members, m)
	}
	families := make([]models.ModelFamily, 0, len(members))
	for _, m := range members {
		families = append(families, m.Family())
	}
	t.families = families
	t.members = members
	t.weighting = st.Weighting
	t.weights = st.Weights
	t.memberMetrics = st.Metrics
	t.currency = a.Currency
	t.windowStart = a.WindowStart
	t.windowEnd = a.WindowEnd
	t.metrics = a.Metrics
	t.trained = true
	return nil
}

// computeWeights derives normalized member weights from their metrics.
// Inverse-MAPE weighting lets better-calibrated members dominate.
func computeWeights(mm map[models.ModelFamily]models.TrainingMetrics, mode WeightingMode) map[models.ModelFamily]float64 {
	weights := make(map[models.ModelFamily]float64, len(mm))
	if mode == WeightEqual {
		for f := range mm {
			weights[f] = 1 / float64(len(mm))
		}
		return weights
	}
	total := 0.0
	for f, m := range mm {
		w := 1 / math.Max(m.MAPE, weightEpsilon)
		weights[f] = w
		total += w
	}
	for f := range weights {
		weights[f] /= total
	}
	return weights
}

// combineMetrics weight-averages member error metrics; sample counts are
// shared across members since they trained on the same split.
func combineMetrics(mm map[models.ModelFamily]models.TrainingMetrics, weights map[models.ModelFamily]float64) models.TrainingMetrics {
	var out models.TrainingMetrics
	for f, m := range mm {
		w := weights[f]
		out.RMSE += w * m.RMSE
		out.MAE += w * m.MAE
		out.MAPE += w * m.MAPE
		out.DirectionalAccuracy += w * m.DirectionalAccuracy
		if m.TrainSamples > out.TrainSamples {
			out.TrainSamples = m.TrainSamples
			out.TestSamples = m.TestSamples
		}
	}
	return out
}

// stepAgreement maps member dispersion at one step to [0,1]: 1 when all
// members agree exactly, approaching 0 as their spread grows relative to
// the mean level.
func stepAgreement(values []float64) float64 {
	if len(values) < 2 {
		return 1
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}
	cv := stddev(values) / math.Abs(mean)
	trust := 1 - cv
	if trust < 0 {
		return 0
	}
	if trust > 1 {
		return 1
	}
	return trust
}

var _ domsvc.Trainer = (*EnsembleTrainer)(nil)
