package training

import "math"

// EvalMetrics holds the error metrics for a forecast against actuals.
type EvalMetrics struct {
	RMSE                float64
	MAE                 float64
	MAPE                float64
	DirectionalAccuracy float64
}

// Evaluate computes RMSE, MAE, MAPE and directional accuracy for a
// predicted series against actuals. It is a pure function.
//
// MAPE terms with a zero actual are skipped rather than producing Inf;
// if every actual is zero MAPE degrades to 0. Directional accuracy
// compares the sign of successive differences and counts only moves
// where the actual series actually moved; with fewer than 2 points, or
// no actual moves at all, it degrades to 0.
func Evaluate(actual, predicted []float64) EvalMetrics {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	if n == 0 {
		return EvalMetrics{}
	}

	var sumSq, sumAbs, sumPct float64
	pctTerms := 0
	for i := 0; i < n; i++ {
		diff := predicted[i] - actual[i]
		sumSq += diff * diff
		sumAbs += math.Abs(diff)
		if actual[i] != 0 {
			sumPct += math.Abs(diff / actual[i])
			pctTerms++
		}
	}

	m := EvalMetrics{
		RMSE: math.Sqrt(sumSq / float64(n)),
		MAE:  sumAbs / float64(n),
	}
	if pctTerms > 0 {
		m.MAPE = sumPct / float64(pctTerms) * 100
	}

	if n >= 2 {
		correct, moves := 0, 0
		for i := 1; i < n; i++ {
			da := actual[i] - actual[i-1]
			if da == 0 {
				continue
			}
			moves++
			dp := predicted[i] - predicted[i-1]
			if (da > 0 && dp > 0) || (da < 0 && dp < 0) {
				correct++
			}
		}
		if moves > 0 {
			m.DirectionalAccuracy = float64(correct) / float64(moves)
		}
	}
	return m
}

// zScore returns the two-sided normal quantile for a coverage level,
// e.g. zScore(0.80) ~= 1.2816. Uses the Acklam rational approximation
// of the inverse normal CDF.
func zScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		return 1.96
	}
	p := 0.5 + confidence/2
	return normQuantile(p)
}

func normQuantile(p float64) float64 {
	// Acklam's algorithm, |relative error| < 1.15e-9.
	a := [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	const pLow = 0.02425
	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p > 1-pLow:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}

// ResidualStdOf computes the standard deviation of a persisted residual
// array, returning 0 when there is not enough evidence.
func ResidualStdOf(residuals []float64) float64 { return stddev(residuals) }

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum, sum2 float64
	for _, x := range xs {
		sum += x
		sum2 += x * x
	}
	n := float64(len(xs))
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
