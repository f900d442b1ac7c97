package training

import (
	"time"

	"RateCast/internal/domain/models"
)

const defaultTrainRatio = 0.8

// chronoSplit splits a history series chronologically at ratio.
func chronoSplit(history []models.RatePoint, ratio float64) (train, test []models.RatePoint) {
	if ratio <= 0 || ratio >= 1 {
		ratio = defaultTrainRatio
	}
	cut := int(float64(len(history)) * ratio)
	if cut < 1 {
		cut = 1
	}
	if cut >= len(history) {
		cut = len(history) - 1
	}
	return history[:cut], history[cut:]
}

// futureDates produces horizon consecutive daily dates after last.
func futureDates(last time.Time, horizon int) []time.Time {
	out := make([]time.Time, horizon)
	for i := 0; i < horizon; i++ {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out
}

// solveLeastSquares solves X'X b = X'y by Gaussian elimination with
// partial pivoting. A tiny ridge term keeps near-collinear lag features
// from blowing up the solve.
func solveLeastSquares(X [][]float64, y []float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	k := len(X[0])
	// normal equations
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	for r, row := range X {
		for i := 0; i < k; i++ {
			xty[i] += row[i] * y[r]
			for j := i; j < k; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}
	const ridge = 1e-8
	for i := 0; i < k; i++ {
		xtx[i][i] += ridge
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
	}
	return solveLinear(xtx, xty)
}

func solveLinear(a [][]float64, b []float64) []float64 {
	n := len(b)
	// augmented elimination, in place
	for col := 0; col < n; col++ {
		// pivot
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(a[r][col]) > abs(a[pivot][col]) {
				pivot = r
			}
		}
		if a[pivot][col] == 0 {
			return nil
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
