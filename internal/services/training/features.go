package training

import (
	"math"
	"time"
)

// Feature layout for the lag-regression family. Order is part of the
// serialized model contract: coefficients are stored positionally.
//
//	[0]            intercept
//	[1..nLags]     lag_1 .. lag_n
//	[nLags+1]      rolling mean, short window
//	[nLags+2]      rolling mean, long window
//	[nLags+3,+4]   day-of-week sin/cos
const (
	rollShortWindow = 3
	rollLongWindow  = 7
)

func featureCount(nLags int) int { return 1 + nLags + 4 }

// buildFeatures builds one feature row from the most recent values.
// values must be chronologically ascending and hold at least nLags
// observations; date is the date being predicted.
func buildFeatures(values []float64, date time.Time, nLags int) []float64 {
	row := make([]float64, 0, featureCount(nLags))
	row = append(row, 1) // intercept

	last := len(values)
	for i := 1; i <= nLags; i++ {
		row = append(row, values[last-i])
	}
	row = append(row, rollingMean(values, rollShortWindow))
	row = append(row, rollingMean(values, rollLongWindow))

	dow := float64(date.Weekday())
	row = append(row, math.Sin(2*math.Pi*dow/7))
	row = append(row, math.Cos(2*math.Pi*dow/7))
	return row
}

// rollingMean averages the trailing window values, shrinking the window
// when fewer observations exist.
func rollingMean(values []float64, window int) float64 {
	if len(values) == 0 {
		return 0
	}
	if window > len(values) {
		window = len(values)
	}
	sum := 0.0
	for i := len(values) - window; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(window)
}
