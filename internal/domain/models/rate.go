package models

import "time"

// RatePoint is one observation of a currency's exchange rate.
// History series are assumed chronologically ordered with no duplicate dates.
type RatePoint struct {
	Currency string
	Date     time.Time
	Rate     float64
}

// RateValues extracts the raw rate values from a history series.
func RateValues(points []RatePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Rate
	}
	return out
}
