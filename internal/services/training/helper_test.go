package training

import (
	"math"
	"time"

	"RateCast/internal/domain/models"
)

// syntheticSeries builds a deterministic daily rate series with a linear
// drift plus a weekly oscillation, which every family can fit.
func syntheticSeries(n int, base, drift, amplitude float64) []models.RatePoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.RatePoint, n)
	for i := 0; i < n; i++ {
		v := base + drift*float64(i) + amplitude*math.Sin(2*math.Pi*float64(i)/7)
		points[i] = models.RatePoint{
			Currency: "USD",
			Date:     start.AddDate(0, 0, i),
			Rate:     v,
		}
	}
	return points
}

func intervalWidths(points []models.ForecastPoint) []float64 {
	widths := make([]float64, len(points))
	for i, p := range points {
		widths[i] = p.Upper - p.Lower
	}
	return widths
}

func assertWidening(widths []float64) bool {
	for i := 1; i < len(widths); i++ {
		if widths[i] < widths[i-1]-1e-12 {
			return false
		}
	}
	return len(widths) > 0 && widths[0] >= 0
}
