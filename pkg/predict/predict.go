// Package predict holds the pure numeric helpers behind capacity
// forecasting: ordinary-least-squares trends, z-score anomaly detection
// and history-depth confidence labels. No I/O, no state.
package predict

import (
	"math"

	"github.com/quietops/criblscope/pkg/model"
)

// Point is one observation of a historical series.
type Point struct {
	X float64
	Y float64
}

// Slope returns the ordinary-least-squares slope of the series.
// Fewer than two points, or a constant x (zero denominator), yield 0.
func Slope(points []Point) float64 {
	n := float64(len(points))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumXX += p.X * p.X
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// Series builds evenly indexed points from raw values (x = 0, 1, 2...).
func Series(values []float64) []Point {
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{X: float64(i), Y: v}
	}
	return points
}

// TimeToThreshold returns how many x-units until current growth reaches
// threshold. A non-positive slope never reaches it: +Inf.
func TimeToThreshold(current, threshold, slope float64) float64 {
	if slope <= 0 {
		return math.Inf(1)
	}
	return (threshold - current) / slope
}

// ZScoreAnomalies returns the indices whose distance from the mean
// exceeds threshold standard deviations (population stdev). Series
// shorter than three values, or with zero stdev, yield no anomalies.
func ZScoreAnomalies(values []float64, threshold float64) []int {
	if len(values) < 3 {
		return nil
	}
	if threshold <= 0 {
		threshold = 3.0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	stdev := math.Sqrt(variance / float64(len(values)))
	if stdev == 0 {
		return nil
	}

	var anomalies []int
	for i, v := range values {
		if math.Abs(v-mean)/stdev > threshold {
			anomalies = append(anomalies, i)
		}
	}
	return anomalies
}

// Confidence labels a forecast by history depth: >=20 points high,
// >=10 medium, else low.
func Confidence(historyLen int) model.Confidence {
	switch {
	case historyLen >= 20:
		return model.ConfidenceHigh
	case historyLen >= 10:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
