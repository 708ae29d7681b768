// Package validate implements the statistical comparison of simulated
// against measured output: time alignment, explicit resampling per
// variable kind, accuracy metrics per entity and resolution, and
// fleet-level aggregation. It performs no physics and is testable with
// synthetic series.
package validate

import (
	"math"
	"sort"

	"github.com/seenimoa/pvbench/pkg/models"
)

// computeMetrics evaluates the full metric set over aligned value pairs.
// Bias follows the measured-minus-simulated convention documented on
// models.ValidationMetrics; the regression treats measured as the
// independent variable.
func computeMetrics(simulated, measured []float64) models.ValidationMetrics {
	n := len(simulated)
	m := models.ValidationMetrics{N: n}
	if n == 0 {
		return m
	}

	var sumErr, sumAbs, sumSq float64
	for i := range simulated {
		diff := measured[i] - simulated[i]
		sumErr += diff
		sumAbs += math.Abs(diff)
		sumSq += diff * diff
	}
	m.Bias = sumErr / float64(n)
	m.MAE = sumAbs / float64(n)
	m.RMSE = math.Sqrt(sumSq / float64(n))

	meanMeas := mean(measured)
	if meanMeas != 0 {
		m.RelativeRMSE = m.RMSE / meanMeas
	}

	m.Correlation = pearson(measured, simulated)

	// R² of the simulation as a predictor of the measurement.
	var ssTot float64
	for _, v := range measured {
		d := v - meanMeas
		ssTot += d * d
	}
	if ssTot > 0 {
		m.RSquared = 1 - sumSq/ssTot
	} else if sumSq == 0 {
		m.RSquared = 1
	}

	m.Slope, m.Intercept = linearFit(measured, simulated)
	return m
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// pearson computes the correlation coefficient of two equal-length series.
// Degenerate (zero-variance) series correlate at 1 when identical, else 0.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	mx, my := mean(x), mean(y)
	var cov, vx, vy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		identical := true
		for i := range x {
			if x[i]-mx != y[i]-my {
				identical = false
				break
			}
		}
		if identical {
			return 1
		}
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// linearFit returns the least-squares slope and intercept of y against x.
func linearFit(x, y []float64) (slope, intercept float64) {
	n := len(x)
	if n == 0 {
		return 0, 0
	}
	mx, my := mean(x), mean(y)
	var cov, vx float64
	for i := range x {
		dx := x[i] - mx
		cov += dx * (y[i] - my)
		vx += dx * dx
	}
	if vx == 0 {
		return 0, my
	}
	slope = cov / vx
	intercept = my - slope*mx
	return slope, intercept
}
