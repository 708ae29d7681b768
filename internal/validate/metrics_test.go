package validate

import (
	"math"
	"testing"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func TestComputeMetricsIdenticalSeries(t *testing.T) {
	vals := []float64{10, 20, 30, 40, 50}
	m := computeMetrics(vals, vals)

	if m.N != 5 {
		t.Errorf("n: got %d, want 5", m.N)
	}
	approx(t, "bias", m.Bias, 0)
	approx(t, "mae", m.MAE, 0)
	approx(t, "rmse", m.RMSE, 0)
	approx(t, "correlation", m.Correlation, 1)
	approx(t, "r squared", m.RSquared, 1)
	approx(t, "slope", m.Slope, 1)
	approx(t, "intercept", m.Intercept, 0)
}

func TestComputeMetricsConstantOffset(t *testing.T) {
	sim := []float64{10, 20, 30, 40}
	meas := []float64{15, 25, 35, 45} // measured = simulated + 5

	m := computeMetrics(sim, meas)
	approx(t, "bias", m.Bias, 5)
	approx(t, "mae", m.MAE, 5)
	approx(t, "rmse", m.RMSE, 5)
	approx(t, "correlation", m.Correlation, 1)
	// Fit of simulated against measured: sim = meas - 5.
	approx(t, "slope", m.Slope, 1)
	approx(t, "intercept", m.Intercept, -5)
	// RMSE over a mean measurement of 30.
	approx(t, "relative rmse", m.RelativeRMSE, 5.0/30.0)
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := computeMetrics(nil, nil)
	if m.N != 0 || m.RMSE != 0 || m.Correlation != 0 {
		t.Errorf("empty input: got %+v", m)
	}
}

func TestComputeMetricsBiasSign(t *testing.T) {
	// Simulation overestimates: measured below simulated, bias negative.
	m := computeMetrics([]float64{100, 100}, []float64{90, 90})
	approx(t, "bias", m.Bias, -10)
}

func TestMeanAndMedian(t *testing.T) {
	approx(t, "mean", mean([]float64{1, 2, 3, 4}), 2.5)
	approx(t, "mean empty", mean(nil), 0)
	approx(t, "median odd", median([]float64{5, 1, 3}), 3)
	approx(t, "median even", median([]float64{4, 1, 3, 2}), 2.5)
	approx(t, "median empty", median(nil), 0)
}

func TestPearson(t *testing.T) {
	approx(t, "perfect", pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1)
	approx(t, "inverse", pearson([]float64{1, 2, 3}, []float64{3, 2, 1}), -1)
	// Zero-variance series: identical correlate at 1, otherwise 0.
	approx(t, "flat identical", pearson([]float64{5, 5, 5}, []float64{5, 5, 5}), 1)
	approx(t, "flat vs varying", pearson([]float64{5, 5, 5}, []float64{1, 2, 3}), 0)
}

func TestLinearFit(t *testing.T) {
	slope, intercept := linearFit([]float64{1, 2, 3}, []float64{3, 5, 7})
	approx(t, "slope", slope, 2)
	approx(t, "intercept", intercept, 1)

	// Degenerate x falls back to a flat fit at the mean.
	slope, intercept = linearFit([]float64{2, 2, 2}, []float64{1, 2, 3})
	approx(t, "degenerate slope", slope, 0)
	approx(t, "degenerate intercept", intercept, 2)
}
