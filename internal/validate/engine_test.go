package validate

import (
	"testing"
	"time"

	"github.com/seenimoa/pvbench/pkg/models"
)

// hourlySeries builds n hourly points starting 2023-06-01 UTC.
func hourlySeries(kind models.VariableKind, n int, value func(i int) float64) models.Series {
	s := models.Series{Variable: "energy", Unit: "kWh", Kind: kind}
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, models.SeriesPoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Value:     value(i),
		})
	}
	return s
}

func TestAlignInnerJoin(t *testing.T) {
	sim := hourlySeries(models.KindEnergy, 24, func(i int) float64 { return float64(i) })
	meas := hourlySeries(models.KindEnergy, 24, func(i int) float64 { return float64(i) })

	// Shift two measured points off-grid and flag one simulated point.
	meas.Points[3].Timestamp = meas.Points[3].Timestamp.Add(10 * time.Minute)
	meas.Points[7].Timestamp = meas.Points[7].Timestamp.Add(10 * time.Minute)
	sim.Points[10].Quality = models.QualitySuspect

	a := align(sim, meas)
	if len(a.timestamps) != 21 {
		t.Errorf("matched rows: got %d, want 21", len(a.timestamps))
	}
	// Hours 3, 7 (off-grid measurements) and 10 (suspect simulation).
	if a.unmatchedSim != 2 {
		t.Errorf("unmatched simulated: got %d, want 2", a.unmatchedSim)
	}
	if a.unmatchedMeas != 3 {
		t.Errorf("unmatched measured: got %d, want 3", a.unmatchedMeas)
	}
}

func TestResampleDaily(t *testing.T) {
	sim := hourlySeries(models.KindEnergy, 48, func(i int) float64 { return 1 })
	meas := hourlySeries(models.KindEnergy, 48, func(i int) float64 { return 2 })
	a := align(sim, meas)

	// Energy sums per day.
	s, m := resample(a, models.ResolutionDaily, models.KindEnergy)
	if len(s) != 2 {
		t.Fatalf("daily buckets: got %d, want 2", len(s))
	}
	if s[0] != 24 || m[0] != 48 {
		t.Errorf("daily sums: got sim %v meas %v, want 24/48", s[0], m[0])
	}

	// Power averages per day.
	s, m = resample(a, models.ResolutionDaily, models.KindPower)
	if s[0] != 1 || m[0] != 2 {
		t.Errorf("daily means: got sim %v meas %v, want 1/2", s[0], m[0])
	}
}

func TestResampleMonthlyAndAnnual(t *testing.T) {
	// 60 days spanning June and July.
	sim := hourlySeries(models.KindEnergy, 60*24, func(i int) float64 { return 1 })
	a := align(sim, sim)

	s, _ := resample(a, models.ResolutionMonthly, models.KindEnergy)
	if len(s) != 2 {
		t.Fatalf("monthly buckets: got %d, want 2", len(s))
	}
	// June has 30 days; the series starts June 1.
	if s[0] != 30*24 {
		t.Errorf("June total: got %v, want %v", s[0], 30*24)
	}

	s, _ = resample(a, models.ResolutionAnnual, models.KindEnergy)
	if len(s) != 1 || s[0] != 60*24 {
		t.Errorf("annual: got %v", s)
	}
}

func TestCompareIdenticalSeries(t *testing.T) {
	e := NewEngine(0)
	series := hourlySeries(models.KindEnergy, 48, func(i int) float64 { return float64(10 + i%5) })

	results, err := e.Compare("f1", series, series,
		[]models.Resolution{models.ResolutionHourly, models.ResolutionDaily})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Metrics.RMSE != 0 {
			t.Errorf("%s rmse: got %v, want 0", r.Resolution, r.Metrics.RMSE)
		}
		if r.Metrics.Correlation != 1 {
			t.Errorf("%s correlation: got %v, want 1", r.Resolution, r.Metrics.Correlation)
		}
	}
	if results[0].Metrics.N != 48 || results[1].Metrics.N != 2 {
		t.Errorf("sample counts: hourly %d, daily %d", results[0].Metrics.N, results[1].Metrics.N)
	}
}

func TestCompareConstantOffset(t *testing.T) {
	e := NewEngine(0)
	sim := hourlySeries(models.KindPower, 24, func(i int) float64 { return float64(i) })
	meas := hourlySeries(models.KindPower, 24, func(i int) float64 { return float64(i) + 2 })

	results, err := e.Compare("f1", sim, meas, []models.Resolution{models.ResolutionHourly})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	m := results[0].Metrics
	approx(t, "bias", m.Bias, 2)
	approx(t, "mae", m.MAE, 2)
	approx(t, "rmse", m.RMSE, 2)
}

func TestCompareRejectsKindMismatch(t *testing.T) {
	e := NewEngine(0)
	sim := hourlySeries(models.KindPower, 4, func(i int) float64 { return 1 })
	meas := hourlySeries(models.KindEnergy, 4, func(i int) float64 { return 1 })

	if _, err := e.Compare("f1", sim, meas, []models.Resolution{models.ResolutionHourly}); err == nil {
		t.Error("kind mismatch accepted")
	}
}

func TestCompareRequiresResolutions(t *testing.T) {
	e := NewEngine(0)
	s := hourlySeries(models.KindEnergy, 4, func(i int) float64 { return 1 })
	if _, err := e.Compare("f1", s, s, nil); err == nil {
		t.Error("empty resolution list accepted")
	}
}

func TestCompareFleetExcludesSmallEntities(t *testing.T) {
	e := NewEngine(12)
	big := hourlySeries(models.KindEnergy, 48, func(i int) float64 { return float64(i) })
	small := hourlySeries(models.KindEnergy, 3, func(i int) float64 { return float64(i) })

	report, err := e.CompareFleet([]EntityPair{
		{EntityID: "big", Simulated: big, Measured: big},
		{EntityID: "small", Simulated: small, Measured: small},
	}, []models.Resolution{models.ResolutionHourly})
	if err != nil {
		t.Fatalf("CompareFleet: %v", err)
	}

	summary := report.Resolutions[0]
	if len(summary.Included) != 1 || summary.Included[0] != "big" {
		t.Errorf("included: got %v", summary.Included)
	}
	if len(summary.Excluded) != 1 || summary.Excluded[0] != "small" {
		t.Errorf("excluded: got %v", summary.Excluded)
	}
	if summary.Aggregate.Mean.N != 48 {
		t.Errorf("aggregate n: got %d, want 48 (small entity must not distort)", summary.Aggregate.Mean.N)
	}
}

func TestCompareFleetAggregates(t *testing.T) {
	e := NewEngine(0)
	mk := func(offset float64) (models.Series, models.Series) {
		sim := hourlySeries(models.KindPower, 24, func(i int) float64 { return float64(i) })
		meas := hourlySeries(models.KindPower, 24, func(i int) float64 { return float64(i) + offset })
		return sim, meas
	}
	s1, m1 := mk(1)
	s2, m2 := mk(3)

	report, err := e.CompareFleet([]EntityPair{
		{EntityID: "a", Simulated: s1, Measured: m1},
		{EntityID: "b", Simulated: s2, Measured: m2},
	}, []models.Resolution{models.ResolutionHourly})
	if err != nil {
		t.Fatalf("CompareFleet: %v", err)
	}

	agg := report.Resolutions[0].Aggregate
	approx(t, "mean bias", agg.Mean.Bias, 2)
	approx(t, "median bias", agg.Median.Bias, 2)
	approx(t, "mean rmse", agg.Mean.RMSE, 2)
}

func TestCompareFleetSummaries(t *testing.T) {
	e := NewEngine(0)
	series := hourlySeries(models.KindEnergy, 25, func(i int) float64 { return 50 })
	facility := &models.FacilityRecord{ID: "f1", NameplateKW: 100}

	report, err := e.CompareFleet([]EntityPair{
		{EntityID: "f1", Facility: facility, Simulated: series, Measured: series},
	}, []models.Resolution{models.ResolutionHourly})
	if err != nil {
		t.Fatalf("CompareFleet: %v", err)
	}
	if len(report.Summaries) != 1 {
		t.Fatalf("summaries: got %d, want 1", len(report.Summaries))
	}

	s := report.Summaries[0]
	approx(t, "measured energy", s.MeasuredEnergyKWh, 25*50)
	approx(t, "span hours", s.ComparisonSpanHours, 24)
	approx(t, "specific yield", s.SpecificYieldKWhKW, 12.5)
	// 1250 kWh over 24 h against 100 kW nameplate.
	approx(t, "capacity factor", s.CapacityFactorPct, 1250.0/2400.0*100)
}

func TestSeriesEnergyIntegratesPower(t *testing.T) {
	// Constant 10 kW over 4 hourly points: 3 observed steps plus the last
	// point's median step.
	series := hourlySeries(models.KindPower, 4, func(i int) float64 { return 10 })
	kwh, span := seriesEnergyKWh(series)
	approx(t, "kwh", kwh, 40)
	approx(t, "span", span, 3)
}

func TestSeriesEnergyCumulativeRegister(t *testing.T) {
	// Meter-register style: monotone non-decreasing readings.
	series := hourlySeries(models.KindEnergy, 10, func(i int) float64 { return 1000 + float64(i)*50 })
	kwh, _ := seriesEnergyKWh(series)
	approx(t, "register reading", kwh, 1450)

	// Interval energy sums instead.
	interval := hourlySeries(models.KindEnergy, 10, func(i int) float64 { return 50 })
	kwh, _ = seriesEnergyKWh(interval)
	approx(t, "interval sum", kwh, 500)
}

func TestIsCumulative(t *testing.T) {
	register := hourlySeries(models.KindEnergy, 10, func(i int) float64 { return 1000 + float64(i)*50 }).Points
	if !isCumulative(register) {
		t.Error("monotone register not detected")
	}

	interval := hourlySeries(models.KindEnergy, 10, func(i int) float64 { return float64(40 + (i%3)*5) }).Points
	if isCumulative(interval) {
		t.Error("fluctuating interval series misdetected as register")
	}

	if isCumulative(register[:1]) {
		t.Error("single point cannot be a register")
	}
}
