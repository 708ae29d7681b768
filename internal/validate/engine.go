package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/seenimoa/pvbench/pkg/models"
)

// DefaultMinSamples is the minimum aligned sample count an entity needs at
// a resolution to enter the fleet aggregate.
const DefaultMinSamples = 12

// Engine compares simulated and measured series. It carries no state
// beyond configuration and is safe for concurrent use.
type Engine struct {
	minSamples int
}

// NewEngine creates an engine. minSamples <= 0 selects the default.
func NewEngine(minSamples int) *Engine {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Engine{minSamples: minSamples}
}

// EntityPair is one entity's simulated/measured input to a fleet
// comparison. Facility is optional and only feeds the derived summary
// (capacity factor, specific yield).
type EntityPair struct {
	EntityID  string
	Facility  *models.FacilityRecord
	Simulated models.Series
	Measured  models.Series
}

// alignedPair holds the inner join of two series at native resolution.
type alignedPair struct {
	timestamps []time.Time
	simulated  []float64
	measured   []float64

	unmatchedSim  int
	unmatchedMeas int
}

// align inner-joins the two series on their timestamps. Points flagged
// suspect are excluded up front; rows present in only one series are
// counted, never silently discarded.
func align(simulated, measured models.Series) alignedPair {
	simGood := simulated.GoodPoints()
	measGood := measured.GoodPoints()

	measByTS := make(map[int64]float64, len(measGood))
	for _, p := range measGood {
		measByTS[p.Timestamp.Unix()] = p.Value
	}

	var a alignedPair
	matched := make(map[int64]bool, len(simGood))
	for _, p := range simGood {
		ts := p.Timestamp.Unix()
		mv, ok := measByTS[ts]
		if !ok {
			a.unmatchedSim++
			continue
		}
		matched[ts] = true
		a.timestamps = append(a.timestamps, p.Timestamp)
		a.simulated = append(a.simulated, p.Value)
		a.measured = append(a.measured, mv)
	}
	for _, p := range measGood {
		if !matched[p.Timestamp.Unix()] {
			a.unmatchedMeas++
		}
	}
	return a
}

// bucketStart truncates a timestamp to its resolution boundary.
func bucketStart(ts time.Time, res models.Resolution) time.Time {
	ts = ts.UTC()
	switch res {
	case models.ResolutionHourly:
		return ts.Truncate(time.Hour)
	case models.ResolutionDaily:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	case models.ResolutionMonthly:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.ResolutionAnnual:
		return time.Date(ts.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return ts
}

// resample aggregates an aligned pair to a resolution: summation for
// energy-like kinds, averaging otherwise. The kind is supplied explicitly
// by the caller — resolution behavior is never inferred from data.
func resample(a alignedPair, res models.Resolution, kind models.VariableKind) (sim, meas []float64) {
	type bucket struct {
		simSum, measSum float64
		n               int
	}
	buckets := make(map[time.Time]*bucket)
	var order []time.Time
	for i, ts := range a.timestamps {
		key := bucketStart(ts, res)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.simSum += a.simulated[i]
		b.measSum += a.measured[i]
		b.n++
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	sim = make([]float64, len(order))
	meas = make([]float64, len(order))
	for i, key := range order {
		b := buckets[key]
		if kind.Sums() {
			sim[i] = b.simSum
			meas[i] = b.measSum
		} else {
			sim[i] = b.simSum / float64(b.n)
			meas[i] = b.measSum / float64(b.n)
		}
	}
	return sim, meas
}

// Compare evaluates one entity at each requested resolution.
func (e *Engine) Compare(entityID string, simulated, measured models.Series, resolutions []models.Resolution) ([]models.EntityResult, error) {
	if len(resolutions) == 0 {
		return nil, fmt.Errorf("no resolutions requested")
	}
	if simulated.Kind != measured.Kind {
		return nil, fmt.Errorf("kind mismatch: simulated %q vs measured %q", simulated.Kind, measured.Kind)
	}

	a := align(simulated, measured)

	results := make([]models.EntityResult, 0, len(resolutions))
	for _, res := range resolutions {
		sim, meas := resample(a, res, measured.Kind)
		results = append(results, models.EntityResult{
			EntityID:           entityID,
			Resolution:         res,
			Metrics:            computeMetrics(sim, meas),
			UnmatchedSimulated: a.unmatchedSim,
			UnmatchedMeasured:  a.unmatchedMeas,
		})
	}
	return results, nil
}

// CompareFleet runs Compare over every entity and aggregates per
// resolution. Entities below the minimum sample threshold at a resolution
// are excluded from that resolution's aggregate and listed separately.
func (e *Engine) CompareFleet(pairs []EntityPair, resolutions []models.Resolution) (*models.ValidationReport, error) {
	report := &models.ValidationReport{GeneratedAt: time.Now()}

	for _, p := range pairs {
		results, err := e.Compare(p.EntityID, p.Simulated, p.Measured, resolutions)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", p.EntityID, err)
		}
		report.Entities = append(report.Entities, results...)

		if p.Facility != nil {
			report.Summaries = append(report.Summaries, summarize(p))
		}
	}

	for _, res := range resolutions {
		report.Resolutions = append(report.Resolutions, e.aggregate(report.Entities, res))
	}
	return report, nil
}

// summarize derives the per-facility energy figures from the measured and
// simulated series. Energy-like series sum directly; power-like series are
// integrated assuming the spacing between consecutive points.
func summarize(p EntityPair) models.EntitySummary {
	s := models.EntitySummary{
		EntityID:    p.EntityID,
		NameplateKW: p.Facility.NameplateKW,
	}

	s.MeasuredEnergyKWh, s.ComparisonSpanHours = seriesEnergyKWh(p.Measured)
	s.SimulatedEnergyKWh, _ = seriesEnergyKWh(p.Simulated)

	if s.NameplateKW > 0 && s.ComparisonSpanHours > 0 {
		maxPossible := s.NameplateKW * s.ComparisonSpanHours
		s.CapacityFactorPct = s.MeasuredEnergyKWh / maxPossible * 100
		s.SpecificYieldKWhKW = s.MeasuredEnergyKWh / s.NameplateKW
	}
	return s
}

// seriesEnergyKWh totals a series as energy. For energy kinds the values
// sum; a cumulative register (monotone non-decreasing with a max far above
// the increments) reports its final reading instead of a sum. Power kinds
// integrate value × step.
func seriesEnergyKWh(s models.Series) (kwh, spanHours float64) {
	points := s.GoodPoints()
	if len(points) == 0 {
		return 0, 0
	}
	spanHours = points[len(points)-1].Timestamp.Sub(points[0].Timestamp).Hours()

	if s.Kind == models.KindEnergy {
		if isCumulative(points) {
			return points[len(points)-1].Value, spanHours
		}
		var sum float64
		for _, p := range points {
			sum += p.Value
		}
		return sum, spanHours
	}

	// Integrate power over the observed steps; the last point gets the
	// median step of the series.
	var total float64
	for i := 0; i < len(points)-1; i++ {
		step := points[i+1].Timestamp.Sub(points[i].Timestamp).Hours()
		total += points[i].Value * step
	}
	if len(points) > 1 {
		total += points[len(points)-1].Value * medianStepHours(points)
	}
	return total, spanHours
}

// isCumulative detects meter-register style energy series: monotone
// non-decreasing, with the final value dominating the mean increment.
func isCumulative(points []models.SeriesPoint) bool {
	if len(points) < 2 {
		return false
	}
	var incSum float64
	for i := 1; i < len(points); i++ {
		d := points[i].Value - points[i-1].Value
		if d < 0 {
			return false
		}
		incSum += d
	}
	last := points[len(points)-1].Value
	return last > 0 && incSum > 0 && last >= incSum*0.9
}

func medianStepHours(points []models.SeriesPoint) float64 {
	steps := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		steps = append(steps, points[i].Timestamp.Sub(points[i-1].Timestamp).Hours())
	}
	return median(steps)
}

// aggregate builds the fleet summary for one resolution.
func (e *Engine) aggregate(entities []models.EntityResult, res models.Resolution) models.ResolutionSummary {
	summary := models.ResolutionSummary{Resolution: res}

	var included []models.ValidationMetrics
	for _, er := range entities {
		if er.Resolution != res {
			continue
		}
		if er.Metrics.N < e.minSamples {
			summary.Excluded = append(summary.Excluded, er.EntityID)
			continue
		}
		summary.Included = append(summary.Included, er.EntityID)
		included = append(included, er.Metrics)
	}

	if len(included) > 0 {
		summary.Aggregate.Mean = combine(included, mean)
		summary.Aggregate.Median = combine(included, median)
	}
	return summary
}

// combine applies a reducer metric-by-metric across entities.
func combine(ms []models.ValidationMetrics, reduce func([]float64) float64) models.ValidationMetrics {
	pick := func(get func(models.ValidationMetrics) float64) float64 {
		vals := make([]float64, len(ms))
		for i, m := range ms {
			vals[i] = get(m)
		}
		return reduce(vals)
	}

	return models.ValidationMetrics{
		N:            int(pick(func(m models.ValidationMetrics) float64 { return float64(m.N) })),
		Bias:         pick(func(m models.ValidationMetrics) float64 { return m.Bias }),
		MAE:          pick(func(m models.ValidationMetrics) float64 { return m.MAE }),
		RMSE:         pick(func(m models.ValidationMetrics) float64 { return m.RMSE }),
		RelativeRMSE: pick(func(m models.ValidationMetrics) float64 { return m.RelativeRMSE }),
		Correlation:  pick(func(m models.ValidationMetrics) float64 { return m.Correlation }),
		RSquared:     pick(func(m models.ValidationMetrics) float64 { return m.RSquared }),
		Slope:        pick(func(m models.ValidationMetrics) float64 { return m.Slope }),
		Intercept:    pick(func(m models.ValidationMetrics) float64 { return m.Intercept }),
	}
}
