package models

import (
	"context"
	"time"
)

// Quality marks whether a sample passed plausibility checks. Suspect
// samples are retained, never dropped; downstream consumers decide.
type Quality string

const (
	QualityGood    Quality = "good"
	QualitySuspect Quality = "suspect"
)

// VariableKind determines how a variable aggregates across time:
// energy-like quantities sum, power-like quantities average. The choice
// is always explicit — never inferred from data.
type VariableKind string

const (
	KindPower       VariableKind = "power"       // resampled by mean
	KindEnergy      VariableKind = "energy"      // resampled by sum
	KindIrradiance  VariableKind = "irradiance"  // resampled by mean
	KindTemperature VariableKind = "temperature" // resampled by mean
	KindRatio       VariableKind = "ratio"       // resampled by mean
)

// Sums reports whether series of this kind resample by summation.
func (k VariableKind) Sums() bool { return k == KindEnergy }

// Resolution is a comparison time grain for the validation engine.
type Resolution string

const (
	ResolutionHourly  Resolution = "hourly"
	ResolutionDaily   Resolution = "daily"
	ResolutionMonthly Resolution = "monthly"
	ResolutionAnnual  Resolution = "annual"
)

// SeriesPoint is one observation in a measured or simulated series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Quality   Quality   `json:"quality,omitempty"` // empty means good
}

// Series is a single-variable time series in canonical units, the common
// currency of the normalizer, the simulator boundary, and the validator.
type Series struct {
	Variable string        `json:"variable"`
	Unit     string        `json:"unit"`
	Kind     VariableKind  `json:"kind"`
	Points   []SeriesPoint `json:"points"`
}

// GoodPoints returns the points not flagged suspect.
func (s Series) GoodPoints() []SeriesPoint {
	out := make([]SeriesPoint, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Quality != QualitySuspect {
			out = append(out, p)
		}
	}
	return out
}

// Simulator is the external physics boundary: it accepts a facility
// configuration plus a weather series and returns the simulated output
// series. The core never inspects its internals.
type Simulator func(ctx context.Context, facility FacilityRecord, weather WeatherRecord) (Series, error)
