package models

import "time"

// ValidationMetrics holds the statistical comparison of one entity at one
// resolution. Immutable once computed.
//
// Bias is the mean signed error, measured minus simulated: positive when
// the measurement exceeds the simulation. RelativeRMSE normalizes RMSE by
// the mean measured value. Slope and Intercept come from a least-squares
// fit of simulated against measured (measured as independent variable).
type ValidationMetrics struct {
	N            int     `json:"n"`
	Bias         float64 `json:"bias"`
	MAE          float64 `json:"mae"`
	RMSE         float64 `json:"rmse"`
	RelativeRMSE float64 `json:"relative_rmse"`
	Correlation  float64 `json:"correlation"`
	RSquared     float64 `json:"r_squared"`
	Slope        float64 `json:"regression_slope"`
	Intercept    float64 `json:"regression_intercept"`
}

// EntityResult is the comparison of one entity (typically a facility) at
// one resolution. Unmatched counts record rows present in only one of the
// two series and therefore excluded from the inner join.
type EntityResult struct {
	EntityID           string            `json:"entity_id"`
	Resolution         Resolution        `json:"resolution"`
	Metrics            ValidationMetrics `json:"metrics"`
	UnmatchedSimulated int               `json:"unmatched_simulated"`
	UnmatchedMeasured  int               `json:"unmatched_measured"`
}

// EntitySummary carries per-facility derived figures computed alongside
// the statistical comparison.
type EntitySummary struct {
	EntityID            string  `json:"entity_id"`
	MeasuredEnergyKWh   float64 `json:"measured_energy_kwh"`
	SimulatedEnergyKWh  float64 `json:"simulated_energy_kwh"`
	CapacityFactorPct   float64 `json:"capacity_factor_pct"`   // measured energy / (nameplate × hours)
	SpecificYieldKWhKW  float64 `json:"specific_yield_kwh_kw"` // measured energy per installed kW
	NameplateKW         float64 `json:"nameplate_kw"`
	ComparisonSpanHours float64 `json:"comparison_span_hours"`
}

// AggregateMetrics reports the fleet-level mean and median of each metric
// across entities.
type AggregateMetrics struct {
	Mean   ValidationMetrics `json:"mean"`
	Median ValidationMetrics `json:"median"`
}

// ResolutionSummary aggregates entity results at one resolution. Entities
// with fewer aligned samples than the engine's minimum are excluded from
// the aggregate and listed separately so small-n results cannot distort
// fleet figures.
type ResolutionSummary struct {
	Resolution Resolution       `json:"resolution"`
	Aggregate  AggregateMetrics `json:"aggregate"`
	Included   []string         `json:"included"`
	Excluded   []string         `json:"excluded,omitempty"`
}

// ValidationReport is the full output of a fleet comparison, serializable
// for an external CLI, web route, or file writer.
type ValidationReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Entities    []EntityResult      `json:"entities"`
	Summaries   []EntitySummary     `json:"summaries,omitempty"`
	Resolutions []ResolutionSummary `json:"resolutions"`
}
