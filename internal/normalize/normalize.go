// Package normalize converts heterogeneous raw units into the canonical
// schema and reconciles the field-naming variants found across data-source
// generations. Every conversion is one table lookup — no per-call math
// lives anywhere else.
package normalize

import (
	"fmt"
	"strings"

	"github.com/seenimoa/pvbench/pkg/models"
)

// ErrUnrecognizedUnit means the conversion table has no entry for a unit.
// Callers keep the record with the field omitted and a warning; this is
// never a hard batch failure.
type ErrUnrecognizedUnit struct {
	Unit string
}

func (e *ErrUnrecognizedUnit) Error() string {
	return fmt.Sprintf("unrecognized unit %q", e.Unit)
}

// conversion scales a source unit into its canonical unit.
type conversion struct {
	canonical string
	factor    float64
}

// conversions is the single source of truth for unit handling. Keys are
// lowercase; lookup normalizes case and common spelling variants.
var conversions = map[string]conversion{
	// power → kW
	"w":  {"kW", 0.001},
	"kw": {"kW", 1},
	"mw": {"kW", 1000},

	// energy → kWh
	"wh":  {"kWh", 0.001},
	"kwh": {"kWh", 1},
	"mwh": {"kWh", 1000},

	// ratios → dimensionless fraction
	"%":       {"ratio", 0.01},
	"percent": {"ratio", 0.01},
	"ratio":   {"ratio", 1},

	// irradiance → W/m²
	"w/m2":  {"W/m2", 1},
	"w/m^2": {"W/m2", 1},
	"kw/m2": {"W/m2", 1000},

	// temperature → °C (offset scales are out of scope for the table;
	// providers deliver Celsius)
	"c":    {"C", 1},
	"degc": {"C", 1},

	// wind speed → m/s
	"m/s":  {"m/s", 1},
	"km/h": {"m/s", 1.0 / 3.6},
}

// plausible post-conversion bands per canonical unit. Values outside are
// flagged suspect, never dropped or silently fixed.
var plausibleAfter = map[string]struct{ min, max float64 }{
	"kW":    {0, 2e6},    // up to 2 GW — generous fleet ceiling
	"kWh":   {0, 2e10},   // cumulative registers included
	"ratio": {0, 1.5},    // performance ratios can exceed 1 briefly
	"W/m2":  {0, 1500},
	"C":     {-50, 60},
	"m/s":   {0, 50},
}

// lookup resolves a unit hint against the table.
func lookup(unit string) (conversion, error) {
	conv, ok := conversions[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return conversion{}, &ErrUnrecognizedUnit{Unit: unit}
	}
	return conv, nil
}

// Convert scales a single value from the hinted unit into its canonical
// unit, returning the canonical unit name.
func Convert(value float64, unit string) (float64, string, error) {
	conv, err := lookup(unit)
	if err != nil {
		return 0, "", err
	}
	return value * conv.factor, conv.canonical, nil
}

// Series converts every point of a raw series from the hinted unit into
// canonical units and flags values outside the plausible post-conversion
// band as suspect. Flagged points are retained for inspection; downstream
// consumers opt out via GoodPoints.
func Series(raw models.Series, unitHint string) (models.Series, error) {
	conv, err := lookup(unitHint)
	if err != nil {
		return models.Series{}, err
	}

	band, hasBand := plausibleAfter[conv.canonical]
	out := models.Series{
		Variable: raw.Variable,
		Unit:     conv.canonical,
		Kind:     raw.Kind,
		Points:   make([]models.SeriesPoint, len(raw.Points)),
	}
	for i, p := range raw.Points {
		v := p.Value * conv.factor
		q := p.Quality
		if hasBand && (v < band.min || v > band.max) {
			q = models.QualitySuspect
		}
		out.Points[i] = models.SeriesPoint{Timestamp: p.Timestamp, Value: v, Quality: q}
	}
	return out, nil
}

// TempCoefficient normalizes a module temperature coefficient to a
// fraction per °C. Magnitudes above 0.01 are %/°C from older datasets and
// are divided by 100.
func TempCoefficient(v float64) float64 {
	if v > 0.01 || v < -0.01 {
		return v / 100
	}
	return v
}
