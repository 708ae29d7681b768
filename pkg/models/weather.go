// Package models defines the shared value objects of the PVBench core:
// locations, time-series requests, weather records, facility metadata,
// fetch outcomes, and validation results. Everything here is plain data —
// no I/O, no provider knowledge.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Canonical weather variable names. Connectors translate provider-specific
// column names into these before returning a WeatherRecord.
const (
	VarGHI       = "ghi"        // global horizontal irradiance, W/m²
	VarDNI       = "dni"        // direct normal irradiance, W/m²
	VarDHI       = "dhi"        // diffuse horizontal irradiance, W/m²
	VarTempAir   = "temp_air"   // air temperature, °C
	VarWindSpeed = "wind_speed" // wind speed, m/s
)

// RequiredWeatherVariables are the variables a simulation-grade weather
// series must carry. A record missing any of them entirely fails
// completeness validation.
var RequiredWeatherVariables = []string{VarGHI, VarDNI, VarDHI, VarTempAir, VarWindSpeed}

// Location identifies a point on the globe. Immutable once constructed;
// used only as a lookup/query key.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation,omitempty"` // meters above sea level, 0 if unknown
	Timezone  string  `json:"timezone,omitempty"`  // IANA identifier, e.g. "Europe/Berlin"
}

// Validate checks coordinate ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("invalid latitude %.4f: must be between -90 and 90", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("invalid longitude %.4f: must be between -180 and 180", l.Longitude)
	}
	return nil
}

// TimeSeriesRequest describes one weather data lookup. It is a value
// object: two requests with equal fields address the same cache entry.
//
// Year == 0 requests a typical meteorological year (TMY) series. Start/End
// give an explicit half-open window [Start, End) and take precedence over
// Year when both are set.
type TimeSeriesRequest struct {
	Location  Location      `json:"location"`
	Year      int           `json:"year,omitempty"`
	Start     time.Time     `json:"start,omitempty"`
	End       time.Time     `json:"end,omitempty"`
	Variables []string      `json:"variables"`
	Interval  time.Duration `json:"interval"` // nominal sample spacing
}

// IsTMY reports whether the request addresses typical-year data rather
// than a specific historical period.
func (r TimeSeriesRequest) IsTMY() bool {
	return r.Year == 0 && r.Start.IsZero()
}

// Span returns the half-open [start, end) window the request covers.
// For TMY requests both times are zero.
func (r TimeSeriesRequest) Span() (time.Time, time.Time) {
	if !r.Start.IsZero() {
		return r.Start, r.End
	}
	if r.Year != 0 {
		start := time.Date(r.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	}
	return time.Time{}, time.Time{}
}

// Validate checks the request is well-formed.
func (r TimeSeriesRequest) Validate() error {
	if err := r.Location.Validate(); err != nil {
		return err
	}
	if !r.Start.IsZero() && !r.End.After(r.Start) {
		return fmt.Errorf("invalid window: end %s not after start %s", r.End, r.Start)
	}
	if r.Interval < 0 {
		return fmt.Errorf("invalid interval %s", r.Interval)
	}
	return nil
}

// CacheKey derives the content address of this request: a SHA-256 over a
// canonical textual encoding. Equal requests always hash to the same key;
// variable order does not matter.
func (r TimeSeriesRequest) CacheKey() string {
	vars := make([]string, len(r.Variables))
	copy(vars, r.Variables)
	sort.Strings(vars)

	var b strings.Builder
	fmt.Fprintf(&b, "lat=%.4f;lon=%.4f;", r.Location.Latitude, r.Location.Longitude)
	if r.IsTMY() {
		b.WriteString("period=tmy;")
	} else if !r.Start.IsZero() {
		fmt.Fprintf(&b, "start=%d;end=%d;", r.Start.Unix(), r.End.Unix())
	} else {
		fmt.Fprintf(&b, "year=%d;", r.Year)
	}
	fmt.Fprintf(&b, "interval=%d;vars=%s", int64(r.Interval/time.Second), strings.Join(vars, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Sample is one time-indexed observation. A variable absent from Values
// is missing for that timestamp.
type Sample struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Value returns the sample's value for a variable and whether it is present.
func (s Sample) Value(variable string) (float64, bool) {
	v, ok := s.Values[variable]
	return v, ok
}

// WeatherRecord is an ordered, time-indexed sequence of weather samples
// produced by a single source for a single request.
type WeatherRecord struct {
	Location Location      `json:"location"`
	Interval time.Duration `json:"interval"`
	Source   string        `json:"source,omitempty"`
	Samples  []Sample      `json:"samples"`
}

// Validate enforces the record invariants: timestamps strictly increasing
// at a uniform nominal interval, tolerating single-step gaps (one missing
// sample) but rejecting longer jumps and irregular spacing.
func (w *WeatherRecord) Validate() error {
	if len(w.Samples) == 0 {
		return fmt.Errorf("empty weather record")
	}
	if w.Interval <= 0 {
		return fmt.Errorf("weather record has no nominal interval")
	}
	for i := 1; i < len(w.Samples); i++ {
		step := w.Samples[i].Timestamp.Sub(w.Samples[i-1].Timestamp)
		if step <= 0 {
			return fmt.Errorf("timestamps not strictly increasing at index %d", i)
		}
		// A step of exactly 2× the interval is a single tolerated gap.
		if step != w.Interval && step != 2*w.Interval {
			return fmt.Errorf("irregular interval %s at index %d (nominal %s)", step, i, w.Interval)
		}
	}
	return nil
}

// HasVariables reports whether every named variable is present in at least
// one sample of the record.
func (w *WeatherRecord) HasVariables(vars []string) bool {
	seen := make(map[string]bool, len(vars))
	for _, s := range w.Samples {
		for v := range s.Values {
			seen[v] = true
		}
	}
	for _, v := range vars {
		if !seen[v] {
			return false
		}
	}
	return true
}

// Period is a half-open time window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MissingPeriods computes the gaps between the requested span and the
// timestamps actually present in the record. TMY requests have no fixed
// span and report no gaps.
func (w *WeatherRecord) MissingPeriods(req TimeSeriesRequest) []Period {
	start, end := req.Span()
	if start.IsZero() || w.Interval <= 0 {
		return nil
	}

	present := make(map[int64]bool, len(w.Samples))
	for _, s := range w.Samples {
		present[s.Timestamp.Unix()] = true
	}

	var gaps []Period
	var open *Period
	for t := start; t.Before(end); t = t.Add(w.Interval) {
		if present[t.Unix()] {
			open = nil
			continue
		}
		if open == nil {
			gaps = append(gaps, Period{Start: t, End: t.Add(w.Interval)})
			open = &gaps[len(gaps)-1]
		} else {
			open.End = t.Add(w.Interval)
		}
	}
	return gaps
}

// Coverage returns the fraction of the requested span covered by samples,
// in [0, 1]. TMY requests report full coverage when any samples exist.
func (w *WeatherRecord) Coverage(req TimeSeriesRequest) float64 {
	start, end := req.Span()
	if start.IsZero() {
		if len(w.Samples) > 0 {
			return 1
		}
		return 0
	}
	if w.Interval <= 0 {
		return 0
	}
	expected := int(end.Sub(start) / w.Interval)
	if expected <= 0 {
		return 0
	}
	covered := 0
	for _, s := range w.Samples {
		if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			covered++
		}
	}
	if covered > expected {
		covered = expected
	}
	return float64(covered) / float64(expected)
}
