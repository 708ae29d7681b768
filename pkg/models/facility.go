package models

import (
	"fmt"
)

// PanelGroup describes one array of identically mounted modules.
type PanelGroup struct {
	Name       string  `json:"name"`
	TiltDeg    float64 `json:"tilt_deg"`    // surface tilt from horizontal, 0–90
	AzimuthDeg float64 `json:"azimuth_deg"` // surface azimuth, -180–180 (180 = south convention preserved from source data)
	PowerKW    float64 `json:"power_kw"`    // DC nameplate of this group
}

// FacilityRecord is the read-only description of one PV site. It is an
// input to both the fetch pipeline and the validator and is never mutated
// by the core.
type FacilityRecord struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Location    Location     `json:"location"`
	NameplateKW float64      `json:"nameplate_kw"`
	PanelGroups []PanelGroup `json:"panel_groups,omitempty"`

	// TempCoeff is the module power temperature coefficient as a fraction
	// per °C (e.g. -0.004). Zero means unknown.
	TempCoeff float64 `json:"temp_coeff,omitempty"`

	// Optional historical reference values.
	ReferenceYieldKWhPerKW float64   `json:"reference_yield_kwh_per_kw,omitempty"`
	MonthlyDistribution    []float64 `json:"monthly_distribution,omitempty"` // 12 fractions summing to ~1
}

// ValidateFacility returns the list of issues found in a facility record.
// An empty slice means the record is usable for fetching and simulation.
func ValidateFacility(f FacilityRecord) []string {
	var issues []string

	if f.ID == "" {
		issues = append(issues, "missing facility id")
	}
	if err := f.Location.Validate(); err != nil {
		issues = append(issues, err.Error())
	}
	if f.NameplateKW <= 0 {
		issues = append(issues, fmt.Sprintf("invalid nameplate capacity: %.2f kW", f.NameplateKW))
	}
	if len(f.MonthlyDistribution) != 0 && len(f.MonthlyDistribution) != 12 {
		issues = append(issues, fmt.Sprintf("monthly distribution has %d entries, want 12", len(f.MonthlyDistribution)))
	}

	for i, g := range f.PanelGroups {
		prefix := fmt.Sprintf("panel group %d", i)
		if g.TiltDeg < 0 || g.TiltDeg > 90 {
			issues = append(issues, fmt.Sprintf("%s: invalid tilt angle %.1f", prefix, g.TiltDeg))
		}
		if g.AzimuthDeg < -180 || g.AzimuthDeg > 180 {
			issues = append(issues, fmt.Sprintf("%s: invalid azimuth angle %.1f", prefix, g.AzimuthDeg))
		}
		if g.PowerKW <= 0 {
			issues = append(issues, fmt.Sprintf("%s: invalid power rating %.2f kW", prefix, g.PowerKW))
		}
	}

	return issues
}

// WeightedOrientation returns the capacity-weighted mean tilt and azimuth
// across panel groups, the single orientation a flat simulator input needs.
func (f FacilityRecord) WeightedOrientation() (tilt, azimuth float64) {
	var totalKW float64
	for _, g := range f.PanelGroups {
		totalKW += g.PowerKW
		tilt += g.TiltDeg * g.PowerKW
		azimuth += g.AzimuthDeg * g.PowerKW
	}
	if totalKW > 0 {
		tilt /= totalKW
		azimuth /= totalKW
	}
	return tilt, azimuth
}
