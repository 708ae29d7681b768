package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/seenimoa/pvbench/pkg/models"
)

// RawFacility mirrors the two facility dataset generations. The older
// export uses snake_case with "tilt" and "power_kw"; the newer one uses
// camelCase with "elevation" (meaning tilt) and "nominalPower", and nests
// coordinates. The mapping between them is explicit here, not inferred.
type RawFacility struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	Coordinates *struct {
		Lat  *float64 `json:"lat"`
		Long *float64 `json:"long"`
	} `json:"coordinates"`

	Address *struct {
		Timezone string   `json:"timezone"`
		Altitude *float64 `json:"altitude"`
	} `json:"address"`

	Timezone string `json:"timezone"`

	FacilityPowerKW *float64 `json:"facility_power_kw"`
	NominalPower    *float64 `json:"nominalPower"`

	TemperatureCoefficient *float64 `json:"temperatureCoefficient"`

	PanelGroups    []RawPanelGroup `json:"panel_groups"`
	PanelGroupsAlt []RawPanelGroup `json:"panelGroups"`
}

// RawPanelGroup carries both naming variants for one array.
type RawPanelGroup struct {
	Name      string   `json:"name"`
	Tilt      *float64 `json:"tilt"`
	Elevation *float64 `json:"elevation"` // tilt under its older name
	Azimuth   *float64 `json:"azimuth"`
	PowerKW   *float64 `json:"power_kw"`
	Nominal   *float64 `json:"nominalPower"`
}

// Facility reconciles a raw facility into the canonical FacilityRecord.
func Facility(raw RawFacility) (models.FacilityRecord, error) {
	rec := models.FacilityRecord{
		ID:   raw.ID,
		Name: raw.Name,
	}

	switch {
	case raw.Latitude != nil && raw.Longitude != nil:
		rec.Location.Latitude = *raw.Latitude
		rec.Location.Longitude = *raw.Longitude
	case raw.Coordinates != nil && raw.Coordinates.Lat != nil && raw.Coordinates.Long != nil:
		rec.Location.Latitude = *raw.Coordinates.Lat
		rec.Location.Longitude = *raw.Coordinates.Long
	default:
		return rec, fmt.Errorf("facility %s: no coordinates", raw.ID)
	}

	if raw.Timezone != "" {
		rec.Location.Timezone = raw.Timezone
	} else if raw.Address != nil {
		rec.Location.Timezone = raw.Address.Timezone
	}
	if raw.Address != nil && raw.Address.Altitude != nil {
		rec.Location.Elevation = *raw.Address.Altitude
	}

	groups := raw.PanelGroups
	if len(groups) == 0 {
		groups = raw.PanelGroupsAlt
	}
	if len(groups) == 0 {
		return rec, fmt.Errorf("facility %s: no panel groups", raw.ID)
	}

	var totalKW float64
	for i, g := range groups {
		pg := models.PanelGroup{Name: g.Name}

		switch {
		case g.Tilt != nil:
			pg.TiltDeg = *g.Tilt
		case g.Elevation != nil:
			pg.TiltDeg = *g.Elevation
		default:
			return rec, fmt.Errorf("facility %s: panel group %d missing tilt", raw.ID, i)
		}

		if g.Azimuth != nil {
			pg.AzimuthDeg = *g.Azimuth
		} else {
			pg.AzimuthDeg = 180 // south-facing default from the source datasets
		}

		switch {
		case g.PowerKW != nil:
			pg.PowerKW = *g.PowerKW
		case g.Nominal != nil:
			pg.PowerKW = *g.Nominal
		default:
			return rec, fmt.Errorf("facility %s: panel group %d missing power rating", raw.ID, i)
		}

		totalKW += pg.PowerKW
		rec.PanelGroups = append(rec.PanelGroups, pg)
	}

	switch {
	case raw.FacilityPowerKW != nil:
		rec.NameplateKW = *raw.FacilityPowerKW
	case raw.NominalPower != nil:
		rec.NameplateKW = *raw.NominalPower
	default:
		rec.NameplateKW = totalKW
	}

	if raw.TemperatureCoefficient != nil {
		rec.TempCoeff = TempCoefficient(*raw.TemperatureCoefficient)
	}

	return rec, nil
}

// FacilitiesJSON decodes a facility dataset file. Both layouts are
// accepted: a bare array, or an object with a "facilities" key.
func FacilitiesJSON(data []byte) ([]models.FacilityRecord, error) {
	var wrapper struct {
		Facilities []RawFacility `json:"facilities"`
	}
	raws := wrapper.Facilities
	if err := json.Unmarshal(data, &wrapper); err != nil || len(wrapper.Facilities) == 0 {
		var list []RawFacility
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("facility data: expected a facility array or a \"facilities\" key: %w", err)
		}
		raws = list
	} else {
		raws = wrapper.Facilities
	}

	out := make([]models.FacilityRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := Facility(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
