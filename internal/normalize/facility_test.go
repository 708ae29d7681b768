package normalize

import (
	"strings"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestFacilityLegacyLayout(t *testing.T) {
	raw := RawFacility{
		ID:              "plant-1",
		Name:            "Legacy Plant",
		Latitude:        f64(48.1),
		Longitude:       f64(11.6),
		Timezone:        "Europe/Berlin",
		FacilityPowerKW: f64(120),
		PanelGroups: []RawPanelGroup{
			{Name: "roof", Tilt: f64(25), Azimuth: f64(170), PowerKW: f64(80)},
			{Name: "carport", Tilt: f64(10), Azimuth: f64(190), PowerKW: f64(40)},
		},
	}

	rec, err := Facility(raw)
	if err != nil {
		t.Fatalf("Facility: %v", err)
	}
	if rec.Location.Latitude != 48.1 || rec.Location.Longitude != 11.6 {
		t.Errorf("location: got %+v", rec.Location)
	}
	if rec.Location.Timezone != "Europe/Berlin" {
		t.Errorf("timezone: got %q", rec.Location.Timezone)
	}
	if rec.NameplateKW != 120 {
		t.Errorf("nameplate: got %v", rec.NameplateKW)
	}
	if len(rec.PanelGroups) != 2 || rec.PanelGroups[0].TiltDeg != 25 {
		t.Errorf("panel groups: got %+v", rec.PanelGroups)
	}
}

func TestFacilityCamelCaseLayout(t *testing.T) {
	raw := RawFacility{
		ID: "plant-2",
		Coordinates: &struct {
			Lat  *float64 `json:"lat"`
			Long *float64 `json:"long"`
		}{Lat: f64(47.3), Long: f64(8.5)},
		Address: &struct {
			Timezone string   `json:"timezone"`
			Altitude *float64 `json:"altitude"`
		}{Timezone: "Europe/Zurich", Altitude: f64(410)},
		NominalPower:           f64(250),
		TemperatureCoefficient: f64(-0.4),
		PanelGroupsAlt: []RawPanelGroup{
			{Name: "field", Elevation: f64(30), Nominal: f64(250)},
		},
	}

	rec, err := Facility(raw)
	if err != nil {
		t.Fatalf("Facility: %v", err)
	}
	if rec.Location.Latitude != 47.3 || rec.Location.Longitude != 8.5 {
		t.Errorf("location: got %+v", rec.Location)
	}
	if rec.Location.Timezone != "Europe/Zurich" || rec.Location.Elevation != 410 {
		t.Errorf("address fields: got %+v", rec.Location)
	}
	if rec.NameplateKW != 250 {
		t.Errorf("nameplate: got %v", rec.NameplateKW)
	}
	// "elevation" in panel groups is tilt under its older name.
	if rec.PanelGroups[0].TiltDeg != 30 {
		t.Errorf("tilt: got %v", rec.PanelGroups[0].TiltDeg)
	}
	// Missing azimuth defaults to south-facing.
	if rec.PanelGroups[0].AzimuthDeg != 180 {
		t.Errorf("azimuth: got %v, want 180", rec.PanelGroups[0].AzimuthDeg)
	}
	// %/°C coefficient is rescaled to a fraction.
	if rec.TempCoeff != -0.004 {
		t.Errorf("temp coeff: got %v, want -0.004", rec.TempCoeff)
	}
}

func TestFacilityNameplateFallsBackToGroupSum(t *testing.T) {
	raw := RawFacility{
		ID:        "plant-3",
		Latitude:  f64(48.1),
		Longitude: f64(11.6),
		PanelGroups: []RawPanelGroup{
			{Tilt: f64(20), PowerKW: f64(60)},
			{Tilt: f64(20), PowerKW: f64(40)},
		},
	}

	rec, err := Facility(raw)
	if err != nil {
		t.Fatalf("Facility: %v", err)
	}
	if rec.NameplateKW != 100 {
		t.Errorf("nameplate: got %v, want group sum 100", rec.NameplateKW)
	}
}

func TestFacilityErrors(t *testing.T) {
	noCoords := RawFacility{
		ID:          "plant-4",
		PanelGroups: []RawPanelGroup{{Tilt: f64(20), PowerKW: f64(10)}},
	}
	if _, err := Facility(noCoords); err == nil || !strings.Contains(err.Error(), "no coordinates") {
		t.Errorf("missing coordinates: got %v", err)
	}

	noGroups := RawFacility{ID: "plant-5", Latitude: f64(48.1), Longitude: f64(11.6)}
	if _, err := Facility(noGroups); err == nil || !strings.Contains(err.Error(), "no panel groups") {
		t.Errorf("missing groups: got %v", err)
	}

	noTilt := RawFacility{
		ID:          "plant-6",
		Latitude:    f64(48.1),
		Longitude:   f64(11.6),
		PanelGroups: []RawPanelGroup{{PowerKW: f64(10)}},
	}
	if _, err := Facility(noTilt); err == nil || !strings.Contains(err.Error(), "missing tilt") {
		t.Errorf("missing tilt: got %v", err)
	}
}

func TestFacilitiesJSONBareArray(t *testing.T) {
	data := []byte(`[
		{"id": "f1", "latitude": 48.1, "longitude": 11.6,
		 "panel_groups": [{"tilt": 20, "azimuth": 180, "power_kw": 50}]}
	]`)

	recs, err := FacilitiesJSON(data)
	if err != nil {
		t.Fatalf("FacilitiesJSON: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "f1" {
		t.Errorf("got %+v", recs)
	}
}

func TestFacilitiesJSONWrapper(t *testing.T) {
	data := []byte(`{"facilities": [
		{"id": "f2", "coordinates": {"lat": 47.3, "long": 8.5},
		 "nominalPower": 99,
		 "panelGroups": [{"elevation": 25, "nominalPower": 99}]}
	]}`)

	recs, err := FacilitiesJSON(data)
	if err != nil {
		t.Fatalf("FacilitiesJSON: %v", err)
	}
	if len(recs) != 1 || recs[0].NameplateKW != 99 {
		t.Errorf("got %+v", recs)
	}
}

func TestFacilitiesJSONRejectsGarbage(t *testing.T) {
	if _, err := FacilitiesJSON([]byte(`"nope"`)); err == nil {
		t.Error("non-facility JSON accepted")
	}
}
