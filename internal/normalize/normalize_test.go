package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/seenimoa/pvbench/pkg/models"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		value    float64
		unit     string
		want     float64
		wantUnit string
	}{
		{1000, "W", 1, "kW"},
		{2.5, "kW", 2.5, "kW"},
		{3, "MW", 3000, "kW"},
		{1500, "Wh", 1.5, "kWh"},
		{2, "MWh", 2000, "kWh"},
		{96, "%", 0.96, "ratio"},
		{96, "percent", 0.96, "ratio"},
		{0.96, "ratio", 0.96, "ratio"},
		{800, "W/m2", 800, "W/m2"},
		{800, "w/m^2", 800, "W/m2"},
		{0.8, "kW/m2", 800, "W/m2"},
		{21.5, "C", 21.5, "C"},
		{21.5, "degC", 21.5, "C"},
		{36, "km/h", 10, "m/s"},
	}
	for _, tt := range tests {
		got, unit, err := Convert(tt.value, tt.unit)
		if err != nil {
			t.Errorf("Convert(%v, %q): %v", tt.value, tt.unit, err)
			continue
		}
		if got != tt.want || unit != tt.wantUnit {
			t.Errorf("Convert(%v, %q): got %v %s, want %v %s",
				tt.value, tt.unit, got, unit, tt.want, tt.wantUnit)
		}
	}
}

func TestConvertUnrecognizedUnit(t *testing.T) {
	_, _, err := Convert(1, "XYZ")
	var ue *ErrUnrecognizedUnit
	if !errors.As(err, &ue) {
		t.Fatalf("error: got %T (%v), want *ErrUnrecognizedUnit", err, err)
	}
	if ue.Unit != "XYZ" {
		t.Errorf("unit in error: got %q", ue.Unit)
	}
}

func TestConvertNormalizesCase(t *testing.T) {
	got, _, err := Convert(1000, "  w  ")
	if err != nil || got != 1 {
		t.Errorf("Convert with whitespace and lowercase: got %v, err %v", got, err)
	}
}

func TestSeriesConvertsAndFlags(t *testing.T) {
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	raw := models.Series{
		Variable: "power",
		Unit:     "W",
		Kind:     models.KindPower,
		Points: []models.SeriesPoint{
			{Timestamp: start, Value: 50_000, Quality: models.QualityGood},
			{Timestamp: start.Add(time.Hour), Value: 75_000, Quality: models.QualityGood},
			{Timestamp: start.Add(2 * time.Hour), Value: 5e12, Quality: models.QualityGood}, // implausible after conversion
		},
	}

	out, err := Series(raw, "W")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if out.Unit != "kW" {
		t.Errorf("unit: got %q, want kW", out.Unit)
	}
	if out.Points[0].Value != 50 {
		t.Errorf("point 0: got %v, want 50", out.Points[0].Value)
	}
	if out.Points[0].Quality != models.QualityGood {
		t.Errorf("point 0 quality: got %s", out.Points[0].Quality)
	}

	// The outlier is flagged but retained.
	if out.Points[2].Quality != models.QualitySuspect {
		t.Errorf("outlier quality: got %s, want suspect", out.Points[2].Quality)
	}
	if len(out.Points) != 3 {
		t.Errorf("points: got %d, want 3 (flagging never drops)", len(out.Points))
	}
}

func TestSeriesUnknownUnit(t *testing.T) {
	if _, err := Series(models.Series{}, "furlongs"); err == nil {
		t.Error("unknown unit must fail")
	}
}

func TestTempCoefficient(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.4, -0.004},   // %/°C from older exports
		{-0.004, -0.004}, // already a fraction
		{0.35, 0.0035},
		{0, 0},
	}
	for _, tt := range tests {
		if got := TempCoefficient(tt.in); got != tt.want {
			t.Errorf("TempCoefficient(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
