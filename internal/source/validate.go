package source

import (
	"fmt"

	"github.com/seenimoa/pvbench/pkg/models"
)

// plausibleRange is the generous physical band a variable must stay inside.
type plausibleRange struct {
	min, max float64
}

// plausibleRanges mirrors the validation bands applied to every provider
// response. Values outside fail the whole record as malformed rather than
// silently passing bad data downstream.
var plausibleRanges = map[string]plausibleRange{
	models.VarGHI:       {0, 1500},
	models.VarDNI:       {0, 1200},
	models.VarDHI:       {0, 500},
	models.VarTempAir:   {-50, 60},
	models.VarWindSpeed: {0, 50},
}

// maxImplausibleFraction bounds how many out-of-range samples a record may
// carry before it is rejected outright. A handful of spikes is tolerated
// (sensors glitch); a systematically implausible series is not.
const maxImplausibleFraction = 0.01

// ValidateRecord checks structural invariants and physical plausibility of
// a provider response. A violation returns ErrMalformedResponse attributed
// to sourceName.
func ValidateRecord(rec *models.WeatherRecord, sourceName string) error {
	if rec == nil || len(rec.Samples) == 0 {
		return &ErrMalformedResponse{Source: sourceName, Detail: "empty weather record"}
	}
	if err := rec.Validate(); err != nil {
		return &ErrMalformedResponse{Source: sourceName, Detail: err.Error()}
	}

	violations := make(map[string]int)
	total := 0
	for _, s := range rec.Samples {
		for name, v := range s.Values {
			r, ok := plausibleRanges[name]
			if !ok {
				continue
			}
			total++
			if v < r.min || v > r.max {
				violations[name]++
			}
		}
	}
	if total == 0 {
		return &ErrMalformedResponse{Source: sourceName, Detail: "no recognized weather variables"}
	}

	for name, n := range violations {
		if float64(n) > float64(total)*maxImplausibleFraction {
			r := plausibleRanges[name]
			return &ErrMalformedResponse{
				Source: sourceName,
				Detail: fmt.Sprintf("%d %s values outside plausible range [%.0f, %.0f]", n, name, r.min, r.max),
			}
		}
	}
	return nil
}
