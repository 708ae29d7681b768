// Package source defines the weather provider abstraction: a Connector
// interface every provider implements, the shared error taxonomy, and the
// plausibility validation applied to every response. No component outside
// a concrete connector ever parses provider-specific payloads; the only
// capability the rest of the system depends on is "produce a WeatherRecord
// for a request".
package source

import (
	"context"

	"github.com/seenimoa/pvbench/pkg/models"
)

// Coverage describes the geographic and temporal bounds a provider can
// serve. Requests outside coverage fail fast with ErrInvalidRequest and
// never reach the network.
type Coverage struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	MinYear        int
	MaxYear        int
	TMY            bool // whether the provider can serve typical-year series
}

// Contains reports whether the request falls inside this coverage.
func (c Coverage) Contains(req models.TimeSeriesRequest) bool {
	loc := req.Location
	if loc.Latitude < c.MinLat || loc.Latitude > c.MaxLat {
		return false
	}
	if loc.Longitude < c.MinLon || loc.Longitude > c.MaxLon {
		return false
	}
	if req.IsTMY() {
		return c.TMY
	}
	start, end := req.Span()
	if start.Year() < c.MinYear || end.AddDate(0, 0, -1).Year() > c.MaxYear {
		return false
	}
	return true
}

// Connector fetches a raw weather time series from one external provider.
// Implementations translate provider column names into the canonical
// variable set and validate physical plausibility before returning.
type Connector interface {
	// Name identifies the provider for provenance and rate-limit channels.
	Name() string

	// Coverage returns the provider's valid request bounds.
	Coverage() Coverage

	// Fetch retrieves the series for the request. It fails with one of the
	// package's typed errors: ErrInvalidRequest, ErrRateLimited,
	// ErrUnavailable, or ErrMalformedResponse.
	Fetch(ctx context.Context, req models.TimeSeriesRequest) (*models.WeatherRecord, error)

	// Available reports whether the connector is configured well enough to
	// attempt fetches (e.g. credentials present).
	Available() bool
}
