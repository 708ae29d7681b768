// Package pvgis implements the PVGIS weather connector, the no-credential
// fallback source. It serves typical meteorological year (TMY) series from
// the JRC PVGIS JSON API. Arbitrary historical years are outside its
// coverage: the upstream TMY product is the only one that carries the full
// irradiance component set without solar-position math, which is physics
// this system deliberately does not do.
package pvgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/seenimoa/pvbench/internal/source"
	"github.com/seenimoa/pvbench/pkg/models"
)

const (
	providerName   = "pvgis"
	defaultBaseURL = "https://re.jrc.ec.europa.eu/api/v5_2"

	// TMY timestamps mix source years by construction; samples are rebased
	// onto one reference year so the record's time index stays monotonic.
	referenceYear = 1990
)

// Config holds PVGIS endpoint settings. No credentials are required.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Connector fetches TMY series from PVGIS.
type Connector struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates the connector.
func New(cfg Config) *Connector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Connector{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        providerName,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
	}
}

func (c *Connector) Name() string { return providerName }

// Available is always true: PVGIS needs no credentials.
func (c *Connector) Available() bool { return true }

// Coverage: PVGIS spans roughly 65°S–65°N worldwide and serves TMY only.
func (c *Connector) Coverage() source.Coverage {
	return source.Coverage{
		MinLat: -65, MaxLat: 65,
		MinLon: -180, MaxLon: 180,
		TMY: true,
	}
}

// tmyResponse is the subset of the PVGIS TMY payload we consume.
type tmyResponse struct {
	Outputs struct {
		TMYHourly []map[string]any `json:"tmy_hourly"`
	} `json:"outputs"`
}

// tmyFields maps PVGIS TMY column names onto canonical variables.
var tmyFields = map[string]string{
	"G(h)":  models.VarGHI,
	"Gb(n)": models.VarDNI,
	"Gd(h)": models.VarDHI,
	"T2m":   models.VarTempAir,
	"WS10m": models.VarWindSpeed,
}

// Fetch retrieves and parses one TMY series.
func (c *Connector) Fetch(ctx context.Context, req models.TimeSeriesRequest) (*models.WeatherRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, &source.ErrInvalidRequest{Source: providerName, Detail: err.Error()}
	}
	if !c.Coverage().Contains(req) {
		detail := "request outside PVGIS coverage"
		if !req.IsTMY() {
			detail = "PVGIS serves TMY series only"
		}
		return nil, &source.ErrInvalidRequest{Source: providerName, Detail: detail}
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", req.Location.Latitude))
	q.Set("lon", fmt.Sprintf("%.4f", req.Location.Longitude))
	q.Set("outputformat", "json")
	endpoint := c.cfg.BaseURL + "/tmy?" + q.Encode()

	result, err := c.breaker.Execute(func() (any, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, &source.ErrInvalidRequest{Source: providerName, Detail: err.Error()}
		}
		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, &source.ErrUnavailable{Source: providerName, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, &source.ErrRateLimited{Source: providerName}
		case resp.StatusCode >= 500:
			return nil, &source.ErrUnavailable{Source: providerName, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		case resp.StatusCode >= 400:
			return nil, &source.ErrInvalidRequest{Source: providerName, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
		}

		var payload tmyResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, &source.ErrMalformedResponse{Source: providerName, Detail: "unreadable JSON: " + err.Error()}
		}
		return parseTMY(payload, req.Location)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &source.ErrUnavailable{Source: providerName, Err: err}
		}
		return nil, err
	}

	rec := result.(*models.WeatherRecord)
	if err := source.ValidateRecord(rec, providerName); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseTMY(payload tmyResponse, loc models.Location) (*models.WeatherRecord, error) {
	rows := payload.Outputs.TMYHourly
	if len(rows) == 0 {
		return nil, &source.ErrMalformedResponse{Source: providerName, Detail: "empty tmy_hourly"}
	}

	samples := make([]models.Sample, 0, len(rows))
	for _, row := range rows {
		raw, _ := row["time(UTC)"].(string)
		ts, err := time.Parse("20060102:1504", raw)
		if err != nil {
			return nil, &source.ErrMalformedResponse{Source: providerName, Detail: "bad timestamp " + raw}
		}
		// Rebase onto the reference year; TMY months come from different
		// source years.
		ts = time.Date(referenceYear, ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), 0, 0, time.UTC)

		values := make(map[string]float64, len(tmyFields))
		for field, variable := range tmyFields {
			if v, ok := row[field].(float64); ok {
				values[variable] = v
			}
		}
		samples = append(samples, models.Sample{Timestamp: ts, Values: values})
	}

	return &models.WeatherRecord{
		Location: loc,
		Interval: time.Hour,
		Source:   providerName,
		Samples:  samples,
	}, nil
}
