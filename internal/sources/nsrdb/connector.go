// Package nsrdb implements the NREL NSRDB (PSM3) weather connector.
// Data is fetched from the psm3-download CSV endpoint; an API key and a
// registered email are required.
package nsrdb

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/seenimoa/pvbench/internal/source"
	"github.com/seenimoa/pvbench/pkg/models"
)

const (
	providerName   = "nsrdb"
	defaultBaseURL = "https://developer.nrel.gov/api/nsrdb/v2/solar"
)

// psm3Attributes maps the canonical variable set onto PSM3 attribute and
// column names.
var psm3Attributes = []struct {
	query    string // attribute name in the request
	column   string // column header in the CSV response
	variable string // canonical variable
}{
	{"ghi", "GHI", models.VarGHI},
	{"dni", "DNI", models.VarDNI},
	{"dhi", "DHI", models.VarDHI},
	{"air_temperature", "Temperature", models.VarTempAir},
	{"wind_speed", "Wind Speed", models.VarWindSpeed},
}

// Config holds NSRDB credentials and endpoint settings.
type Config struct {
	APIKey  string
	Email   string
	BaseURL string
	Timeout time.Duration
}

// Connector fetches PSM3 series from NSRDB.
type Connector struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates the connector. Missing credentials leave it constructible
// but unavailable, so a partially configured deployment can still run on
// the fallback provider.
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

// Available reports whether credentials are configured.
func (c *Connector) Available() bool {
	return c.cfg.APIKey != "" && c.cfg.Email != ""
}

// Coverage: PSM3 covers the Americas and surrounding waters. Historical
// years run 1998 through the most recent complete year; TMY is served.
func (c *Connector) Coverage() source.Coverage {
	return source.Coverage{
		MinLat: -21, MaxLat: 60,
		MinLon: -180, MaxLon: -16,
		MinYear: 1998, MaxYear: time.Now().Year() - 1,
		TMY: true,
	}
}

// Fetch retrieves and parses one PSM3 CSV series.
func (c *Connector) Fetch(ctx context.Context, req models.TimeSeriesRequest) (*models.WeatherRecord, error) {
	if !c.Available() {
		return nil, &source.ErrInvalidRequest{Source: providerName, Detail: "missing NSRDB API key or email"}
	}
	if err := req.Validate(); err != nil {
		return nil, &source.ErrInvalidRequest{Source: providerName, Detail: err.Error()}
	}
	if !c.Coverage().Contains(req) {
		return nil, &source.ErrInvalidRequest{Source: providerName, Detail: "request outside NSRDB coverage"}
	}

	interval := req.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	names := "tmy"
	if !req.IsTMY() {
		names = strconv.Itoa(req.Year)
	}

	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("email", c.cfg.Email)
	q.Set("wkt", fmt.Sprintf("POINT(%.4f %.4f)", req.Location.Longitude, req.Location.Latitude))
	q.Set("names", names)
	q.Set("interval", strconv.Itoa(int(interval / time.Minute)))
	q.Set("utc", "true")
	attrs := ""
	for i, a := range psm3Attributes {
		if i > 0 {
			attrs += ","
		}
		attrs += a.query
	}
	q.Set("attributes", attrs)

	endpoint := c.cfg.BaseURL + "/psm3-download.csv?" + q.Encode()

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
			return nil, &source.ErrRateLimited{Source: providerName, RetryAfter: retryAfter(resp)}
		case resp.StatusCode >= 500:
			return nil, &source.ErrUnavailable{Source: providerName, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		case resp.StatusCode >= 400:
			return nil, &source.ErrInvalidRequest{Source: providerName, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
		}

		return parsePSM3CSV(resp, req.Location, interval)
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

func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// parsePSM3CSV decodes the PSM3 download format: two metadata rows (keys
// then values), a column header row, then timestamped data rows.
func parsePSM3CSV(resp *http.Response, loc models.Location, interval time.Duration) (*models.WeatherRecord, error) {
	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &source.ErrMalformedResponse{Source: providerName, Detail: "unreadable CSV: " + err.Error()}
	}
	if len(rows) < 4 {
		return nil, &source.ErrMalformedResponse{Source: providerName, Detail: fmt.Sprintf("truncated CSV: %d rows", len(rows))}
	}

	header := rows[2]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		return -1
	}

	timeCols := []int{col("Year"), col("Month"), col("Day"), col("Hour"), col("Minute")}
	for _, i := range timeCols {
		if i < 0 {
			return nil, &source.ErrMalformedResponse{Source: providerName, Detail: "missing timestamp columns"}
		}
	}

	varCols := make(map[string]int, len(psm3Attributes))
	for _, a := range psm3Attributes {
		if i := col(a.column); i >= 0 {
			varCols[a.variable] = i
		}
	}
	if len(varCols) == 0 {
		return nil, &source.ErrMalformedResponse{Source: providerName, Detail: "no weather variable columns"}
	}

	samples := make([]models.Sample, 0, len(rows)-3)
	for _, row := range rows[3:] {
		if len(row) < len(header) {
			continue
		}
		parts := make([]int, len(timeCols))
		bad := false
		for j, i := range timeCols {
			v, err := strconv.Atoi(row[i])
			if err != nil {
				bad = true
				break
			}
			parts[j] = v
		}
		if bad {
			continue
		}
		ts := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, time.UTC)

		values := make(map[string]float64, len(varCols))
		for variable, i := range varCols {
			if v, err := strconv.ParseFloat(row[i], 64); err == nil {
				values[variable] = v
			}
		}
		samples = append(samples, models.Sample{Timestamp: ts, Values: values})
	}
	if len(samples) == 0 {
		return nil, &source.ErrMalformedResponse{Source: providerName, Detail: "no data rows"}
	}

	return &models.WeatherRecord{
		Location: loc,
		Interval: interval,
		Source:   providerName,
		Samples:  samples,
	}, nil
}
