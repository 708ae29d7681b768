package nsrdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/pvbench/internal/source"
	"github.com/seenimoa/pvbench/pkg/models"
)

// psm3CSV renders a minimal PSM3 download payload with n hourly rows.
func psm3CSV(year, n int) string {
	var b strings.Builder
	b.WriteString("Source,Location ID,Latitude,Longitude\n")
	b.WriteString("NSRDB,12345,39.74,-105.18\n")
	b.WriteString("Year,Month,Day,Hour,Minute,GHI,DNI,DHI,Temperature,Wind Speed\n")
	ts := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%d,%d,%.1f,%.1f\n",
			ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(),
			400+i%100, 300, 90, 15.5, 3.2)
		ts = ts.Add(time.Hour)
	}
	return b.String()
}

func testConnector(baseURL string) *Connector {
	return New(Config{
		APIKey:  "test-key",
		Email:   "test@example.com",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
}

func testRequest() models.TimeSeriesRequest {
	return models.TimeSeriesRequest{
		Location:  models.Location{Latitude: 39.7392, Longitude: -104.9903},
		Year:      2020,
		Variables: models.RequiredWeatherVariables,
		Interval:  time.Hour,
	}
}

func TestFetchParsesPSM3(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, psm3CSV(2020, 48))
	}))
	defer srv.Close()

	c := testConnector(srv.URL)
	rec, err := c.Fetch(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rec.Samples) != 48 {
		t.Errorf("samples: got %d, want 48", len(rec.Samples))
	}
	if rec.Source != "nsrdb" {
		t.Errorf("source: got %q", rec.Source)
	}
	if !rec.HasVariables(models.RequiredWeatherVariables) {
		t.Error("parsed record should carry all required variables")
	}
	if v, ok := rec.Samples[0].Value(models.VarTempAir); !ok || v != 15.5 {
		t.Errorf("temp_air: got %f ok=%v", v, ok)
	}

	// Request shape: year, UTC, point geometry, all attributes.
	if got := gotQuery["names"]; len(got) != 1 || got[0] != "2020" {
		t.Errorf("names: got %v", got)
	}
	if got := gotQuery["interval"]; len(got) != 1 || got[0] != "60" {
		t.Errorf("interval: got %v", got)
	}
	if got := gotQuery["utc"]; len(got) != 1 || got[0] != "true" {
		t.Errorf("utc: got %v", got)
	}
	if got := gotQuery["wkt"]; len(got) != 1 || got[0] != "POINT(-104.9903 39.7392)" {
		t.Errorf("wkt: got %v", got)
	}
	if got := gotQuery["attributes"]; len(got) != 1 || !strings.Contains(got[0], "air_temperature") {
		t.Errorf("attributes: got %v", got)
	}
}

func TestFetchTMYNames(t *testing.T) {
	var names string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		names = r.URL.Query().Get("names")
		fmt.Fprint(w, psm3CSV(2020, 24))
	}))
	defer srv.Close()

	req := testRequest()
	req.Year = 0
	if _, err := testConnector(srv.URL).Fetch(context.Background(), req); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if names != "tmy" {
		t.Errorf("names: got %q, want tmy", names)
	}
}

func TestFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testConnector(srv.URL).Fetch(context.Background(), testRequest())
	var rl *source.ErrRateLimited
	if !errors.As(err, &rl) {
		t.Fatalf("error: got %T (%v), want *ErrRateLimited", err, err)
	}
	if rl.RetryAfter != 30*time.Second {
		t.Errorf("retry-after: got %s, want 30s", rl.RetryAfter)
	}
	if !rl.Retryable() {
		t.Error("rate limit must be retryable")
	}
}

func TestFetchServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testConnector(srv.URL).Fetch(context.Background(), testRequest())
	var ua *source.ErrUnavailable
	if !errors.As(err, &ua) {
		t.Fatalf("error: got %T (%v), want *ErrUnavailable", err, err)
	}
}

func TestFetchClientErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testConnector(srv.URL).Fetch(context.Background(), testRequest())
	var ir *source.ErrInvalidRequest
	if !errors.As(err, &ir) {
		t.Fatalf("error: got %T (%v), want *ErrInvalidRequest", err, err)
	}
}

func TestFetchMalformedCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "just one row\n")
	}))
	defer srv.Close()

	_, err := testConnector(srv.URL).Fetch(context.Background(), testRequest())
	var mr *source.ErrMalformedResponse
	if !errors.As(err, &mr) {
		t.Fatalf("error: got %T (%v), want *ErrMalformedResponse", err, err)
	}
}

func TestFetchRejectsImplausibleData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		csv := psm3CSV(2020, 24)
		// Replace every temperature with an impossible value.
		csv = strings.ReplaceAll(csv, ",15.5,", ",150.0,")
		fmt.Fprint(w, csv)
	}))
	defer srv.Close()

	_, err := testConnector(srv.URL).Fetch(context.Background(), testRequest())
	var mr *source.ErrMalformedResponse
	if !errors.As(err, &mr) {
		t.Fatalf("error: got %T (%v), want *ErrMalformedResponse", err, err)
	}
}

func TestAvailableRequiresCredentials(t *testing.T) {
	if New(Config{}).Available() {
		t.Error("connector without credentials must be unavailable")
	}
	if !New(Config{APIKey: "k", Email: "e@example.com"}).Available() {
		t.Error("connector with credentials must be available")
	}
}

func TestCoverageRejectsOutOfBounds(t *testing.T) {
	c := New(Config{APIKey: "k", Email: "e@example.com"})

	europe := testRequest()
	europe.Location.Longitude = 11.6 // east of the PSM3 grid
	if c.Coverage().Contains(europe) {
		t.Error("European longitude accepted")
	}
	if _, err := c.Fetch(context.Background(), europe); err == nil {
		t.Error("Fetch outside coverage should fail before the network")
	}

	ancient := testRequest()
	ancient.Year = 1980
	if c.Coverage().Contains(ancient) {
		t.Error("pre-1998 year accepted")
	}
}
