// Package api provides the HTTP REST API server for PVBench.
//
// It exposes endpoints for single weather fetches, batch acquisition runs,
// ledger inspection, validation reports, and cache maintenance.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/pvbench/internal/app"
	"github.com/seenimoa/pvbench/internal/config"
	"github.com/seenimoa/pvbench/internal/fetch"
	"github.com/seenimoa/pvbench/internal/normalize"
	"github.com/seenimoa/pvbench/internal/validate"
	"github.com/seenimoa/pvbench/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	app     *app.App
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(a *app.App, version string) *Server {
	srv := &Server{
		cfg:     a.Cfg,
		app:     a,
		version: version,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute)) // batch runs can be long

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health (also available at /health)
		r.Get("/health", s.handleHealth)

		// Provider and cache status
		r.Get("/status", s.handleStatus)

		// Single weather resolution
		r.Post("/weather", s.handleWeather)

		// Batch acquisition
		r.Post("/batch", s.handleBatch)
		r.Get("/batch/ledger", s.handleLedger)

		// Validation
		r.Post("/validate", s.handleValidate)

		// Cache maintenance
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/purge", s.handleCachePurge)

		// Credential status
		r.Get("/config/credentials", s.handleCredentials)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WeatherRequest is the body for POST /api/v1/weather.
type WeatherRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation float64  `json:"elevation,omitempty"`
	Year      int      `json:"year,omitempty"` // 0 selects a typical meteorological year
	Variables []string `json:"variables,omitempty"`
	Bypass    bool     `json:"bypass_cache,omitempty"`
}

// WeatherResponse pairs the fetch outcome with the resolved record.
type WeatherResponse struct {
	Outcome models.FetchOutcome   `json:"outcome"`
	Record  *models.WeatherRecord `json:"record,omitempty"`
}

// BatchRequest is the body for POST /api/v1/batch. Facilities accepts the
// raw dataset payload in either supported layout.
type BatchRequest struct {
	Facilities json.RawMessage `json:"facilities"`
	Years      []int           `json:"years"`
	Rerun      bool            `json:"rerun,omitempty"`
}

// ValidateEntity is one simulated/measured pair for POST /api/v1/validate.
// The optional unit fields declare the raw unit of the corresponding
// series; when set, values are converted to canonical units before
// comparison. An unrecognized unit keeps the series as-is and adds a
// warning to the response.
type ValidateEntity struct {
	EntityID      string                 `json:"entity_id"`
	Facility      *models.FacilityRecord `json:"facility,omitempty"`
	Simulated     models.Series          `json:"simulated"`
	SimulatedUnit string                 `json:"simulated_unit,omitempty"`
	Measured      models.Series          `json:"measured"`
	MeasuredUnit  string                 `json:"measured_unit,omitempty"`
}

// ValidateRequest is the body for POST /api/v1/validate.
type ValidateRequest struct {
	Entities    []ValidateEntity    `json:"entities"`
	Resolutions []models.Resolution `json:"resolutions,omitempty"`
}

// ValidateResponse pairs the fleet report with any unit-conversion
// warnings collected while preparing the entities.
type ValidateResponse struct {
	Report   *models.ValidationReport `json:"report"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// ProviderStatus reports one connector's readiness.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":  "ok",
			"version": s.version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var providers []ProviderStatus
	for _, c := range s.app.Registry.Ordered() {
		providers = append(providers, ProviderStatus{
			Name:      c.Name(),
			Available: c.Available(),
		})
	}

	stats, err := s.app.Cache.Stats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"providers": providers,
			"cache":     stats,
		},
	})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	var req WeatherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tsReq := models.TimeSeriesRequest{
		Location: models.Location{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Elevation: req.Elevation,
		},
		Year:      req.Year,
		Variables: req.Variables,
		Interval:  time.Hour,
	}
	if tsReq.Variables == nil {
		tsReq.Variables = models.RequiredWeatherVariables
	}
	if err := tsReq.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	res := s.app.Coordinator.Resolve(ctx, tsReq, s.app.Registry.Ordered(), fetch.ResolveOptions{
		BypassCache: req.Bypass,
	})

	status := http.StatusOK
	if res.Outcome.Status == models.OutcomeFailure {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, APIResponse{
		Success: res.Outcome.Status != models.OutcomeFailure,
		Data:    WeatherResponse{Outcome: res.Outcome, Record: res.Record},
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Facilities) == 0 || len(req.Years) == 0 {
		writeError(w, http.StatusBadRequest, "facilities and years are required")
		return
	}

	facilities, err := normalize.FacilitiesJSON(req.Facilities)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bf := s.app.NewBatchFetcher(nil)
	report, err := bf.RunWithOptions(r.Context(), facilities, req.Years, fetch.RunOptions{Rerun: req.Rerun})
	if err != nil {
		// Interrupted runs still carry a partial report.
		writeJSON(w, http.StatusOK, APIResponse{
			Success: false,
			Data:    report,
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    report,
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	outcomes, err := s.app.Ledger.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    outcomes,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Entities) == 0 {
		writeError(w, http.StatusBadRequest, "entities are required")
		return
	}

	resolutions := req.Resolutions
	if len(resolutions) == 0 {
		resolutions = s.app.Resolutions()
	}

	var warnings []string
	pairs := make([]validate.EntityPair, 0, len(req.Entities))
	for _, e := range req.Entities {
		if e.EntityID == "" {
			writeError(w, http.StatusBadRequest, "entity_id is required")
			return
		}
		simulated, warn := convertSeries(e.Simulated, e.SimulatedUnit, e.EntityID, "simulated")
		if warn != "" {
			warnings = append(warnings, warn)
		}
		measured, warn := convertSeries(e.Measured, e.MeasuredUnit, e.EntityID, "measured")
		if warn != "" {
			warnings = append(warnings, warn)
		}
		pairs = append(pairs, validate.EntityPair{
			EntityID:  e.EntityID,
			Facility:  e.Facility,
			Simulated: simulated,
			Measured:  measured,
		})
	}

	report, err := s.app.Engine.CompareFleet(pairs, resolutions)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ValidateResponse{Report: report, Warnings: warnings},
	})
}

// convertSeries applies a declared raw unit to a series. An unrecognized
// unit keeps the series unconverted and returns a warning instead of
// failing the request.
func convertSeries(raw models.Series, unit, entityID, role string) (models.Series, string) {
	if unit == "" {
		return raw, ""
	}
	converted, err := normalize.Series(raw, unit)
	if err != nil {
		return raw, fmt.Sprintf("entity %s: %s series: %v, values used as-is", entityID, role, err)
	}
	return converted, ""
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	stats, err := s.app.Cache.Stats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    stats,
	})
}

func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var (
		removed int
		err     error
	)
	if r.URL.Query().Get("all") == "true" {
		removed, err = s.app.Cache.Invalidate(ctx, nil)
	} else {
		removed, err = s.app.Cache.PurgeExpired(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]int{"removed": removed},
	})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckCredentials(s.cfg),
	})
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
