// Package fetch orchestrates weather data acquisition: the fallback
// coordinator resolves a single request across ordered sources with
// caching, rate limiting, and retry; the batch fetcher drives it over many
// (facility, year) pairs with a persistent outcome ledger.
package fetch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/seenimoa/pvbench/internal/cache"
	"github.com/seenimoa/pvbench/internal/infra"
	"github.com/seenimoa/pvbench/internal/source"
	"github.com/seenimoa/pvbench/pkg/models"
)

// CacheSourceName is the provenance recorded when a request is served
// without network access.
const CacheSourceName = "cache"

// partialCoverageThreshold separates a usable-with-gaps response from an
// unusable one: at or above it the coordinator returns PartialSuccess with
// the missing periods listed; below it the response is treated as
// malformed and the next source is tried.
const partialCoverageThreshold = 0.90

// Coordinator resolves a request by trying each source in priority order,
// applying the cache and the per-channel retry policy.
type Coordinator struct {
	cache    *cache.Store
	limiters *infra.Limiters
	retry    infra.RetryPolicy

	// required is the variable set a response must carry entirely;
	// a source whose data lacks any of them is skipped.
	required []string
}

// NewCoordinator wires the coordinator. required defaults to the standard
// simulation variable set when nil.
func NewCoordinator(c *cache.Store, limiters *infra.Limiters, retry infra.RetryPolicy, required []string) *Coordinator {
	if required == nil {
		required = models.RequiredWeatherVariables
	}
	return &Coordinator{cache: c, limiters: limiters, retry: retry, required: required}
}

// Result pairs the bookkeeping outcome with the resolved record. Record is
// nil when Outcome.Status is Failure.
type Result struct {
	Outcome models.FetchOutcome
	Record  *models.WeatherRecord
}

// ResolveOptions tune a single resolution.
type ResolveOptions struct {
	// BypassCache forces a network fetch even when a fresh entry exists.
	BypassCache bool
}

// Resolve returns the first successful, validated result from the ordered
// sources, serving from cache when possible. All per-source failures are
// recovered here; the terminal failure is data in the outcome, not an
// error.
func (c *Coordinator) Resolve(ctx context.Context, req models.TimeSeriesRequest, sources []source.Connector, opts ResolveOptions) Result {
	if err := req.Validate(); err != nil {
		return failure(req, fmt.Sprintf("invalid request: %v", err))
	}

	if !opts.BypassCache {
		if entry, ok, err := c.cache.Get(ctx, req); err == nil && ok {
			log.Printf("fetch: cache hit for %s (source %s)", req.CacheKey()[:12], entry.Source)
			return outcomeFor(req, &entry.Record, entry.Source)
		} else if err != nil {
			log.Printf("fetch: cache read failed, falling through to network: %v", err)
		}
	}

	attempts := make(map[string]error, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			return failure(req, ctx.Err().Error())
		}
		name := src.Name()
		if !src.Available() {
			attempts[name] = fmt.Errorf("not configured")
			continue
		}
		if !src.Coverage().Contains(req) {
			attempts[name] = &source.ErrInvalidRequest{Source: name, Detail: "outside coverage"}
			continue
		}

		var rec *models.WeatherRecord
		err := c.retry.Do(ctx, c.limiters.Channel(name), func(ctx context.Context) error {
			var ferr error
			rec, ferr = src.Fetch(ctx, req)
			return ferr
		})
		if err != nil {
			log.Printf("fetch: source %s failed: %v", name, err)
			attempts[name] = err
			continue
		}

		// Variable-completeness: a record missing a required variable
		// entirely is a failure for this source, not bad data to pass on.
		if !rec.HasVariables(c.required) {
			attempts[name] = &source.ErrMalformedResponse{Source: name, Detail: "missing required variables"}
			continue
		}

		if cov := rec.Coverage(req); cov < partialCoverageThreshold {
			attempts[name] = &source.ErrMalformedResponse{
				Source: name,
				Detail: fmt.Sprintf("series covers only %.0f%% of requested span", cov*100),
			}
			continue
		}

		if err := c.cache.Put(ctx, req, *rec, name); err != nil {
			// Cache failures are not fetch failures.
			log.Printf("fetch: caching result from %s failed: %v", name, err)
		}
		log.Printf("fetch: source %s served %s", name, req.CacheKey()[:12])
		return outcomeFor(req, rec, name)
	}

	agg := &source.ErrAllSourcesFailed{Attempts: attempts}
	return failure(req, agg.Error())
}

// outcomeFor classifies a resolved record as Success or PartialSuccess
// against the requested span.
func outcomeFor(req models.TimeSeriesRequest, rec *models.WeatherRecord, sourceName string) Result {
	out := models.FetchOutcome{
		Year:        req.Year,
		Status:      models.OutcomeSuccess,
		Source:      sourceName,
		CompletedAt: time.Now(),
	}
	if gaps := rec.MissingPeriods(req); len(gaps) > 0 {
		out.Status = models.OutcomePartial
		out.MissingPeriods = gaps
	}
	return Result{Outcome: out, Record: rec}
}

func failure(req models.TimeSeriesRequest, reason string) Result {
	return Result{Outcome: models.FetchOutcome{
		Year:        req.Year,
		Status:      models.OutcomeFailure,
		Reason:      reason,
		CompletedAt: time.Now(),
	}}
}
