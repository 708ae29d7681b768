package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/pvbench/internal/source"
	"github.com/seenimoa/pvbench/pkg/models"
)

// Progress reports batch advancement as a monotonically increasing count
// of processed pairs out of the total.
type Progress func(processed, total int)

// BatchFetcher drives the coordinator across the cartesian product of
// facilities × years with bounded concurrency. Per-pair failures are
// recorded in the ledger and never abort the run; the worker-pool cap and
// the per-provider rate limits compose independently.
type BatchFetcher struct {
	coord       *Coordinator
	ledger      *Ledger
	sources     []source.Connector
	concurrency int

	interval  time.Duration
	variables []string

	progress Progress
}

// BatchConfig tunes a BatchFetcher.
type BatchConfig struct {
	Concurrency int           // worker pool size; defaults to 4
	Interval    time.Duration // nominal sample interval for requests; defaults to hourly
	Variables   []string      // requested variable set; defaults to the standard set
	Progress    Progress      // optional progress callback
}

// NewBatchFetcher wires a batch fetcher over the coordinator and ledger.
func NewBatchFetcher(coord *Coordinator, ledger *Ledger, sources []source.Connector, cfg BatchConfig) *BatchFetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Variables == nil {
		cfg.Variables = models.RequiredWeatherVariables
	}
	return &BatchFetcher{
		coord:       coord,
		ledger:      ledger,
		sources:     sources,
		concurrency: cfg.Concurrency,
		interval:    cfg.Interval,
		variables:   cfg.Variables,
		progress:    cfg.Progress,
	}
}

// RunOptions tune one batch run.
type RunOptions struct {
	// Rerun forces re-fetching pairs that already have a terminal outcome
	// in the ledger. Without it, prior results are kept and skipped.
	Rerun bool
}

type pair struct {
	facility models.FacilityRecord
	year     int
}

// Run processes every (facility, year) pair and returns the batch report.
// The only error it returns is context cancellation of the run itself;
// individual fetch failures are data in the report. A cancelled run lets
// in-flight pairs finish so the cache stays consistent, stops launching
// new ones, and leaves unfinished pairs pending (no ledger entry), so a
// later run resumes them.
func (b *BatchFetcher) Run(ctx context.Context, facilities []models.FacilityRecord, years []int) (*models.BatchReport, error) {
	return b.RunWithOptions(ctx, facilities, years, RunOptions{})
}

// RunWithOptions is Run with explicit re-run control.
func (b *BatchFetcher) RunWithOptions(ctx context.Context, facilities []models.FacilityRecord, years []int, opts RunOptions) (*models.BatchReport, error) {
	pairs := make([]pair, 0, len(facilities)*len(years))
	for _, f := range facilities {
		for _, y := range years {
			pairs = append(pairs, pair{facility: f, year: y})
		}
	}

	report := &models.BatchReport{
		RunID:     uuid.NewString(),
		Total:     len(pairs),
		StartedAt: time.Now(),
	}
	log.Printf("batch: run %s starting, %d facilities × %d years = %d pairs, concurrency %d",
		report.RunID, len(facilities), len(years), len(pairs), b.concurrency)

	var (
		mu        sync.Mutex
		outcomes  = make([]models.FetchOutcome, 0, len(pairs))
		processed atomic.Int64
	)
	record := func(out models.FetchOutcome) {
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
		n := int(processed.Add(1))
		if b.progress != nil {
			b.progress(n, len(pairs))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, p := range pairs {
		// Cancellation is honored between units: stop launching, let
		// in-flight fetches complete.
		if ctx.Err() != nil {
			break
		}
		p := p
		g.Go(func() error {
			// A worker whose slot frees up after cancellation leaves its
			// pair pending rather than recording a spurious failure.
			if gctx.Err() != nil {
				return nil
			}
			out := b.processPair(gctx, p, opts)
			if gctx.Err() != nil && out.Status == models.OutcomeFailure {
				// Interrupted, not a data failure: the pair stays pending
				// so the next run retries it.
				return nil
			}
			if err := b.ledger.Record(gctx, out, opts.Rerun); err != nil {
				log.Printf("batch: ledger write failed for %s/%d: %v", out.FacilityID, out.Year, err)
			}
			record(out)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are outcomes

	report.FinishedAt = time.Now()
	report.Outcomes = outcomes
	for _, out := range outcomes {
		report.Processed++
		switch out.Status {
		case models.OutcomeSuccess:
			report.Succeeded++
		case models.OutcomePartial:
			report.Partial++
		case models.OutcomeFailure:
			report.Failed++
		}
	}
	report.Pending = report.Total - report.Processed

	log.Printf("batch: run %s finished: %d success, %d partial, %d failure, %d pending",
		report.RunID, report.Succeeded, report.Partial, report.Failed, report.Pending)
	if ctx.Err() != nil && report.Pending > 0 {
		return report, fmt.Errorf("batch run interrupted: %w", ctx.Err())
	}
	return report, nil
}

// processPair resolves one (facility, year) to a terminal outcome.
func (b *BatchFetcher) processPair(ctx context.Context, p pair, opts RunOptions) models.FetchOutcome {
	fid := p.facility.ID

	if !opts.Rerun {
		if prior, ok, err := b.ledger.Get(ctx, fid, p.year); err == nil && ok && prior.Terminal() {
			return prior
		}
	}

	// Bad facility metadata fails fast, before any network call.
	if issues := models.ValidateFacility(p.facility); len(issues) > 0 {
		return models.FetchOutcome{
			FacilityID:  fid,
			Year:        p.year,
			Status:      models.OutcomeFailure,
			Reason:      "invalid facility: " + strings.Join(issues, "; "),
			CompletedAt: time.Now(),
		}
	}

	req := models.TimeSeriesRequest{
		Location:  p.facility.Location,
		Year:      p.year,
		Variables: b.variables,
		Interval:  b.interval,
	}
	res := b.coord.Resolve(ctx, req, b.sources, ResolveOptions{BypassCache: false})
	res.Outcome.FacilityID = fid
	return res.Outcome
}
