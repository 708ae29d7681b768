// PVBench — PV fleet data acquisition and simulation validation.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seenimoa/pvbench/api"
	"github.com/seenimoa/pvbench/internal/app"
	"github.com/seenimoa/pvbench/internal/config"
	"github.com/seenimoa/pvbench/internal/fetch"
	"github.com/seenimoa/pvbench/internal/normalize"
	"github.com/seenimoa/pvbench/internal/validate"
	"github.com/seenimoa/pvbench/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	_ = godotenv.Load() // missing .env is fine
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pvbench",
	Short: "PVBench — PV fleet data acquisition and simulation validation",
	Long: `PVBench acquires weather and production data for photovoltaic
fleets, caches it with provenance, and validates simulated output against
measured output with per-facility and fleet-level accuracy metrics.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PVBench %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Resolve one weather request through the source chain",
	Long: `Fetch a weather time series for a location, serving from cache when
possible and falling back across the configured providers otherwise.

Examples:
  pvbench fetch --lat 39.74 --lon -105.18 --year 2020
  pvbench fetch --lat 48.10 --lon 11.60 --tmy --out weather.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		year, _ := cmd.Flags().GetInt("year")
		tmy, _ := cmd.Flags().GetBool("tmy")
		bypass, _ := cmd.Flags().GetBool("bypass-cache")
		outPath, _ := cmd.Flags().GetString("out")

		if !tmy && year == 0 {
			return fmt.Errorf("provide --year or --tmy")
		}
		if tmy {
			year = 0
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		req := models.TimeSeriesRequest{
			Location:  models.Location{Latitude: lat, Longitude: lon},
			Year:      year,
			Variables: models.RequiredWeatherVariables,
			Interval:  time.Hour,
		}

		res := a.Coordinator.Resolve(cmd.Context(), req, a.Registry.Ordered(), fetch.ResolveOptions{BypassCache: bypass})

		fmt.Printf("Outcome:  %s\n", res.Outcome.Status)
		if res.Outcome.Source != "" {
			fmt.Printf("Source:   %s\n", res.Outcome.Source)
		}
		if res.Outcome.Reason != "" {
			fmt.Printf("Reason:   %s\n", res.Outcome.Reason)
		}
		for _, gap := range res.Outcome.MissingPeriods {
			fmt.Printf("Missing:  %s — %s\n", gap.Start.Format(time.RFC3339), gap.End.Format(time.RFC3339))
		}
		if res.Record != nil {
			fmt.Printf("Samples:  %d at %s interval\n", len(res.Record.Samples), res.Record.Interval)
		}

		if outPath != "" && res.Record != nil {
			if err := writeJSONFile(outPath, res.Record); err != nil {
				return err
			}
			fmt.Printf("Written:  %s\n", outPath)
		}
		if res.Outcome.Status == models.OutcomeFailure {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().Float64("lat", 0, "latitude in decimal degrees")
	fetchCmd.Flags().Float64("lon", 0, "longitude in decimal degrees")
	fetchCmd.Flags().Int("year", 0, "calendar year to fetch")
	fetchCmd.Flags().Bool("tmy", false, "fetch a typical meteorological year instead of a calendar year")
	fetchCmd.Flags().Bool("bypass-cache", false, "force a network fetch")
	fetchCmd.Flags().String("out", "", "write the resolved record to a JSON file")
	_ = fetchCmd.MarkFlagRequired("lat")
	_ = fetchCmd.MarkFlagRequired("lon")
}

// --- Batch Command ---

var batchCmd = &cobra.Command{
	Use:   "batch [facilities.json]",
	Short: "Fetch weather for every facility × year pair",
	Long: `Run the batch acquirer over a facility dataset. Outcomes are recorded
in the ledger; a re-run skips pairs that already completed unless --rerun
is given.

Example:
  pvbench batch facilities.json --years 2019,2020,2021`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		years, _ := cmd.Flags().GetIntSlice("years")
		rerun, _ := cmd.Flags().GetBool("rerun")
		if len(years) == 0 {
			return fmt.Errorf("provide --years")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read facilities: %w", err)
		}
		facilities, err := normalize.FacilitiesJSON(data)
		if err != nil {
			return err
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		bf := a.NewBatchFetcher(func(processed, total int) {
			fmt.Printf("\r%d/%d pairs", processed, total)
		})
		report, err := bf.RunWithOptions(cmd.Context(), facilities, years, fetch.RunOptions{Rerun: rerun})
		fmt.Println()
		if report != nil {
			printBatchReport(report)
		}
		return err
	},
}

func init() {
	batchCmd.Flags().IntSlice("years", nil, "calendar years to fetch, comma separated")
	batchCmd.Flags().Bool("rerun", false, "re-fetch pairs that already have a ledger outcome")
}

func printBatchReport(r *models.BatchReport) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Batch run %s\n", r.RunID)
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  Pairs:      %d\n", r.Total)
	fmt.Printf("  Succeeded:  %d\n", r.Succeeded)
	fmt.Printf("  Partial:    %d\n", r.Partial)
	fmt.Printf("  Failed:     %d\n", r.Failed)
	if r.Pending > 0 {
		fmt.Printf("  Pending:    %d (interrupted)\n", r.Pending)
	}
	fmt.Printf("  Duration:   %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	for _, out := range r.Outcomes {
		if out.Status == models.OutcomeFailure {
			fmt.Printf("  ✗ %s/%d: %s\n", out.FacilityID, out.Year, out.Reason)
		}
	}
	fmt.Println("═══════════════════════════════════════")
}

// --- Validate Command ---

// validateInput is the file layout for `pvbench validate`. The optional
// unit fields declare the raw unit of the series so values get converted
// to canonical units before comparison.
type validateInput struct {
	Entities []struct {
		EntityID      string                 `json:"entity_id"`
		Facility      *models.FacilityRecord `json:"facility,omitempty"`
		Simulated     models.Series          `json:"simulated"`
		SimulatedUnit string                 `json:"simulated_unit,omitempty"`
		Measured      models.Series          `json:"measured"`
		MeasuredUnit  string                 `json:"measured_unit,omitempty"`
	} `json:"entities"`
}

// convertSeriesHint applies a declared raw unit. Unrecognized units warn
// on stderr and keep the raw values, matching the normalizer's contract.
func convertSeriesHint(raw models.Series, unit, entityID, role string) models.Series {
	if unit == "" {
		return raw
	}
	converted, err := normalize.Series(raw, unit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: entity %s: %s series: %v, values used as-is\n", entityID, role, err)
		return raw
	}
	return converted
}

var validateCmd = &cobra.Command{
	Use:   "validate [pairs.json]",
	Short: "Compare simulated against measured series",
	Long: `Compute accuracy metrics for each entity in the input file and the
fleet aggregate at every configured resolution.

Example:
  pvbench validate pairs.json --resolutions daily,monthly --out report.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resStrs, _ := cmd.Flags().GetStringSlice("resolutions")
		outPath, _ := cmd.Flags().GetString("out")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read pairs: %w", err)
		}
		var input validateInput
		if err := json.Unmarshal(data, &input); err != nil {
			return fmt.Errorf("decode pairs: %w", err)
		}
		if len(input.Entities) == 0 {
			return fmt.Errorf("no entities in %s", args[0])
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		resolutions := a.Resolutions()
		if len(resStrs) > 0 {
			resolutions = nil
			for _, s := range resStrs {
				resolutions = append(resolutions, models.Resolution(s))
			}
		}

		pairs := make([]validate.EntityPair, 0, len(input.Entities))
		for _, e := range input.Entities {
			pairs = append(pairs, validate.EntityPair{
				EntityID:  e.EntityID,
				Facility:  e.Facility,
				Simulated: convertSeriesHint(e.Simulated, e.SimulatedUnit, e.EntityID, "simulated"),
				Measured:  convertSeriesHint(e.Measured, e.MeasuredUnit, e.EntityID, "measured"),
			})
		}

		report, err := a.Engine.CompareFleet(pairs, resolutions)
		if err != nil {
			return err
		}

		printValidationReport(report)
		if outPath != "" {
			if err := writeJSONFile(outPath, report); err != nil {
				return err
			}
			fmt.Printf("Written: %s\n", outPath)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringSlice("resolutions", nil, "comparison grains (hourly, daily, monthly, annual)")
	validateCmd.Flags().String("out", "", "write the full report to a JSON file")
}

func printValidationReport(r *models.ValidationReport) {
	fmt.Println("═══════════════════════════════════════")
	fmt.Println("  Validation report")
	fmt.Println("═══════════════════════════════════════")
	for _, er := range r.Entities {
		m := er.Metrics
		fmt.Printf("  %s @ %s: n=%d bias=%.3f mae=%.3f rmse=%.3f rRMSE=%.1f%% r=%.3f R²=%.3f\n",
			er.EntityID, er.Resolution, m.N, m.Bias, m.MAE, m.RMSE, m.RelativeRMSE*100, m.Correlation, m.RSquared)
	}
	for _, rs := range r.Resolutions {
		fmt.Printf("  fleet @ %s: %d included, %d excluded, mean rmse=%.3f, median rmse=%.3f\n",
			rs.Resolution, len(rs.Included), len(rs.Excluded), rs.Aggregate.Mean.RMSE, rs.Aggregate.Median.RMSE)
	}
	for _, s := range r.Summaries {
		fmt.Printf("  %s: measured=%.1f kWh simulated=%.1f kWh CF=%.1f%% yield=%.1f kWh/kW\n",
			s.EntityID, s.MeasuredEnergyKWh, s.SimulatedEnergyKWh, s.CapacityFactorPct, s.SpecificYieldKWhKW)
	}
	fmt.Println("═══════════════════════════════════════")
}

// --- Cache Command ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the weather cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		stats, err := a.Cache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Entries: %d\n", stats.EntryCount)
		fmt.Printf("Size:    %.1f MiB\n", float64(stats.TotalBytes)/(1024*1024))
		if !stats.Oldest.IsZero() {
			fmt.Printf("Oldest:  %s\n", stats.Oldest.Format(time.RFC3339))
			fmt.Printf("Newest:  %s\n", stats.Newest.Format(time.RFC3339))
		}
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		var removed int
		if all {
			removed, err = a.Cache.Invalidate(cmd.Context(), nil)
		} else {
			removed, err = a.Cache.PurgeExpired(cmd.Context())
		}
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d entries\n", removed)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().Bool("all", false, "remove every entry, not only expired ones")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		// Periodic expired-entry sweep so the cache does not grow unbounded
		// between requests.
		scheduler := gocron.NewScheduler(time.UTC)
		_, err = scheduler.Every(cfg.Cache.PurgeHours).Hours().Do(func() {
			if n, err := a.Cache.PurgeExpired(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "cache purge failed: %v\n", err)
			} else if n > 0 {
				fmt.Printf("cache purge removed %d expired entries\n", n)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule cache purge: %w", err)
		}
		scheduler.StartAsync()
		defer scheduler.Stop()

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting PVBench API server on %s\n", addr)
		return api.NewServer(a, version).ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  PVBench — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Providers:    %v\n", cfg.Providers.Order)
		fmt.Printf("    Cache:        %s (%d-day TTL)\n", cfg.Cache.Backend, cfg.Cache.TTLDays)
		fmt.Printf("    Concurrency:  %d\n", cfg.Batch.Concurrency)
		fmt.Printf("    API Server:   %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  Providers:")
		for _, c := range a.Registry.Ordered() {
			status := "❌ not configured"
			if c.Available() {
				status = "✅ available"
			}
			fmt.Printf("    %-12s %s\n", c.Name()+":", status)
		}
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, k := range config.CheckCredentials(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-20s %s\n", k.Name+":", status)
		}

		if stats, err := a.Cache.Stats(cmd.Context()); err == nil {
			fmt.Println()
			fmt.Printf("  Cache: %d entries, %.1f MiB\n",
				stats.EntryCount, float64(stats.TotalBytes)/(1024*1024))
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Helpers ---

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
