// Package app wires the configured components into a running system:
// blob store, cache, provider registry, fetch coordinator, ledger, and
// validation engine. Both the CLI and the API server build from here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/pvbench/internal/cache"
	"github.com/seenimoa/pvbench/internal/config"
	"github.com/seenimoa/pvbench/internal/fetch"
	"github.com/seenimoa/pvbench/internal/infra"
	"github.com/seenimoa/pvbench/internal/source"
	"github.com/seenimoa/pvbench/internal/sources/nsrdb"
	"github.com/seenimoa/pvbench/internal/sources/pvgis"
	"github.com/seenimoa/pvbench/internal/store"
	"github.com/seenimoa/pvbench/internal/validate"
	"github.com/seenimoa/pvbench/pkg/models"
)

// App holds every wired component.
type App struct {
	Cfg         *config.Config
	Blobs       store.Store
	Cache       *cache.Store
	Registry    *source.Registry
	Coordinator *fetch.Coordinator
	Ledger      *fetch.Ledger
	Engine      *validate.Engine
}

// New builds the component graph from configuration.
func New(cfg *config.Config) (*App, error) {
	blobs, err := newBlobStore(cfg)
	if err != nil {
		return nil, err
	}

	c := cache.New(blobs, cfg.Cache.TTL())

	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}

	limiters := infra.NewLimiters(cfg.RateLimit.MinInterval())
	retry := infra.RetryPolicy{
		MaxRetries:        cfg.RateLimit.MaxRetries,
		BaseDelay:         cfg.RateLimit.BaseDelay(),
		BackoffMultiplier: cfg.RateLimit.BackoffMultiplier,
	}

	return &App{
		Cfg:         cfg,
		Blobs:       blobs,
		Cache:       c,
		Registry:    reg,
		Coordinator: fetch.NewCoordinator(c, limiters, retry, nil),
		Ledger:      fetch.NewLedger(blobs),
		Engine:      validate.NewEngine(cfg.Validation.MinSamples),
	}, nil
}

// Resolutions returns the configured comparison grains.
func (a *App) Resolutions() []models.Resolution {
	out := make([]models.Resolution, 0, len(a.Cfg.Validation.Resolutions))
	for _, r := range a.Cfg.Validation.Resolutions {
		out = append(out, models.Resolution(r))
	}
	return out
}

// NewBatchFetcher builds a batch fetcher over the wired coordinator.
func (a *App) NewBatchFetcher(progress fetch.Progress) *fetch.BatchFetcher {
	return fetch.NewBatchFetcher(a.Coordinator, a.Ledger, a.Registry.Ordered(), fetch.BatchConfig{
		Concurrency: a.Cfg.Batch.Concurrency,
		Interval:    time.Hour,
		Progress:    progress,
	})
}

func newBlobStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Cache.Backend {
	case "minio":
		m := cfg.Cache.MinIO
		s, err := store.NewMinIO(context.Background(), store.MinIOConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			UseSSL:    m.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "fs", "":
		s, err := store.NewFS(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func newRegistry(cfg *config.Config) (*source.Registry, error) {
	reg := source.NewRegistry()
	for _, name := range cfg.Providers.Order {
		var conn source.Connector
		switch name {
		case "nsrdb":
			conn = nsrdb.New(nsrdb.Config{
				APIKey:  cfg.Providers.NSRDB.APIKey,
				Email:   cfg.Providers.NSRDB.Email,
				BaseURL: cfg.Providers.NSRDB.BaseURL,
				Timeout: cfg.RateLimit.Timeout(),
			})
		case "pvgis":
			conn = pvgis.New(pvgis.Config{
				BaseURL: cfg.Providers.PVGIS.BaseURL,
				Timeout: cfg.RateLimit.Timeout(),
			})
		default:
			return nil, fmt.Errorf("unknown provider %q in providers.order", name)
		}
		if err := reg.Register(conn); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
