// Package cache implements the content-addressed weather data cache.
// Entries are keyed by the SHA-256 of the request, carry the provenance of
// the source that produced them, and expire after a configurable TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seenimoa/pvbench/internal/store"
	"github.com/seenimoa/pvbench/pkg/models"
)

const keyPrefix = "weather/"

// Entry is one cached weather record plus its metadata. Owned exclusively
// by the cache; callers treat it as read-only.
type Entry struct {
	Key       string               `json:"key"`
	Source    string               `json:"source"`
	FetchedAt time.Time            `json:"fetched_at"`
	ExpiresAt time.Time            `json:"expires_at"`
	Record    models.WeatherRecord `json:"record"`
}

// Expired reports whether the entry's TTL has passed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Stats summarizes cache contents.
type Stats struct {
	EntryCount int       `json:"entry_count"`
	TotalBytes int64     `json:"total_bytes"`
	Oldest     time.Time `json:"oldest,omitempty"`
	Newest     time.Time `json:"newest,omitempty"`
}

// Store is the weather cache. All methods are safe for concurrent use:
// entries for different requests live under different keys, and concurrent
// writes to the same key resolve last-writer-wins (payloads for the same
// key are assumed equivalent).
type Store struct {
	blobs store.Store
	ttl   time.Duration
}

// New creates a cache over the given blob store with the given TTL.
func New(blobs store.Store, ttl time.Duration) *Store {
	return &Store{blobs: blobs, ttl: ttl}
}

func blobKey(req models.TimeSeriesRequest) string {
	return keyPrefix + req.CacheKey() + ".json"
}

// Get returns the unexpired entry for the request, or ok=false if none
// exists. Expired entries are purged lazily on access.
func (c *Store) Get(ctx context.Context, req models.TimeSeriesRequest) (*Entry, bool, error) {
	key := blobKey(req)
	data, ok, err := c.blobs.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// An unreadable entry is as good as absent; drop it so the next
		// fetch rewrites it.
		_ = c.blobs.Delete(ctx, key)
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		_ = c.blobs.Delete(ctx, key)
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put stores a record for the request, stamping provenance and expiry.
// Writing the same request again overwrites, never duplicates.
func (c *Store) Put(ctx context.Context, req models.TimeSeriesRequest, rec models.WeatherRecord, sourceName string) error {
	now := time.Now()
	entry := Entry{
		Key:       req.CacheKey(),
		Source:    sourceName,
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
		Record:    rec,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.blobs.Put(ctx, blobKey(req), data); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Invalidate removes every entry matching the predicate and returns the
// count removed. A nil predicate matches everything.
func (c *Store) Invalidate(ctx context.Context, pred func(Entry) bool) (int, error) {
	infos, err := c.blobs.List(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("cache list: %w", err)
	}

	removed := 0
	for _, info := range infos {
		data, ok, err := c.blobs.Get(ctx, info.Key)
		if err != nil || !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err == nil && pred != nil && !pred(entry) {
			continue
		}
		if err := c.blobs.Delete(ctx, info.Key); err != nil {
			return removed, fmt.Errorf("cache delete %s: %w", info.Key, err)
		}
		removed++
	}
	return removed, nil
}

// PurgeExpired removes all entries whose TTL has passed.
func (c *Store) PurgeExpired(ctx context.Context) (int, error) {
	now := time.Now()
	return c.Invalidate(ctx, func(e Entry) bool { return e.Expired(now) })
}

// Stats reports entry count, total size, and the modification-time range.
func (c *Store) Stats(ctx context.Context) (Stats, error) {
	infos, err := c.blobs.List(ctx, keyPrefix)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}

	var st Stats
	for _, info := range infos {
		st.EntryCount++
		st.TotalBytes += info.Size
		if st.Oldest.IsZero() || info.Modified.Before(st.Oldest) {
			st.Oldest = info.Modified
		}
		if info.Modified.After(st.Newest) {
			st.Newest = info.Modified
		}
	}
	return st, nil
}
