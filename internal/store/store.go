// Package store abstracts the key→blob persistence behind the cache and
// the batch ledger. Two implementations are provided: a filesystem store
// (default) and a MinIO object store, selected by configuration.
package store

import (
	"context"
	"time"
)

// ObjectInfo describes one stored blob.
type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
}

// Store is a minimal key→blob contract. Keys are slash-separated paths.
// Put on an existing key overwrites (last-writer-wins); Get on a missing
// key returns ok=false, not an error.
type Store interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
