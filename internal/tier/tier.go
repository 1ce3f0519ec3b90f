// Package tier implements the three storage tiers of the cache-node
// pipeline: an in-process memory cache with TTL, a local persistent
// embedded store, and a shared blob store, per spec §4.1-§4.3.
//
// Memory and Local satisfy the Store interface; the blob tier, which has
// no TTL, has its own Blob interface. internal/pipeline holds each tier
// in its own named field rather than cascading through a list of Stores.
// Together they generalize torua's single-level storage.Store
// (internal/storage/store.go) into the spec's three-level hierarchy.
package tier

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a tier's Get when the key is absent or its
// TTL has elapsed. internal/pipeline turns it into a found=false result
// rather than an error.
var ErrNotFound = errors.New("tier: key not found")

// Stats mirrors torua's storage.StoreStats, generalized with a Name so a
// caller aggregating stats across tiers (the supplemented per-tier stats
// endpoint from SPEC_FULL.md §4) can tell them apart.
type Stats struct {
	Name    string
	Entries int64
	Bytes   int64
}

// Store is the uniform interface every tier implements. TTL is the
// caller-supplied time-to-live for Put; a TTL of zero means "use the
// tier's configured default" rather than "never expire," since both
// tiers that implement Store carry an expiry per spec §4.1-§4.2.
type Store interface {
	Get(ctx context.Context, storageKey string) ([]byte, error)
	Put(ctx context.Context, storageKey string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, storageKey string) error
	Stats() Stats
	Close() error
}
