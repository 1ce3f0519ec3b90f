package tier

import "context"

// Blob is the third pipeline tier: the shared object store backing every
// cache node, keyed by StorageKey (spec §4.3). Unlike Memory and Local,
// Blob carries no TTL: expiry at this tier is a non-goal per spec §5
// (the blob tier is the system of record other tiers rehydrate from on
// a miss).
type Blob interface {
	Get(ctx context.Context, storageKey string) ([]byte, error)
	Put(ctx context.Context, storageKey string, value []byte) error
	Delete(ctx context.Context, storageKey string) error
	Stats() Stats
	Close() error
}
