package tier

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cockroachdb/pebble"
)

// Local is the second pipeline tier: a durable embedded LSM store backed
// by cockroachdb/pebble, generalizing torua's in-memory
// storage.MemoryStore into the spec's "local persistent store with TTL"
// (§4.2). TTL is encoded in an 8-byte big-endian unix-nanosecond prefix
// ahead of the value bytes, since pebble itself has no notion of expiry.
type Local struct {
	db         *pebble.DB
	defaultTTL time.Duration
}

// NewLocal opens (or creates) a pebble database rooted at dir.
func NewLocal(dir string, defaultTTL time.Duration) (*Local, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Local{db: db, defaultTTL: defaultTTL}, nil
}

// Get reads storageKey, returning ErrNotFound if absent or past its
// encoded TTL. An expired entry found at read time is deleted
// immediately (lazy expiry), matching the memory tier's behavior.
func (l *Local) Get(ctx context.Context, storageKey string) ([]byte, error) {
	raw, closer, err := l.db.Get([]byte(storageKey))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	expiresAtNano, value := decodeEnvelope(raw)
	if expiresAtNano != 0 && time.Now().UnixNano() > expiresAtNano {
		_ = l.db.Delete([]byte(storageKey), pebble.Sync)
		return nil, ErrNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put writes value under storageKey with the given ttl (or defaultTTL
// when ttl is zero), synchronously per spec §4.2's durability
// requirement for the local tier.
func (l *Local) Put(ctx context.Context, storageKey string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	var expiresAtNano int64
	if ttl > 0 {
		expiresAtNano = time.Now().Add(ttl).UnixNano()
	}
	return l.db.Set([]byte(storageKey), encodeEnvelope(expiresAtNano, value), pebble.Sync)
}

// Delete removes storageKey, synchronously. Idempotent: pebble's Delete
// does not error on a missing key.
func (l *Local) Delete(ctx context.Context, storageKey string) error {
	return l.db.Delete([]byte(storageKey), pebble.Sync)
}

// Stats reports disk usage via pebble's own estimator, generalizing
// torua's shard.ShardStats.Storage field. Entry counts are not tracked
// here: pebble has no O(1) key-count primitive, and scanning the whole
// keyspace on every stats call would defeat the point of a stats
// endpoint, so Entries is left at zero.
func (l *Local) Stats() Stats {
	usage, err := l.db.EstimateDiskUsage([]byte{0x00}, []byte{0xff})
	if err != nil {
		return Stats{Name: "local"}
	}
	return Stats{Name: "local", Bytes: int64(usage)}
}

// Close flushes and closes the underlying pebble database.
func (l *Local) Close() error {
	return l.db.Close()
}

func encodeEnvelope(expiresAtNano int64, value []byte) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAtNano))
	copy(buf[8:], value)
	return buf
}

func decodeEnvelope(raw []byte) (expiresAtNano int64, value []byte) {
	if len(raw) < 8 {
		return 0, nil
	}
	expiresAtNano = int64(binary.BigEndian.Uint64(raw[:8]))
	return expiresAtNano, raw[8:]
}
