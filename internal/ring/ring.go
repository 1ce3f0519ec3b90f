// Package ring implements the consistent-hash ring that maps cache keys to
// backend nodes, generalizing the teacher's coordinator.ShardRegistry
// (fixed shard count, FNV hash, round-robin assignment) into the spec's
// virtual-node ring with copy-on-write snapshots (§4.6, §9 "Shared-mutable
// consistent-hash ring").
package ring

import (
	"errors"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// VirtualNodes is the number of ring slots created per physical node.
// Spec §3 requires at least 40 for balance; the ring-balance property test
// in ring_test.go exercises exactly this value.
const VirtualNodes = 100

// ErrNodeNotFound is returned by Lookup when the ring has no nodes.
var ErrNodeNotFound = errors.New("ring: no nodes registered")

// slot is one point on the hash circle, owned by exactly one node.
type slot struct {
	hash uint64
	addr string
}

// snapshot is an immutable view of the ring: a sorted slot list plus the
// set of distinct node addresses it currently covers. Readers only ever
// see a fully-built snapshot, never a partially mutated one, satisfying
// §4.6's atomicity invariant "for free" via pointer swap.
type snapshot struct {
	slots []slot
	nodes map[string]struct{}
}

// Ring is a consistent-hash ring with dynamic membership. The zero value is
// not usable; construct with New.
type Ring struct {
	current atomic.Pointer[snapshot]
}

// New returns an empty ring ready for Add/Lookup.
func New() *Ring {
	r := &Ring{}
	r.current.Store(&snapshot{nodes: map[string]struct{}{}})
	return r
}

// Add registers addr with VirtualNodes ring slots. Idempotent: adding an
// address already present leaves the ring unchanged and returns nil.
func (r *Ring) Add(addr string) error {
	for {
		old := r.current.Load()
		if _, exists := old.nodes[addr]; exists {
			return nil
		}

		next := &snapshot{
			slots: make([]slot, 0, len(old.slots)+VirtualNodes),
			nodes: make(map[string]struct{}, len(old.nodes)+1),
		}
		next.slots = append(next.slots, old.slots...)
		for a := range old.nodes {
			next.nodes[a] = struct{}{}
		}
		next.nodes[addr] = struct{}{}
		for i := 0; i < VirtualNodes; i++ {
			next.slots = append(next.slots, slot{hash: slotHash(addr, i), addr: addr})
		}
		sort.Slice(next.slots, func(i, j int) bool { return next.slots[i].hash < next.slots[j].hash })

		if r.current.CompareAndSwap(old, next) {
			return nil
		}
		// Lost the race with a concurrent writer; retry against the new base.
	}
}

// Remove deletes all of addr's slots from the ring. Idempotent.
func (r *Ring) Remove(addr string) error {
	for {
		old := r.current.Load()
		if _, exists := old.nodes[addr]; !exists {
			return nil
		}

		next := &snapshot{
			slots: make([]slot, 0, len(old.slots)),
			nodes: make(map[string]struct{}, len(old.nodes)),
		}
		for _, s := range old.slots {
			if s.addr != addr {
				next.slots = append(next.slots, s)
			}
		}
		for a := range old.nodes {
			if a != addr {
				next.nodes[a] = struct{}{}
			}
		}

		if r.current.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// Lookup returns the node address owning key: hash the key, then return
// the first slot with hash >= h, wrapping around to the first slot if h is
// past every slot. Returns ErrNodeNotFound if the ring has zero nodes.
func (r *Ring) Lookup(key []byte) (string, error) {
	snap := r.current.Load()
	if len(snap.slots) == 0 {
		return "", ErrNodeNotFound
	}

	h := xxhash.Sum64(key)
	idx := sort.Search(len(snap.slots), func(i int) bool { return snap.slots[i].hash >= h })
	if idx == len(snap.slots) {
		idx = 0
	}
	return snap.slots[idx].addr, nil
}

// Nodes returns the current set of distinct node addresses, in no
// particular order.
func (r *Ring) Nodes() []string {
	snap := r.current.Load()
	out := make([]string, 0, len(snap.nodes))
	for a := range snap.nodes {
		out = append(out, a)
	}
	return out
}

// Contains reports whether addr currently owns any ring slots.
func (r *Ring) Contains(addr string) bool {
	snap := r.current.Load()
	_, ok := snap.nodes[addr]
	return ok
}

// slotHash hashes nodeAddress || "#" || replicaIndex per §4.6, using
// xxhash for a fast, uniform 64-bit hash (grounded on the xxhash/v2
// dependency pulled in via the stumble/dcache manifest in the pack).
func slotHash(addr string, replica int) uint64 {
	buf := make([]byte, 0, len(addr)+1+8)
	buf = append(buf, addr...)
	buf = append(buf, '#')
	buf = appendInt(buf, replica)
	return xxhash.Sum64(buf)
}

func appendInt(buf []byte, v int) []byte {
	return strconv.AppendInt(buf, int64(v), 10)
}
