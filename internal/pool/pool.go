// Package pool manages bounded connection pools to cache-node backends, one
// pool per node address, generalizing the teacher's ad-hoc shared
// package-level httpClient (internal/cluster) into the per-node capacity
// model required by spec §4.7.
package pool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Conn is anything a pool can hand out and later recycle or discard. The
// wire package's client type satisfies this.
type Conn interface {
	Close() error
}

// Dialer creates a new Conn for a node address. Supplied by the caller
// (router wiring) so this package stays transport-agnostic.
type Dialer func(ctx context.Context, addr string) (Conn, error)

// Pool bounds the number of concurrently checked-out connections to one
// node address and reuses idle connections across requests. Acquire
// cooperatively blocks when the pool is at capacity rather than failing
// fast, per §4.7's "cooperative blocking" requirement.
type Pool struct {
	addr   string
	dial   Dialer
	sem    *semaphore.Weighted
	mu     sync.Mutex
	idle   []Conn
	closed bool
}

// New returns a pool for addr with room for at most capacity concurrently
// checked-out connections.
func New(addr string, capacity int64, dial Dialer) *Pool {
	return &Pool{
		addr: addr,
		dial: dial,
		sem:  semaphore.NewWeighted(capacity),
	}
}

// Acquire blocks until a slot is free (or ctx is done), then returns an
// idle connection if one exists or dials a fresh one.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("pool %s: acquire: %w", p.addr, err)
	}

	p.mu.Lock()
	closed := p.closed
	var c Conn
	if !closed && len(p.idle) > 0 {
		c = p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
	}
	p.mu.Unlock()

	if closed {
		p.sem.Release(1)
		return nil, fmt.Errorf("pool %s: closed", p.addr)
	}
	if c != nil {
		return c, nil
	}

	c, err := p.dial(ctx, p.addr)
	if err != nil {
		p.sem.Release(1)
		return nil, fmt.Errorf("pool %s: dial: %w", p.addr, err)
	}
	return c, nil
}

// Release returns a healthy connection to the idle set so a future
// Acquire can reuse it without dialing.
func (p *Pool) Release(c Conn) {
	p.mu.Lock()
	closed := p.closed
	if !closed {
		p.idle = append(p.idle, c)
	}
	p.mu.Unlock()
	p.sem.Release(1)

	if closed {
		_ = c.Close()
	}
}

// Drop discards a connection that hit a terminal error instead of
// returning it to the idle set, so a future Acquire dials fresh rather
// than handing out a connection known to be broken.
func (p *Pool) Drop(c Conn) {
	_ = c.Close()
	p.sem.Release(1)
}

// Close marks the pool closed and closes every idle connection. In-flight
// checkouts are released normally but discarded rather than returned to
// the (now gone) idle set.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var firstErr error
	for _, c := range idle {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Addr returns the backend address this pool serves.
func (p *Pool) Addr() string { return p.addr }

// Manager owns one Pool per node address and keeps it in sync with ring
// membership: Join creates a pool, Leave tears one down. This is the
// piece torua's coordinator never needed, since it never changed the
// node set at runtime without a restart.
type Manager struct {
	dial     Dialer
	capacity int64

	mu    sync.Mutex
	pools map[string]*Pool
}

// NewManager returns a Manager that creates pools of the given capacity
// using dial.
func NewManager(capacity int64, dial Dialer) *Manager {
	return &Manager{
		dial:     dial,
		capacity: capacity,
		pools:    make(map[string]*Pool),
	}
}

// Ensure returns the pool for addr, creating one if this is the first time
// addr has been seen.
func (m *Manager) Ensure(addr string) *Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[addr]; ok {
		return p
	}
	p := New(addr, m.capacity, m.dial)
	m.pools[addr] = p
	return p
}

// Remove closes and forgets the pool for addr, if any.
func (m *Manager) Remove(addr string) error {
	m.mu.Lock()
	p, ok := m.pools[addr]
	delete(m.pools, addr)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Close()
}

// Get returns the existing pool for addr, or nil if none has been created.
func (m *Manager) Get(addr string) *Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pools[addr]
}
