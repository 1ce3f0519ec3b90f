package router

import (
	"github.com/dreamware/cachecluster/internal/errs"
	"github.com/dreamware/cachecluster/internal/pool"
	"github.com/dreamware/cachecluster/internal/ratelimit"
	"github.com/dreamware/cachecluster/internal/ring"
	"github.com/rs/zerolog"
)

// Membership is the router's membership controller (spec §4.10) and the
// only writer to the ring. Join creates a node's pool eagerly, but
// Membership is not the only creator of pool entries: Dispatcher.forward
// also creates one, through pool.Manager.Ensure, for any resolved node
// that has none. Generalizes torua's
// coordinator.autoAssignShards/handleRegister (which only ever grows the
// node set, never shrinks it) into explicit, idempotent Join/Leave.
type Membership struct {
	Ring  *ring.Ring
	Pools *pool.Manager
	Log   zerolog.Logger
}

// NewMembership wires a Membership controller against the same Ring and
// pool Manager the Dispatcher uses, so a Join/Leave mutation is visible
// to subsequent dispatch immediately.
func NewMembership(d *Dispatcher) *Membership {
	return &Membership{Ring: d.Ring, Pools: d.Pools, Log: d.Log}
}

// Join validates addr, then adds it to the ring and eagerly creates its
// connection pool. Both mutations land before Join returns, satisfying
// the "visible together" requirement in §4.10. Idempotent.
func (m *Membership) Join(addr string) error {
	if err := ratelimit.ValidateAddress(addr); err != nil {
		return err
	}
	if err := m.Ring.Add(addr); err != nil {
		return errs.New(errs.KindInternal, "membership.Join", err)
	}
	m.Pools.Ensure(addr)
	m.Log.Info().Str("addr", addr).Msg("node joined")
	return nil
}

// Leave removes addr from the ring and destroys its connection pool.
// Requests already forwarded to addr are allowed to finish; Leave does
// not cancel them. Idempotent.
func (m *Membership) Leave(addr string) error {
	if err := ratelimit.ValidateAddress(addr); err != nil {
		return err
	}
	if err := m.Ring.Remove(addr); err != nil {
		return errs.New(errs.KindInternal, "membership.Leave", err)
	}
	if err := m.Pools.Remove(addr); err != nil {
		return errs.New(errs.KindInternal, "membership.Leave", err)
	}
	m.Log.Info().Str("addr", addr).Msg("node left")
	return nil
}
