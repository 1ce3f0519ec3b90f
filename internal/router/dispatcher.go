// Package router implements the routing tier: the request dispatcher
// (validate → admit → resolve → forward → respond, spec §4.8) and the
// membership controller (Join/Leave, spec §4.10).
package router

import (
	"context"
	"time"

	"github.com/dreamware/cachecluster/internal/errs"
	"github.com/dreamware/cachecluster/internal/metrics"
	"github.com/dreamware/cachecluster/internal/pool"
	"github.com/dreamware/cachecluster/internal/ratelimit"
	"github.com/dreamware/cachecluster/internal/ring"
	"github.com/dreamware/cachecluster/internal/wire"
	"github.com/rs/zerolog"
)

// PoolCapacity bounds concurrent checkouts per backend node. Exported so
// cmd/router can surface it as a tunable without this package needing its
// own config type.
const PoolCapacity = 64

// Dispatcher composes the five dispatcher stages from spec §4.8 for the
// three data operations. It has no direct torua analogue: torua's
// coordinator forwards requests with a single shared httpClient and no
// admission control at all (internal/cluster, cmd/coordinator's
// forwardGet/forwardPut/forwardDelete) — this type generalizes that
// forwarding shape with validation, rate limiting, and pooled checkout
// layered in front of it.
type Dispatcher struct {
	Ring    *ring.Ring
	Pools   *pool.Manager
	Limiter *ratelimit.Limiter
	Metrics *metrics.Sink
	Log     zerolog.Logger
}

// NewDispatcher wires a Ring, rate Limiter, and a pool Manager using
// dialNode, ready to serve Get/Put/Delete.
func NewDispatcher(r *ring.Ring, limiter *ratelimit.Limiter, sink *metrics.Sink, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Ring:    r,
		Pools:   pool.NewManager(PoolCapacity, dialNode),
		Limiter: limiter,
		Metrics: sink,
		Log:     log,
	}
}

// Get validates, admits, resolves, forwards to the owning cache node, and
// returns its response.
func (d *Dispatcher) Get(ctx context.Context, callerKey string, req wire.GetRequest) (wire.GetResponse, error) {
	if err := ratelimit.ValidateBucket(req.Bucket); err != nil {
		return wire.GetResponse{}, d.countAndReturn(err)
	}
	if err := ratelimit.ValidateKey(req.Key); err != nil {
		return wire.GetResponse{}, d.countAndReturn(err)
	}
	if !d.admit(callerKey) {
		return wire.GetResponse{}, d.countAndReturn(rateLimitErr())
	}

	addr, err := d.Ring.Lookup(req.Key)
	if err != nil {
		return wire.GetResponse{}, d.countAndReturn(nodeNotFoundErr(err))
	}

	var resp wire.GetResponse
	err = d.forward(ctx, addr, wire.PathCacheGet, req, &resp)
	return resp, d.countAndReturn(err)
}

// Put validates, admits, resolves, forwards, and returns the node's
// response.
func (d *Dispatcher) Put(ctx context.Context, callerKey string, req wire.PutRequest) (wire.PutResponse, error) {
	if err := ratelimit.ValidateBucket(req.Bucket); err != nil {
		return wire.PutResponse{}, d.countAndReturn(err)
	}
	if err := ratelimit.ValidateKey(req.Key); err != nil {
		return wire.PutResponse{}, d.countAndReturn(err)
	}
	if err := ratelimit.ValidateValue(req.Value); err != nil {
		return wire.PutResponse{}, d.countAndReturn(err)
	}
	if !d.admit(callerKey) {
		return wire.PutResponse{}, d.countAndReturn(rateLimitErr())
	}

	addr, err := d.Ring.Lookup(req.Key)
	if err != nil {
		return wire.PutResponse{}, d.countAndReturn(nodeNotFoundErr(err))
	}

	var resp wire.PutResponse
	err = d.forward(ctx, addr, wire.PathCachePut, req, &resp)
	return resp, d.countAndReturn(err)
}

// Delete validates, admits, resolves, forwards, and returns the node's
// response.
func (d *Dispatcher) Delete(ctx context.Context, callerKey string, req wire.DeleteRequest) (wire.DeleteResponse, error) {
	if err := ratelimit.ValidateBucket(req.Bucket); err != nil {
		return wire.DeleteResponse{}, d.countAndReturn(err)
	}
	if err := ratelimit.ValidateKey(req.Key); err != nil {
		return wire.DeleteResponse{}, d.countAndReturn(err)
	}
	if !d.admit(callerKey) {
		return wire.DeleteResponse{}, d.countAndReturn(rateLimitErr())
	}

	addr, err := d.Ring.Lookup(req.Key)
	if err != nil {
		return wire.DeleteResponse{}, d.countAndReturn(nodeNotFoundErr(err))
	}

	var resp wire.DeleteResponse
	err = d.forward(ctx, addr, wire.PathCacheDelete, req, &resp)
	return resp, d.countAndReturn(err)
}

func (d *Dispatcher) admit(callerKey string) bool {
	return d.Limiter.Allow(callerKey)
}

// forward acquires a pooled client for addr, issues the RPC, and
// releases or recycles the client based on the outcome, per §4.7's
// "recycled on terminal transport error" requirement.
func (d *Dispatcher) forward(ctx context.Context, addr, path string, req, resp any) error {
	p := d.Pools.Ensure(addr)

	conn, err := p.Acquire(ctx)
	if err != nil {
		return errs.New(errs.KindConnectionError, "dispatcher.forward", err)
	}
	nc := conn.(*nodeConn)

	callErr := wire.Call(ctx, nc.client, addr, path, req, resp)
	if callErr != nil && isTerminal(callErr) {
		p.Drop(conn)
	} else {
		p.Release(conn)
	}
	return callErr
}

// isTerminal reports whether err represents a connection-level failure
// that should recycle the pooled client rather than return it to the
// idle set.
func isTerminal(err error) bool {
	e, ok := err.(*errs.Error)
	return ok && e.Kind == errs.KindConnectionError
}

func (d *Dispatcher) countAndReturn(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*errs.Error); ok {
		d.Metrics.Errors.WithLabelValues(string(e.Kind)).Inc()
	} else {
		d.Metrics.Errors.WithLabelValues(string(errs.KindInternal)).Inc()
	}
	return err
}

func rateLimitErr() error {
	return errs.New(errs.KindRateLimitExceeded, "dispatcher.admit", nil)
}

func nodeNotFoundErr(cause error) error {
	return errs.New(errs.KindNodeNotFound, "dispatcher.resolve", cause)
}

// shutdownDrain names a 5s grace period for in-flight forwards during
// graceful shutdown. Nothing reads it: cmd/router passes its own 5s
// timeout to http.Server.Shutdown.
const shutdownDrain = 5 * time.Second
