package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreamware/cachecluster/internal/errs"
	"github.com/dreamware/cachecluster/internal/metrics"
	"github.com/dreamware/cachecluster/internal/ratelimit"
	"github.com/dreamware/cachecluster/internal/ring"
	"github.com/dreamware/cachecluster/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	limiter, err := ratelimit.New(ratelimit.Config{Rate: 1000, Per: time.Second, Burst: 1000, Shards: 8})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	return NewDispatcher(ring.New(), limiter, metrics.New(reg), zerolog.Nop())
}

// fakeCacheNode runs a minimal Cache service backed by an in-memory map,
// standing in for a real cache-node process in dispatcher tests.
func fakeCacheNode(t *testing.T) *httptest.Server {
	t.Helper()
	store := map[string][]byte{}
	mux := http.NewServeMux()
	mux.Handle(wire.PathCacheGet, wire.ServeRPC(func(r *http.Request, body []byte) (any, error) {
		var req wire.GetRequest
		_ = wire.Unmarshal(body, &req)
		v, ok := store[req.Bucket+"/"+string(req.Key)]
		return wire.GetResponse{Successful: ok, Value: v}, nil
	}))
	mux.Handle(wire.PathCachePut, wire.ServeRPC(func(r *http.Request, body []byte) (any, error) {
		var req wire.PutRequest
		_ = wire.Unmarshal(body, &req)
		store[req.Bucket+"/"+string(req.Key)] = req.Value
		return wire.PutResponse{Successful: true}, nil
	}))
	mux.Handle(wire.PathCacheDelete, wire.ServeRPC(func(r *http.Request, body []byte) (any, error) {
		var req wire.DeleteRequest
		_ = wire.Unmarshal(body, &req)
		delete(store, req.Bucket+"/"+string(req.Key))
		return wire.DeleteResponse{Successful: true}, nil
	}))
	srv := httptest.NewServer(wire.WrapH2C(mux))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatcherGetNodeNotFoundOnEmptyRing(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.Get(context.Background(), "caller", wire.GetRequest{Bucket: "b", Key: []byte("k")})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.KindNodeNotFound, e.Kind)
}

func TestDispatcherInvalidInputRejectedBeforeResolve(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.Get(context.Background(), "caller", wire.GetRequest{Bucket: "", Key: []byte("k")})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.KindInvalidInput, e.Kind)
}

func TestDispatcherForwardsToResolvedNode(t *testing.T) {
	node := fakeCacheNode(t)
	d := newTestDispatcher(t)
	require.NoError(t, d.Ring.Add(node.URL))

	ctx := context.Background()
	putResp, err := d.Put(ctx, "caller", wire.PutRequest{Bucket: "b", Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)
	require.True(t, putResp.Successful)

	getResp, err := d.Get(ctx, "caller", wire.GetRequest{Bucket: "b", Key: []byte("k")})
	require.NoError(t, err)
	require.True(t, getResp.Successful)
	require.Equal(t, []byte("v"), getResp.Value)

	delResp, err := d.Delete(ctx, "caller", wire.DeleteRequest{Bucket: "b", Key: []byte("k")})
	require.NoError(t, err)
	require.True(t, delResp.Successful)
}

func TestDispatcherRateLimitExceeded(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.Config{Rate: 1, Per: time.Hour, Burst: 1, Shards: 1})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	d := NewDispatcher(ring.New(), limiter, metrics.New(reg), zerolog.Nop())

	node := fakeCacheNode(t)
	require.NoError(t, d.Ring.Add(node.URL))

	ctx := context.Background()
	_, err = d.Get(ctx, "same-caller", wire.GetRequest{Bucket: "b", Key: []byte("k")})
	require.NoError(t, err)

	_, err = d.Get(ctx, "same-caller", wire.GetRequest{Bucket: "b", Key: []byte("k")})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.KindRateLimitExceeded, e.Kind)
	require.True(t, e.Kind.Retriable())
}

func TestDispatcherConnectionErrorOnUnreachableNode(t *testing.T) {
	d := newTestDispatcher(t)
	require.NoError(t, d.Ring.Add("http://127.0.0.1:1"))

	_, err := d.Get(context.Background(), "caller", wire.GetRequest{Bucket: "b", Key: []byte("k")})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.KindConnectionError, e.Kind)
}
