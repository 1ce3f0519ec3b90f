// Package integration exercises the router and cache-node services
// together end to end, the way torua's test/integration package spun up
// a coordinator and nodes as real processes. Spawning binaries adds
// nothing here that wiring the real in-process components doesn't
// already give us — the router and cache node are small enough to
// build directly — so this harness runs real Dispatcher/Membership/
// Facade and real Pipeline/tier instances behind httptest/h2c servers
// instead of exec.Command, while keeping the same "system of services
// talking over HTTP" shape and scenario coverage as the original.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreamware/cachecluster/internal/cachenode"
	"github.com/dreamware/cachecluster/internal/metrics"
	"github.com/dreamware/cachecluster/internal/pipeline"
	"github.com/dreamware/cachecluster/internal/ratelimit"
	"github.com/dreamware/cachecluster/internal/ring"
	"github.com/dreamware/cachecluster/internal/router"
	"github.com/dreamware/cachecluster/internal/tier"
	"github.com/dreamware/cachecluster/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// memBlob is a bucket-less in-memory stand-in for the object tier, so
// these tests don't need real S3/filesystem credentials to exercise
// the full three-tier pipeline.
type memBlob struct{ data map[string][]byte }

func newMemBlob() *memBlob { return &memBlob{data: map[string][]byte{}} }

func (b *memBlob) Get(_ context.Context, sk string) ([]byte, error) {
	v, ok := b.data[sk]
	if !ok {
		return nil, tier.ErrNotFound
	}
	return v, nil
}
func (b *memBlob) Put(_ context.Context, sk string, value []byte) error {
	b.data[sk] = append([]byte(nil), value...)
	return nil
}
func (b *memBlob) Delete(_ context.Context, sk string) error {
	delete(b.data, sk)
	return nil
}
func (b *memBlob) Stats() tier.Stats { return tier.Stats{Name: "blob", Entries: int64(len(b.data))} }
func (b *memBlob) Close() error      { return nil }

// testCluster is the in-process analogue of torua's TestSystem: one
// router plus a set of cache nodes, reachable over real HTTP.
type testCluster struct {
	t        *testing.T
	routerURL string
	client   *http.Client
	nodes    []*httptest.Server
}

// newTestCluster starts a router and n cache nodes, each with its own
// real memory+local+blob pipeline, and Joins every node to the router.
func newTestCluster(t *testing.T, n int) *testCluster {
	t.Helper()

	limiter, err := ratelimit.New(ratelimit.Config{Rate: 10000, Per: time.Second, Burst: 10000})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	dispatcher := router.NewDispatcher(ring.New(), limiter, metrics.New(reg), zerolog.Nop())
	membership := router.NewMembership(dispatcher)
	routerFacade := &router.Facade{Dispatcher: dispatcher, Membership: membership}

	routerMux := http.NewServeMux()
	routerFacade.Routes(routerMux)
	routerSrv := httptest.NewServer(wire.WrapH2C(routerMux))
	t.Cleanup(routerSrv.Close)

	client := wire.NewClient(2 * time.Second)

	cl := &testCluster{t: t, routerURL: routerSrv.URL, client: client}
	for i := 0; i < n; i++ {
		cl.nodes = append(cl.nodes, cl.startNode(fmt.Sprintf("node-%d", i)))
	}
	return cl
}

func (cl *testCluster) startNode(name string) *httptest.Server {
	t := cl.t
	mem, err := tier.NewMemory(1000, time.Minute)
	require.NoError(t, err)
	local, err := tier.NewLocal(t.TempDir(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	reg := prometheus.NewRegistry()
	sink := metrics.New(reg)
	pl := &pipeline.Pipeline{
		Mem:     mem,
		Local:   local,
		Blob:    newMemBlob(),
		TTL:     time.Minute,
		Metrics: sink,
		Log:     zerolog.Nop().With().Str("node", name).Logger(),
	}
	facade := &cachenode.Facade{Pipeline: pl, Metrics: sink, Log: zerolog.Nop()}

	mux := http.NewServeMux()
	facade.Routes(mux)
	srv := httptest.NewServer(wire.WrapH2C(mux))
	t.Cleanup(srv.Close)

	var joinResp wire.JoinResponse
	require.NoError(t, wire.Call(context.Background(), cl.client, cl.routerURL,
		wire.PathRouterJoin, wire.JoinRequest{Address: srv.URL}, &joinResp))
	require.True(t, joinResp.Successful)

	return srv
}

func (cl *testCluster) leave(srv *httptest.Server) {
	var resp wire.LeaveResponse
	require.NoError(cl.t, wire.Call(context.Background(), cl.client, cl.routerURL,
		wire.PathRouterLeave, wire.LeaveRequest{Address: srv.URL}, &resp))
}

func (cl *testCluster) put(bucket, key, value string) error {
	var resp wire.PutResponse
	err := wire.Call(context.Background(), cl.client, cl.routerURL, wire.PathRouterPut,
		wire.PutRequest{Bucket: bucket, Key: []byte(key), Value: []byte(value)}, &resp)
	if err == nil && !resp.Successful {
		return fmt.Errorf("put reported unsuccessful")
	}
	return err
}

func (cl *testCluster) get(bucket, key string) (string, bool, error) {
	var resp wire.GetResponse
	err := wire.Call(context.Background(), cl.client, cl.routerURL, wire.PathRouterGet,
		wire.GetRequest{Bucket: bucket, Key: []byte(key)}, &resp)
	if err != nil {
		return "", false, err
	}
	return string(resp.Value), resp.Successful, nil
}

func (cl *testCluster) delete(bucket, key string) error {
	var resp wire.DeleteResponse
	return wire.Call(context.Background(), cl.client, cl.routerURL, wire.PathRouterDelete,
		wire.DeleteRequest{Bucket: bucket, Key: []byte(key)}, &resp)
}

// TestClusterRoundtrip covers spec §8 scenario 1: put, get, delete
// through the router against a multi-node cluster.
func TestClusterRoundtrip(t *testing.T) {
	cl := newTestCluster(t, 3)

	require.NoError(t, cl.put("default", "greeting", "hello world"))

	value, ok, err := cl.get("default", "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello world", value)

	require.NoError(t, cl.delete("default", "greeting"))

	_, ok, err = cl.get("default", "greeting")
	require.NoError(t, err)
	require.False(t, ok)
}

// TestClusterUpdateExistingValue covers overwriting a key in place.
func TestClusterUpdateExistingValue(t *testing.T) {
	cl := newTestCluster(t, 2)

	require.NoError(t, cl.put("default", "counter", "1"))
	require.NoError(t, cl.put("default", "counter", "2"))

	value, ok, err := cl.get("default", "counter")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)
}

// TestClusterNonExistentKey covers spec §8 scenario 2: a miss across
// every tier returns Successful=false rather than an error.
func TestClusterNonExistentKey(t *testing.T) {
	cl := newTestCluster(t, 2)

	_, ok, err := cl.get("default", "never-written")
	require.NoError(t, err)
	require.False(t, ok)
}

// TestClusterConsistentRouting covers spec §8 scenario: repeated
// lookups of the same key must land on the same node as long as
// membership doesn't change, since ring placement is deterministic.
func TestClusterConsistentRouting(t *testing.T) {
	cl := newTestCluster(t, 4)
	require.NoError(t, cl.put("default", "sticky-key", "v1"))

	for i := 0; i < 5; i++ {
		value, ok, err := cl.get("default", "sticky-key")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "v1", value)
	}
}

// TestClusterLeaveDropsPool covers spec §8 scenario 4: once a node
// leaves, keys that hashed to it become unreachable (NodeNotFound-class
// behavior surfaces as an error from the router) rather than silently
// routing to a node whose pool still exists.
func TestClusterLeaveDropsPool(t *testing.T) {
	cl := newTestCluster(t, 1)
	require.NoError(t, cl.put("default", "k", "v"))

	cl.leave(cl.nodes[0])

	_, _, err := cl.get("default", "k")
	require.Error(t, err)
}

// TestClusterManyKeysSpreadAcrossNodes writes 200 keys through a 4-node
// cluster, where the ring spreads them across the nodes, and reads each
// one back. It checks the round trip only; how evenly keys spread is
// covered by internal/ring's TestRingBalance.
func TestClusterManyKeysSpreadAcrossNodes(t *testing.T) {
	cl := newTestCluster(t, 4)

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i)
		require.NoError(t, cl.put("default", key, key))
	}
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i)
		value, ok, err := cl.get("default", key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, key, value)
	}
}

// TestClusterInvalidInputRejected covers spec §8 scenario: the router
// rejects malformed requests before ever resolving or forwarding them.
func TestClusterInvalidInputRejected(t *testing.T) {
	cl := newTestCluster(t, 1)
	err := cl.put("", "k", "v")
	require.Error(t, err)
}

// TestClusterRateLimitExceeded covers spec §8 scenario 5: a caller
// that exceeds its token bucket gets rejected without reaching a node.
func TestClusterRateLimitExceeded(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.Config{Rate: 1, Per: time.Hour, Burst: 1, Shards: 1})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	dispatcher := router.NewDispatcher(ring.New(), limiter, metrics.New(reg), zerolog.Nop())
	membership := router.NewMembership(dispatcher)
	facade := &router.Facade{Dispatcher: dispatcher, Membership: membership}

	mux := http.NewServeMux()
	facade.Routes(mux)
	srv := httptest.NewServer(wire.WrapH2C(mux))
	t.Cleanup(srv.Close)

	client := wire.NewClient(2 * time.Second)
	ctx := context.Background()

	var getResp wire.GetResponse
	err = wire.Call(ctx, client, srv.URL, wire.PathRouterGet, wire.GetRequest{Bucket: "b", Key: []byte("k")}, &getResp)
	require.Error(t, err) // first call still fails: NodeNotFound, no nodes joined

	err = wire.Call(ctx, client, srv.URL, wire.PathRouterGet, wire.GetRequest{Bucket: "b", Key: []byte("k")}, &getResp)
	require.Error(t, err) // second call from the same caller is rate-limited before resolution
}
