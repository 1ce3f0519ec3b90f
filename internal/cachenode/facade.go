// Package cachenode implements the cache-node RPC facade (spec §4.5):
// the Get/Put/Delete wire handlers in front of internal/pipeline, wired
// onto internal/wire's HTTP/2 transport.
package cachenode

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dreamware/cachecluster/internal/errs"
	"github.com/dreamware/cachecluster/internal/metrics"
	"github.com/dreamware/cachecluster/internal/pipeline"
	"github.com/dreamware/cachecluster/internal/ratelimit"
	"github.com/dreamware/cachecluster/internal/tier"
	"github.com/dreamware/cachecluster/internal/wire"
	"github.com/rs/zerolog"
)

// Facade exposes the Cache service (Get/Put/Delete) as HTTP handlers.
// Generalizes torua's cmd/node handlers (handleGet/handlePut/handleDelete
// over REST-ish paths) into the wire package's RPC envelope.
type Facade struct {
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Sink
	Log      zerolog.Logger
}

// Routes registers the Cache service's three RPC paths on mux.
func (f *Facade) Routes(mux *http.ServeMux) {
	mux.Handle(wire.PathCacheGet, wire.ServeRPC(f.handleGet))
	mux.Handle(wire.PathCachePut, wire.ServeRPC(f.handlePut))
	mux.Handle(wire.PathCacheDelete, wire.ServeRPC(f.handleDelete))
}

func (f *Facade) handleGet(r *http.Request, body []byte) (any, error) {
	f.Metrics.Requests.Inc()
	start := time.Now()
	defer func() { f.Metrics.OpDuration.WithLabelValues("get").Observe(time.Since(start).Seconds()) }()

	var req wire.GetRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, f.invalid("decode_get", err)
	}
	if err := validateGet(req); err != nil {
		return nil, err
	}

	value, found, err := f.Pipeline.Get(r.Context(), req.Bucket, req.Key)
	if err != nil {
		f.countError(err)
		return nil, err
	}
	return wire.GetResponse{Successful: found, Value: value}, nil
}

func (f *Facade) handlePut(r *http.Request, body []byte) (any, error) {
	f.Metrics.Requests.Inc()
	start := time.Now()
	defer func() { f.Metrics.OpDuration.WithLabelValues("put").Observe(time.Since(start).Seconds()) }()

	var req wire.PutRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, f.invalid("decode_put", err)
	}
	if err := validatePut(req); err != nil {
		return nil, err
	}

	if err := f.Pipeline.Put(r.Context(), req.Bucket, req.Key, req.Value); err != nil {
		f.countError(err)
		return nil, err
	}
	return wire.PutResponse{Successful: true}, nil
}

func (f *Facade) handleDelete(r *http.Request, body []byte) (any, error) {
	f.Metrics.Requests.Inc()
	start := time.Now()
	defer func() { f.Metrics.OpDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds()) }()

	var req wire.DeleteRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, f.invalid("decode_delete", err)
	}
	if err := validateDelete(req); err != nil {
		return nil, err
	}

	if err := f.Pipeline.Delete(r.Context(), req.Bucket, req.Key); err != nil {
		f.countError(err)
		return nil, err
	}
	return wire.DeleteResponse{Successful: true}, nil
}

// tierInfo mirrors one tier's Stats plus, for the memory tier, its hit
// ratio, for the GET /info response below.
type tierInfo struct {
	Name     string  `json:"name"`
	Entries  int64   `json:"entries"`
	Bytes    int64   `json:"bytes"`
	HitRatio float64 `json:"hit_ratio,omitempty"`
}

// nodeInfo is the GET /info response body, generalizing torua's
// handleNodeInfo (node_id/shard_count/shards) from one in-memory shard
// per node to this node's three-tier pipeline.
type nodeInfo struct {
	Tiers []tierInfo `json:"tiers"`
}

// InfoHandler serves GET /info: a snapshot of this node's tier
// statistics, for the introspection surface SPEC_FULL.md §4 commits to
// (generalizing torua's cmd/node handleNodeInfo).
func (f *Facade) InfoHandler(w http.ResponseWriter, _ *http.Request) {
	memStats := f.Pipeline.Mem.Stats()
	info := nodeInfo{
		Tiers: []tierInfo{
			{Name: memStats.Name, Entries: memStats.Entries, Bytes: memStats.Bytes, HitRatio: f.Pipeline.Mem.HitRatio()},
			statsToInfo(f.Pipeline.Local.Stats()),
			statsToInfo(f.Pipeline.Blob.Stats()),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

func statsToInfo(s tier.Stats) tierInfo {
	return tierInfo{Name: s.Name, Entries: s.Entries, Bytes: s.Bytes}
}

func (f *Facade) invalid(op string, err error) error {
	e := errs.New(errs.KindInvalidInput, op, err)
	f.countError(e)
	return e
}

func (f *Facade) countError(err error) {
	var e *errs.Error
	if ok := asErrsError(err, &e); ok {
		f.Metrics.Errors.WithLabelValues(string(e.Kind)).Inc()
		return
	}
	f.Metrics.Errors.WithLabelValues(string(errs.KindInternal)).Inc()
}

func asErrsError(err error, target **errs.Error) bool {
	if e, ok := err.(*errs.Error); ok {
		*target = e
		return true
	}
	return false
}

func validateGet(req wire.GetRequest) error {
	if err := ratelimit.ValidateBucket(req.Bucket); err != nil {
		return err
	}
	return ratelimit.ValidateKey(req.Key)
}

func validatePut(req wire.PutRequest) error {
	if err := ratelimit.ValidateBucket(req.Bucket); err != nil {
		return err
	}
	if err := ratelimit.ValidateKey(req.Key); err != nil {
		return err
	}
	return ratelimit.ValidateValue(req.Value)
}

func validateDelete(req wire.DeleteRequest) error {
	if err := ratelimit.ValidateBucket(req.Bucket); err != nil {
		return err
	}
	return ratelimit.ValidateKey(req.Key)
}
