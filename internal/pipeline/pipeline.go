// Package pipeline implements the tiered read/write orchestration
// described in spec §4.4: cold-to-hot read cascade with promotion,
// durable-first writes. It is the only code in this module permitted to
// compose internal/tier's three stores together.
package pipeline

import (
	"context"
	"time"

	"github.com/dreamware/cachecluster/internal/errs"
	"github.com/dreamware/cachecluster/internal/metrics"
	"github.com/dreamware/cachecluster/internal/storekey"
	"github.com/dreamware/cachecluster/internal/tier"
	"github.com/rs/zerolog"
)

// Pipeline orchestrates the memory, local, and blob tiers for one cache
// node. It has no torua analogue: torua's shard.Shard only ever
// delegates to a single storage.Store. This type is this module's answer
// to the spec's "Tiered operation pipeline" component, built directly
// from §4.4's numbered steps rather than adapted from any one teacher
// file.
type Pipeline struct {
	Mem   *tier.Memory
	Local *tier.Local
	Blob  tier.Blob
	TTL   time.Duration

	Metrics *metrics.Sink
	Log     zerolog.Logger
}

// Get implements the read cascade: memory, then local (with promotion to
// memory), then blob (with promotion to local and memory). A promotion
// failure is logged and metered but never fails the Get, per §4.4.
func (p *Pipeline) Get(ctx context.Context, bucket string, key []byte) (value []byte, found bool, err error) {
	sk := storekey.Derive(bucket, key)

	if v, err := p.Mem.Get(ctx, sk); err == nil {
		p.Metrics.CacheHits.WithLabelValues("mem").Inc()
		return v, true, nil
	}

	v, err := p.Local.Get(ctx, sk)
	switch {
	case err == nil:
		p.Metrics.CacheHits.WithLabelValues("local").Inc()
		p.promoteToMem(ctx, sk, v)
		return v, true, nil
	case err != tier.ErrNotFound:
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		return nil, false, errs.New(errs.KindStoreError, "pipeline.Get.local", err)
	}

	v, err = p.Blob.Get(ctx, sk)
	switch {
	case err == nil:
		p.Metrics.CacheHits.WithLabelValues("blob").Inc()
		p.promoteToLocal(ctx, sk, v)
		p.promoteToMem(ctx, sk, v)
		return v, true, nil
	case err != tier.ErrNotFound:
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		return nil, false, errs.New(errs.KindStoreError, "pipeline.Get.blob", err)
	}

	p.Metrics.CacheMisses.Inc()
	return nil, false, nil
}

// Put writes durable-first: blob, then local (both fail the operation on
// error), then memory (best-effort, per §4.4 step 4).
func (p *Pipeline) Put(ctx context.Context, bucket string, key, value []byte) error {
	sk := storekey.Derive(bucket, key)

	if err := p.Blob.Put(ctx, sk, value); err != nil {
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		return errs.New(errs.KindStoreError, "pipeline.Put.blob", err)
	}
	if err := p.Local.Put(ctx, sk, value, p.TTL); err != nil {
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		return errs.New(errs.KindStoreError, "pipeline.Put.local", err)
	}
	if err := p.Mem.Put(ctx, sk, value, p.TTL); err != nil {
		p.Log.Warn().Err(err).Str("storage_key", sk).Msg("memory tier put failed, ignoring (best-effort)")
	}
	return nil
}

// Delete removes from memory, then local, then blob. Local/blob errors
// propagate; memory errors are logged only, per §4.4 step "Delete".
func (p *Pipeline) Delete(ctx context.Context, bucket string, key []byte) error {
	sk := storekey.Derive(bucket, key)

	if err := p.Mem.Delete(ctx, sk); err != nil {
		p.Log.Warn().Err(err).Str("storage_key", sk).Msg("memory tier delete failed, ignoring (best-effort)")
	}
	if err := p.Local.Delete(ctx, sk); err != nil {
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		return errs.New(errs.KindStoreError, "pipeline.Delete.local", err)
	}
	if err := p.Blob.Delete(ctx, sk); err != nil {
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		return errs.New(errs.KindStoreError, "pipeline.Delete.blob", err)
	}
	return nil
}

func (p *Pipeline) promoteToMem(ctx context.Context, sk string, value []byte) {
	if err := p.Mem.Put(ctx, sk, value, p.TTL); err != nil {
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		p.Log.Warn().Err(err).Str("storage_key", sk).Msg("promotion to memory tier failed")
	}
}

func (p *Pipeline) promoteToLocal(ctx context.Context, sk string, value []byte) {
	if err := p.Local.Put(ctx, sk, value, p.TTL); err != nil {
		p.Metrics.Errors.WithLabelValues(string(errs.KindStoreError)).Inc()
		p.Log.Warn().Err(err).Str("storage_key", sk).Msg("promotion to local tier failed")
	}
}
