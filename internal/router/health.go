package router

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// nodeHealth tracks the liveness of one node, adapted from torua's
// coordinator.NodeHealth.
type nodeHealth struct {
	lastCheck        time.Time
	lastHealthy      time.Time
	status           string
	consecutiveFails int
}

// HealthProbe periodically probes every node currently in the ring's
// /health endpoint and logs status transitions. Unlike torua's
// HealthMonitor, it never removes a node from the ring or triggers any
// redistribution on failure: Open Question 1 in DESIGN.md decided that
// auto-eviction is out of scope here, so this type is purely an
// observability signal layered on top of Membership, not a second writer
// to it.
type HealthProbe struct {
	ring       nodeLister
	httpClient *http.Client
	interval   time.Duration
	timeout    time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	status map[string]*nodeHealth

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// nodeLister is the subset of *ring.Ring the probe needs, kept narrow so
// this file doesn't import internal/ring just to call one method.
type nodeLister interface {
	Nodes() []string
}

// NewHealthProbe returns a probe that checks every node in r every
// interval, with timeout bounding each individual check.
func NewHealthProbe(r nodeLister, interval, timeout time.Duration, log zerolog.Logger) *HealthProbe {
	return &HealthProbe{
		ring:       r,
		httpClient: &http.Client{Timeout: timeout},
		interval:   interval,
		timeout:    timeout,
		log:        log,
		status:     make(map[string]*nodeHealth),
	}
}

// Start runs the probe loop until ctx is done or Stop is called.
func (p *HealthProbe) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	ticker := time.NewTicker(p.interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.checkAll(ctx)
			}
		}
	}()
}

// Stop halts the probe loop and waits for the in-flight round to finish.
func (p *HealthProbe) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *HealthProbe) checkAll(ctx context.Context) {
	for _, addr := range p.ring.Nodes() {
		p.checkOne(ctx, addr)
	}
}

func (p *HealthProbe) checkOne(ctx context.Context, addr string) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, addr+"/health", nil)
	healthy := false
	if err == nil {
		resp, doErr := p.httpClient.Do(req)
		if doErr == nil {
			healthy = resp.StatusCode == http.StatusOK
			resp.Body.Close()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.status[addr]
	if !ok {
		h = &nodeHealth{status: "unknown"}
		p.status[addr] = h
	}
	h.lastCheck = time.Now()
	if healthy {
		h.lastHealthy = h.lastCheck
		h.consecutiveFails = 0
		if h.status != "healthy" {
			p.log.Info().Str("addr", addr).Msg("node recovered")
		}
		h.status = "healthy"
		return
	}

	h.consecutiveFails++
	if h.status != "unhealthy" && h.consecutiveFails >= 3 {
		p.log.Warn().Str("addr", addr).Int("consecutive_fails", h.consecutiveFails).
			Msg("node unhealthy (observability only, not evicted)")
		h.status = "unhealthy"
	}
}

// Status returns a snapshot of each node's last-known status for the
// supplemented introspection endpoint (SPEC_FULL.md §4).
func (p *HealthProbe) Status() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.status))
	for addr, h := range p.status {
		out[addr] = h.status
	}
	return out
}
