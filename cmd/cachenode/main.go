// Command cachenode runs a single cache node: the three-tier storage
// pipeline (memory, local, blob) behind the Cache service's Get/Put/
// Delete RPCs, plus a Prometheus metrics endpoint. Bootstrap and
// shutdown sequencing follows torua's cmd/node/main.go (retrying
// registration against the coordinator, graceful-shutdown ordering),
// generalized to this system's Join-on-start/Leave-on-stop membership
// protocol (spec §6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/cachecluster/internal/cachenode"
	"github.com/dreamware/cachecluster/internal/config"
	"github.com/dreamware/cachecluster/internal/metrics"
	"github.com/dreamware/cachecluster/internal/pipeline"
	"github.com/dreamware/cachecluster/internal/tier"
	"github.com/dreamware/cachecluster/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.LoadCache()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "cachenode").Logger()

	ttl := time.Duration(cfg.TTLSeconds) * time.Second

	mem, err := tier.NewMemory(cfg.LRUSize, ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("building memory tier")
	}

	localDir := localTierDir()
	local, err := tier.NewLocal(localDir, ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("building local tier")
	}
	defer local.Close()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	s3Client, err := tier.NewS3Client(startupCtx, cfg.AWSRegion)
	startupCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("building object-store client")
	}

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	probeErr := tier.ProbeReachable(probeCtx, s3Client, cfg.S3Bucket)
	probeCancel()
	if probeErr != nil {
		log.Fatal().Err(probeErr).Str("bucket", cfg.S3Bucket).Msg("object store unreachable during startup probe")
	}

	blob := tier.NewS3Blob(s3Client, cfg.S3Bucket)
	defer blob.Close()

	reg := prometheus.NewRegistry()
	sink := metrics.New(reg)

	pl := &pipeline.Pipeline{
		Mem:     mem,
		Local:   local,
		Blob:    blob,
		TTL:     ttl,
		Metrics: sink,
		Log:     log,
	}
	facade := &cachenode.Facade{Pipeline: pl, Metrics: sink, Log: log}

	mux := http.NewServeMux()
	facade.Routes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/info", facade.InfoHandler)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           wire.WrapH2C(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	routerClient := wire.NewClient(5 * time.Second)
	selfAddr := selfAddress(cfg.ListenAddr)

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("cache node listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	go func() {
		log.Info().Str("port", cfg.MetricsPort).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics listen")
		}
	}()

	joinRouter(context.Background(), log, routerClient, cfg.RouterAddr, selfAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("cache node shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	_ = metricsSrv.Shutdown(ctx)

	leaveRouter(ctx, log, routerClient, cfg.RouterAddr, selfAddr)
	log.Info().Msg("cache node stopped")
}

// joinRouter retries Join against the router up to 10 times with a
// 400ms backoff, mirroring torua's cmd/node register() retry loop; a
// cache node cannot serve usefully without being reachable through the
// router, so persistent failure is fatal.
func joinRouter(ctx context.Context, log zerolog.Logger, client *http.Client, routerAddr, selfAddr string) {
	var lastErr error
	for i := 0; i < 10; i++ {
		var resp wire.JoinResponse
		lastErr = wire.Call(ctx, client, routerAddr, wire.PathRouterJoin, wire.JoinRequest{Address: selfAddr}, &resp)
		if lastErr == nil {
			log.Info().Str("router", routerAddr).Msg("joined router")
			return
		}
		log.Warn().Err(lastErr).Int("attempt", i+1).Msg("join retry")
		time.Sleep(400 * time.Millisecond)
	}
	log.Fatal().Err(lastErr).Msg("failed to join router")
}

// leaveRouter best-effort notifies the router this node is stopping, so
// its pool is torn down promptly rather than waiting for a future
// Join-time recycle. Failure here does not block shutdown.
func leaveRouter(ctx context.Context, log zerolog.Logger, client *http.Client, routerAddr, selfAddr string) {
	var resp wire.LeaveResponse
	if err := wire.Call(ctx, client, routerAddr, wire.PathRouterLeave, wire.LeaveRequest{Address: selfAddr}, &resp); err != nil {
		log.Warn().Err(err).Msg("leave router failed, continuing shutdown")
	}
}

func localTierDir() string {
	if dir := os.Getenv("LOCAL_TIER_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// selfAddress turns a bind address like ":8081" into an
// http://host:port form the router can dial back, using the
// ADVERTISE_ADDR override when the bind address is unroutable from
// other processes (e.g. inside a container).
func selfAddress(listenAddr string) string {
	if advertised := os.Getenv("ADVERTISE_ADDR"); advertised != "" {
		return advertised
	}
	return fmt.Sprintf("http://localhost%s", listenAddr)
}
