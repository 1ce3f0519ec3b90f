// Command router runs the routing tier: request dispatch (validate,
// rate-limit, resolve, forward) and cluster membership (Join/Leave),
// per spec §2 and §6. Bootstrap and shutdown sequencing follows
// torua's cmd/coordinator/main.go (signal handling, ReadHeaderTimeout
// against slowloris, a bounded graceful-shutdown window), adapted to
// zerolog and this service's own route set.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/cachecluster/internal/config"
	"github.com/dreamware/cachecluster/internal/metrics"
	"github.com/dreamware/cachecluster/internal/ratelimit"
	"github.com/dreamware/cachecluster/internal/ring"
	"github.com/dreamware/cachecluster/internal/router"
	"github.com/dreamware/cachecluster/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.LoadRouter()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "router").Logger()

	limiter, err := ratelimit.New(ratelimit.Config{
		Rate:   float64(cfg.RateLimit),
		Per:    time.Second,
		Burst:  float64(cfg.RateLimit),
		Shards: ratelimit.DefaultShards,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("building rate limiter")
	}

	reg := prometheus.NewRegistry()
	sink := metrics.New(reg)

	dispatcher := router.NewDispatcher(ring.New(), limiter, sink, log)
	membership := router.NewMembership(dispatcher)

	healthProbe := router.NewHealthProbe(dispatcher.Ring, 5*time.Second, 2*time.Second, log)
	healthProbe.Start(context.Background())
	defer healthProbe.Stop()

	facade := &router.Facade{Dispatcher: dispatcher, Membership: membership, HealthProbe: healthProbe}

	mux := http.NewServeMux()
	facade.Routes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/nodes", facade.NodesHandler)
	mux.Handle("/metrics", metrics.Handler(reg))

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           wire.WrapH2C(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("router listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("router shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	log.Info().Msg("router stopped")
}
