// Package config loads the environment-variable configuration for the
// router and cache-node processes (spec §6), in the getenv/mustGetenv
// idiom torua's cmd/node and cmd/coordinator use directly off the
// standard library. Config loading is explicitly out of scope for the
// spec's core subsystems, so this stays intentionally thin rather than
// growing its own validation framework.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Router holds the router process's environment configuration.
type Router struct {
	ListenAddr string
	RateLimit  int
	LogLevel   string
}

// LoadRouter reads Router config from the environment, applying the
// defaults spec §6 implies for a minimal runnable process.
func LoadRouter() (Router, error) {
	rate, err := getenvInt("RATE_LIMIT", 1000)
	if err != nil {
		return Router{}, err
	}
	return Router{
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
		RateLimit:  rate,
		LogLevel:   getenv("LOG_LEVEL", "info"),
	}, nil
}

// Cache holds the cache-node process's environment configuration.
type Cache struct {
	ListenAddr  string
	RouterAddr  string
	LRUSize     int
	TTLSeconds  int
	MetricsPort string
	AWSRegion   string
	S3Bucket    string
	LogLevel    string
}

// LoadCache reads Cache config from the environment. RouterAddr and
// S3Bucket are required: a cache node cannot join a cluster or persist
// durably without them.
func LoadCache() (Cache, error) {
	routerAddr, err := mustGetenv("ROUTER_ADDR")
	if err != nil {
		return Cache{}, err
	}
	bucket, err := mustGetenv("S3_BUCKET")
	if err != nil {
		return Cache{}, err
	}
	lruSize, err := getenvInt("LRU_SIZE", 10000)
	if err != nil {
		return Cache{}, err
	}
	ttl, err := getenvInt("TTL_SECONDS", 300)
	if err != nil {
		return Cache{}, err
	}

	return Cache{
		ListenAddr:  getenv("LISTEN_ADDR", ":8081"),
		RouterAddr:  routerAddr,
		LRUSize:     lruSize,
		TTLSeconds:  ttl,
		MetricsPort: getenv("METRICS_PORT", "9090"),
		AWSRegion:   getenv("AWS_REGION", "us-east-1"),
		S3Bucket:    bucket,
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) (string, error) {
	if v := os.Getenv(k); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("config: missing required environment variable %s", k)
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", k, v, err)
	}
	return n, nil
}
