package wire

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewClient returns an *http.Client speaking cleartext HTTP/2 (h2c), so
// the cluster gets HTTP/2 framing and multiplexing without needing TLS
// certificates between nodes, per §6's "Binary RPC over HTTP/2"
// requirement. dialTimeout bounds the TCP handshake; callers control
// per-request deadlines via context.
func NewClient(dialTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout}
	transport := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
	return &http.Client{Transport: transport}
}

// WrapH2C upgrades handler to accept h2c connections in addition to
// HTTP/1.1, so cmd/router and cmd/cachenode can serve both without a
// separate listener.
func WrapH2C(handler http.Handler) http.Handler {
	h2s := &http2.Server{}
	return h2c.NewHandler(handler, h2s)
}
