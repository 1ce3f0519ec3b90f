package router

import (
	"context"
	"net/http"
	"time"

	"github.com/dreamware/cachecluster/internal/pool"
	"github.com/dreamware/cachecluster/internal/wire"
)

// nodeConn is the PooledClient of spec §3: an RPC client bound to one
// node address. HTTP/2 already multiplexes many concurrent requests over
// a single connection, so "pooling" here bounds concurrent *logical*
// checkouts via pool.Pool's semaphore rather than managing a set of raw
// sockets — the client itself is safely reusable across goroutines.
type nodeConn struct {
	client *http.Client
	addr   string
}

// Close releases the connection's idle HTTP/2 transport state. It does
// not prevent the client from being used again if a reference escaped,
// but pool.Pool never hands out a dropped conn again.
func (c *nodeConn) Close() error {
	if t, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// dialTimeout bounds the TCP handshake when a pool creates a fresh
// nodeConn; the per-request deadline is governed separately by the
// caller's context.
const dialTimeout = 5 * time.Second

func dialNode(ctx context.Context, addr string) (pool.Conn, error) {
	return &nodeConn{client: wire.NewClient(dialTimeout), addr: addr}, nil
}
