// Package wire defines the binary RPC schema shared by the router and
// cache-node services and the HTTP/2 transport that carries it,
// generalizing the teacher's internal/cluster (JSON-over-HTTP/1.1
// PostJSON/GetJSON helpers) into the msgpack-over-h2c protocol required by
// spec §6.
package wire

// GetRequest asks a Cache or Router service for the value stored under
// (Bucket, Key).
type GetRequest struct {
	Key    []byte `msgpack:"key"`
	Bucket string `msgpack:"bucket"`
}

// GetResponse carries the result of a Get. Successful is false to mean
// "not found"; Value is empty in that case. A false Successful is never
// used to signal an RPC-level failure — those surface as transport
// errors instead.
type GetResponse struct {
	Value      []byte `msgpack:"value"`
	Successful bool   `msgpack:"successful"`
}

// PutRequest stores Value under (Bucket, Key).
type PutRequest struct {
	Key    []byte `msgpack:"key"`
	Bucket string `msgpack:"bucket"`
	Value  []byte `msgpack:"value"`
}

// PutResponse confirms a Put. Successful is always true on a non-error
// return; it is reserved for future partial-success semantics and SHOULD
// NOT be false in this implementation.
type PutResponse struct {
	Successful bool `msgpack:"successful"`
}

// DeleteRequest removes the value stored under (Bucket, Key), if any.
type DeleteRequest struct {
	Key    []byte `msgpack:"key"`
	Bucket string `msgpack:"bucket"`
}

// DeleteResponse confirms a Delete.
type DeleteResponse struct {
	Successful bool `msgpack:"successful"`
}

// JoinRequest asks the router's membership controller to admit Address
// into the ring and connection-pool registry.
type JoinRequest struct {
	Address string `msgpack:"address"`
}

// JoinResponse confirms a Join.
type JoinResponse struct {
	Successful bool `msgpack:"successful"`
}

// LeaveRequest asks the router's membership controller to evict Address.
type LeaveRequest struct {
	Address string `msgpack:"address"`
}

// LeaveResponse confirms a Leave.
type LeaveResponse struct {
	Successful bool `msgpack:"successful"`
}

// ErrorBody is the payload returned on non-2xx responses so a client can
// recover the error Kind without string-parsing, per §7's "status
// distinct enough that clients can implement backoff" requirement.
type ErrorBody struct {
	Kind    string `msgpack:"kind"`
	Op      string `msgpack:"op"`
	Message string `msgpack:"message"`
}

// Path constants for the two RPC services. Each is POSTed with a
// msgpack-encoded request body of the corresponding *Request type.
const (
	PathCacheGet    = "/rpc/cache/get"
	PathCachePut    = "/rpc/cache/put"
	PathCacheDelete = "/rpc/cache/delete"

	PathRouterGet    = "/rpc/router/get"
	PathRouterPut    = "/rpc/router/put"
	PathRouterDelete = "/rpc/router/delete"
	PathRouterJoin   = "/rpc/router/join"
	PathRouterLeave  = "/rpc/router/leave"
)

// ContentType is the media type every wire request and response body is
// marked with.
const ContentType = "application/vnd.cachecluster.msgpack"
