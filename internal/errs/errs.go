// Package errs defines the error taxonomy shared by the router and the
// cache node, generalizing the teacher's single storage.ErrKeyNotFound
// sentinel into the full kind set the cluster's RPC boundary needs.
package errs

import "fmt"

// Kind classifies an error for retry and status-mapping purposes. Clients
// decide whether to retry by inspecting Kind, never by parsing strings.
type Kind string

const (
	// KindInvalidInput means request validation failed. Non-retriable.
	KindInvalidInput Kind = "invalid_input"
	// KindNodeNotFound means the ring is empty or inconsistent. Retriable.
	KindNodeNotFound Kind = "node_not_found"
	// KindRateLimitExceeded means admission rejected the request. Retriable with backoff.
	KindRateLimitExceeded Kind = "rate_limit_exceeded"
	// KindConnectionError means the pool could not deliver a usable client. Retriable.
	KindConnectionError Kind = "connection_error"
	// KindStoreError means a local or blob tier operation failed. Retriable.
	KindStoreError Kind = "store_error"
	// KindRouterError means a cache node's call to the router failed. Retriable with backoff.
	KindRouterError Kind = "router_error"
	// KindInternal is the catch-all. Retriable.
	KindInternal Kind = "internal"
)

// Retriable reports whether a client may retry an error of this kind.
// KindInvalidInput is the only non-retriable kind in the taxonomy.
func (k Kind) Retriable() bool {
	return k != KindInvalidInput
}

// Error is the concrete error type carried across the RPC boundary. It
// wraps an underlying cause (if any) with a Kind so callers can branch on
// retriability without string-matching, per §7 of the specification.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match any *Error target with the same Kind (for
// example errors.Is(err, errs.KeyNotFound)) by comparing Kind fields, mirroring flexlimit's sentinel-comparison pattern
// for its *StorageError type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KeyNotFound is a miss sentinel for callers that report a miss as an
// error. The pipeline and facade do not use it: Pipeline.Get reports a
// miss as found=false, which the facade sends as successful=false.
var KeyNotFound = New(Kind("key_not_found"), "pipeline", nil)

func IsKeyNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KeyNotFound.Kind
}
