package wire

import (
	"errors"
	"io"
	"net/http"

	"github.com/dreamware/cachecluster/internal/errs"
)

// Handler is the shape every RPC endpoint implements: decode the raw
// msgpack request body that ServeRPC read (ServeRPC does not decode it)
// and return a response value or an error.
type Handler func(r *http.Request, reqBody []byte) (resp any, err error)

// ServeRPC wraps fn as an http.HandlerFunc: it reads the request body,
// invokes fn, and on success encodes fn's return value as the msgpack
// response body with a 200 status; on error it maps the error's Kind to
// an HTTP status and writes an ErrorBody, so wire.Call's caller-side
// decoding always finds a well-formed body regardless of outcome.
func ServeRPC(fn Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, errs.New(errs.KindInvalidInput, "wire.ServeRPC", err))
			return
		}

		resp, err := fn(r, body)
		if err != nil {
			writeError(w, err)
			return
		}

		out, err := Marshal(resp)
		if err != nil {
			writeError(w, errs.New(errs.KindInternal, "wire.ServeRPC", err))
			return
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		e = errs.New(errs.KindInternal, "wire.ServeRPC", err)
	}

	body := ErrorBody{Kind: string(e.Kind), Op: e.Op, Message: e.Error()}
	out, encErr := Marshal(body)

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(statusForKind(e.Kind))
	if encErr == nil {
		_, _ = w.Write(out)
	}
}

// statusForKind maps an error Kind to an HTTP status distinct enough that
// a caller can implement backoff without parsing the body, per §7.
func statusForKind(k errs.Kind) int {
	switch k {
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindNodeNotFound:
		return http.StatusServiceUnavailable
	case errs.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case errs.KindConnectionError:
		return http.StatusBadGateway
	case errs.KindStoreError:
		return http.StatusInternalServerError
	case errs.KindRouterError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
