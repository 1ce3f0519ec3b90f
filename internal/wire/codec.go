package wire

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes v as msgpack. Every wire message type in this package
// round-trips through this single function so the codec never needs to
// special-case a request/response pair.
func Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal decodes msgpack bytes into v, which must be a pointer to one
// of this package's *Request/*Response/ErrorBody types.
func Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
