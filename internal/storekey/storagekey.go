// Package storekey derives the physical StorageKey used inside every tier
// from the logical (bucket, key) pair clients address operations with. See
// spec §3: the function must be injective across distinct (bucket, key)
// pairs and stable across processes and restarts.
package storekey

import (
	"crypto/sha256"
	"encoding/hex"
)

// Separator sits between bucket and key before hashing so that a bucket
// "ab" with key "c" cannot collide with bucket "a" and key "bc": bytes are
// hashed as bucket || 0x00 || key, and 0x00 cannot appear inside a
// validated bucket name (see internal/ratelimit's charset rule).
const separator = 0x00

// Derive returns the hex-encoded SHA-256 fingerprint of bucket || 0x00 ||
// key. SHA-256 over this framing makes the result injective for any
// (bucket, key) pair whose bucket contains no 0x00 byte (true of every
// validated bucket), and stable across restarts, since it depends only on
// its inputs.
func Derive(bucket string, key []byte) string {
	h := sha256.New()
	h.Write([]byte(bucket))
	h.Write([]byte{separator})
	h.Write(key)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
