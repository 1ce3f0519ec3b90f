package ratelimit

import (
	"net/url"
	"regexp"

	"github.com/dreamware/cachecluster/internal/errs"
)

// Limits bound the size of request fields per spec §4.9. No corpus
// library exposes a request-validation framework, so these checks stay on
// the standard library's regexp and len, the same way flexlimit itself
// validates its own Config by hand rather than via a third-party
// validator.
const (
	MaxBucketLen = 64
	MaxKeyLen    = 1024
	MaxValueLen  = 8 << 20 // 8 MiB
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateBucket checks a bucket name against the charset and length
// rules shared by every tier and by storekey.Derive's separator-byte
// assumption (0x00 cannot appear in a validated bucket).
func ValidateBucket(bucket string) error {
	if bucket == "" {
		return errs.New(errs.KindInvalidInput, "validate_bucket", errEmptyBucket)
	}
	if len(bucket) > MaxBucketLen {
		return errs.New(errs.KindInvalidInput, "validate_bucket", errBucketTooLong)
	}
	if !identifierPattern.MatchString(bucket) {
		return errs.New(errs.KindInvalidInput, "validate_bucket", errBucketCharset)
	}
	return nil
}

// ValidateKey checks a key for non-emptiness and a bounded byte length.
// Unlike bucket, key bytes are opaque: no charset restriction applies.
func ValidateKey(key []byte) error {
	if len(key) == 0 {
		return errs.New(errs.KindInvalidInput, "validate_key", errEmptyKey)
	}
	if len(key) > MaxKeyLen {
		return errs.New(errs.KindInvalidInput, "validate_key", errKeyTooLong)
	}
	return nil
}

// ValidateValue checks a value against the maximum payload size.
func ValidateValue(value []byte) error {
	if len(value) > MaxValueLen {
		return errs.New(errs.KindInvalidInput, "validate_value", errValueTooLong)
	}
	return nil
}

// ValidateAddress checks that addr is parseable as scheme://host:port with
// scheme in {http, https}, per §4.9. Reachability is never probed here;
// the membership controller decides that separately.
func ValidateAddress(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return errs.New(errs.KindInvalidInput, "validate_address", errAddressUnparseable)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errs.New(errs.KindInvalidInput, "validate_address", errAddressScheme)
	}
	if u.Host == "" {
		return errs.New(errs.KindInvalidInput, "validate_address", errAddressNoHost)
	}
	return nil
}

var (
	errAddressUnparseable = plainError("address is not a valid URL")
	errAddressScheme      = plainError("address scheme must be http or https")
	errAddressNoHost      = plainError("address must include a host")
	errEmptyBucket        = plainError("bucket must not be empty")
	errBucketTooLong = plainError("bucket exceeds maximum length")
	errBucketCharset = plainError("bucket contains characters outside [A-Za-z0-9_.-]")
	errEmptyKey      = plainError("key must not be empty")
	errKeyTooLong    = plainError("key exceeds maximum length")
	errValueTooLong  = plainError("value exceeds maximum size")
)

type plainError string

func (e plainError) Error() string { return string(e) }
