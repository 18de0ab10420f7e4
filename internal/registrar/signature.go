package registrar

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
)

// NewRequestID returns a single-use request id: the MD5 hex digest of a
// fresh time-ordered ULID.
func NewRequestID() string {
	sum := md5.Sum([]byte(ulid.Make().String()))
	return hex.EncodeToString(sum[:])
}

// Sign returns MD5(requestID + apiKey) as lowercase hex.
func Sign(requestID, apiKey string) string {
	sum := md5.Sum([]byte(requestID + apiKey))
	return hex.EncodeToString(sum[:])
}
