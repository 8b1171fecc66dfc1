package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Fingerprint canonically identifies a client request for coalescing.
// Idempotent verbs key on the full URL; POST keys on the path plus a body
// hash. If the body could not be read, the fingerprint is salted so the
// request never joins another (deduplication is deliberately defeated in
// that edge case).
func Fingerprint(method string, u *url.URL, body []byte, bodyErr error) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return method + ":" + u.String()
	}
	if bodyErr != nil {
		return method + ":" + u.Path + ":" + uuid.NewString()
	}
	sum := sha1.Sum(body)
	return method + ":" + u.Path + ":" + hex.EncodeToString(sum[:])
}
