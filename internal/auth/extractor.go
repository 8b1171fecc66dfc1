// Package auth derives the client credential from the request surface.
package auth

import (
	"net/http"
	"strings"
)

// ExtractKey returns the client key, trying in order: the /translate/<key>
// path segment on POST, the x-goog-api-key header, then the Authorization
// header with an optional Bearer prefix. Empty strings are treated as
// absent.
func ExtractKey(method, path string, header http.Header) string {
	if method == http.MethodPost {
		if key := pathKey(path); key != "" {
			return key
		}
	}
	if key := strings.TrimSpace(header.Get("x-goog-api-key")); key != "" {
		return key
	}
	authz := strings.TrimSpace(header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		authz = strings.TrimSpace(authz[7:])
	}
	return authz
}

func pathKey(path string) string {
	const prefix = "/translate/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	key := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(key, '/'); i >= 0 {
		key = key[:i]
	}
	return strings.TrimSpace(key)
}
