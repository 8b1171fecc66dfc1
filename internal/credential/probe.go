package credential

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// ProbeStatus classifies an upstream key check.
type ProbeStatus string

const (
	ProbeActive  ProbeStatus = "active"
	ProbeInvalid ProbeStatus = "invalid"
)

const (
	probeMaxRetries = 3
	probeRetryDelay = 2 * time.Second
)

var probePayload = []byte(`{"contents":[{"parts":[{"text":"hello"}]}]}`)

// ProbeKey checks whether an upstream API key is still usable by issuing a
// minimal generateContent call. 200 and 429 count as active (429 means the
// key works but is throttled); 403 and 503 mean the key is dead. Anything
// else is retried and eventually reported invalid.
func ProbeKey(ctx context.Context, client *http.Client, endpoint, key string) ProbeStatus {
	url := fmt.Sprintf("%s?key=%s", endpoint, key)
	for i := 0; i < probeMaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(probePayload))
		if err != nil {
			return ProbeInvalid
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err == nil {
			status := resp.StatusCode
			_ = resp.Body.Close()
			switch {
			case status == http.StatusOK, status == http.StatusTooManyRequests:
				return ProbeActive
			case status == http.StatusForbidden, status == http.StatusServiceUnavailable:
				return ProbeInvalid
			}
		}
		select {
		case <-ctx.Done():
			return ProbeInvalid
		case <-time.After(probeRetryDelay):
		}
	}
	return ProbeInvalid
}
