package upstream

import (
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Response is an upstream reply with its body buffered exactly once, so
// validators and callers can both consume it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ValidateJSON is the default response validator: a 2xx response whose JSON
// body parses to a non-empty object. Non-JSON content passes on any 2xx
// with a non-empty body.
func ValidateJSON(r *Response) bool {
	if r == nil {
		return false
	}
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "json") {
		parsed := gjson.ParseBytes(r.Body)
		return r.OK() && parsed.IsObject() && len(parsed.Map()) > 0
	}
	return r.OK() && len(r.Body) > 0
}
