package upstream

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"gtranslate-go/internal/constants"
)

// NewHTTPClient builds the shared outbound client. Per-attempt deadlines are
// enforced with request contexts, so the client itself carries no timeout.
func NewHTTPClient(proxyURL string) *http.Client {
	tr := &http.Transport{
		Proxy: proxyFunc(proxyURL),
		DialContext: (&net.Dialer{
			Timeout:   constants.DefaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   constants.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: constants.DefaultResponseHeaderTimeout,
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
		MaxIdleConns:          constants.BaseMaxIdleConns,
		MaxIdleConnsPerHost:   constants.BaseMaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: 0}
}

func proxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			return http.ProxyURL(parsed)
		}
	}
	return http.ProxyFromEnvironment
}
