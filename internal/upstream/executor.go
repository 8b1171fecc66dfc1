// Package upstream drives outbound calls through credential rotation,
// per-status retry policies, and per-host circuit breaking.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"gtranslate-go/internal/breaker"
	"gtranslate-go/internal/constants"
	"gtranslate-go/internal/monitoring"
	log "github.com/sirupsen/logrus"
)

// Options describe one retryable upstream call. BuildRequest is invoked per
// attempt so each attempt carries a fresh body.
type Options struct {
	GetCredential   func(ctx context.Context) (string, error)
	EvictCredential func(ctx context.Context, cred string)
	BuildRequest    func(ctx context.Context, cred string) (*http.Request, error)
	// Validate decides whether a response terminates the loop. Nil means
	// ValidateJSON.
	Validate    func(*Response) bool
	MaxAttempts int
	RequestID   string
}

// Executor owns the outbound HTTP client and the breaker registry.
type Executor struct {
	client   *http.Client
	breakers *breaker.Registry
	timeout  time.Duration

	// sleep is swappable so tests can observe delays instead of waiting
	// them out.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(client *http.Client, breakers *breaker.Registry, attemptTimeout time.Duration) *Executor {
	if attemptTimeout <= 0 {
		attemptTimeout = constants.DefaultRequestTimeout
	}
	return &Executor{
		client:   client,
		breakers: breakers,
		timeout:  attemptTimeout,
		sleep:    sleepCtx,
	}
}

// Execute runs the attempt loop. It returns the first validated response;
// failing that, the last response received (so callers see upstream status
// codes); failing that, nil along with the error that ended the loop (a
// credential lookup failure, a request build failure, or the last transport
// error).
func (e *Executor) Execute(ctx context.Context, opts Options) (*Response, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaxRetries
	}
	validate := opts.Validate
	if validate == nil {
		validate = ValidateJSON
	}

	tried := make(map[string]struct{})
	skips := 0
	var last *Response
	var lastErr error

	for attempt := 0; attempt < maxAttempts; {
		cred, err := opts.GetCredential(ctx)
		if err != nil {
			if last != nil {
				return last, nil
			}
			return nil, err
		}
		if _, dup := tried[cred]; dup {
			// The pool has cycled back to a credential this call already
			// used. Skipping costs no attempt, but the skip loop itself is
			// bounded so a pool smaller than maxAttempts cannot spin.
			skips++
			if skips >= maxAttempts {
				break
			}
			continue
		}
		tried[cred] = struct{}{}

		req, err := opts.BuildRequest(ctx, cred)
		if err != nil {
			return last, fmt.Errorf("build upstream request: %w", err)
		}

		resp, err := e.attempt(ctx, req)
		if err != nil {
			lastErr = err
			e.observe(opts.RequestID, attempt, 0, err)
			if attempt == maxAttempts-1 {
				if last != nil {
					return last, nil
				}
				return nil, err
			}
			if serr := e.sleep(ctx, serverErrorDelay(attempt)); serr != nil {
				return last, serr
			}
			attempt++
			continue
		}

		last = resp
		e.observe(opts.RequestID, attempt, resp.StatusCode, nil)

		switch {
		case resp.StatusCode == http.StatusForbidden:
			if opts.EvictCredential != nil {
				opts.EvictCredential(ctx, cred)
			}
			attempt++
			continue
		case resp.StatusCode == http.StatusTooManyRequests:
			if serr := e.sleep(ctx, rateLimitDelay(attempt)); serr != nil {
				return last, serr
			}
			attempt++
			continue
		case resp.StatusCode >= 500:
			if serr := e.sleep(ctx, serverErrorDelay(attempt)); serr != nil {
				return last, serr
			}
			attempt++
			continue
		}

		if validate(resp) {
			return resp, nil
		}
		attempt++
	}

	if last == nil && lastErr != nil {
		return nil, lastErr
	}
	return last, nil
}

// attempt performs one breaker-gated call and buffers the body.
func (e *Executor) attempt(ctx context.Context, req *http.Request) (*Response, error) {
	br := e.breakers.Get(req.URL.Host)
	var resp *Response
	err := br.Execute(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		start := time.Now()
		httpResp, err := e.client.Do(req.WithContext(attemptCtx))
		monitoring.UpstreamAttemptDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("read upstream body: %w", err)
		}
		resp = &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *Executor) observe(requestID string, attempt, status int, err error) {
	outcome := statusOutcome(status, err)
	monitoring.UpstreamAttemptsTotal.WithLabelValues(outcome).Inc()
	entry := log.WithFields(log.Fields{
		"request_id": requestID,
		"attempt":    attempt,
		"status":     status,
	})
	if err != nil {
		if _, open := err.(*breaker.ErrOpen); open {
			entry.WithError(err).Debug("upstream attempt rejected by circuit")
			return
		}
		entry.WithError(err).Warn("upstream attempt failed")
		return
	}
	entry.Debug("upstream attempt")
}

func statusOutcome(status int, err error) string {
	if err != nil {
		if _, open := err.(*breaker.ErrOpen); open {
			return "circuit_open"
		}
		return "network_error"
	}
	switch {
	case status >= 200 && status < 300:
		return "ok"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	default:
		return "other"
	}
}

// rateLimitDelay implements the 429 policy: linear growth, capped.
func rateLimitDelay(attempt int) time.Duration {
	d := time.Duration(attempt+1) * constants.RateLimitDelayStep
	if d > constants.RateLimitDelayMax {
		d = constants.RateLimitDelayMax
	}
	return d
}

// serverErrorDelay implements the 5xx/network policy: exponential, capped.
func serverErrorDelay(attempt int) time.Duration {
	if attempt > 10 {
		attempt = 10
	}
	d := constants.ServerErrorDelayBase * time.Duration(1<<uint(attempt))
	if d > constants.ServerErrorDelayMax {
		d = constants.ServerErrorDelayMax
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
