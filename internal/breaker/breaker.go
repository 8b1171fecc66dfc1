// Package breaker guards upstream hosts with a three-state circuit.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"gtranslate-go/internal/constants"
	"gtranslate-go/internal/monitoring"
	log "github.com/sirupsen/logrus"
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrOpen reports a call rejected without execution.
type ErrOpen struct {
	Host       string
	RetryAfter time.Duration
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("circuit open for %s, retry in %s", e.Host, e.RetryAfter.Round(time.Millisecond))
}

// Settings tune a breaker; zero values take the defaults.
type Settings struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = constants.DefaultCircuitFailureThreshold
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = constants.DefaultCircuitSuccessThreshold
	}
	if s.Timeout <= 0 {
		s.Timeout = constants.DefaultCircuitTimeout
	}
	return s
}

// Breaker is the per-host state machine. Concurrent executions are allowed
// in every state, including HalfOpen; all outcomes contribute to the counts.
type Breaker struct {
	host     string
	settings Settings

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	nextAttempt  time.Time
}

func newBreaker(host string, settings Settings) *Breaker {
	return &Breaker{host: host, settings: settings.withDefaults()}
}

// Execute runs fn under the breaker. In Open state, before the cooldown
// elapses, it fails fast with *ErrOpen.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == Open {
		if remaining := time.Until(b.nextAttempt); remaining > 0 {
			b.mu.Unlock()
			return &ErrOpen{Host: b.host, RetryAfter: remaining}
		}
		b.transition(HalfOpen)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	b.failureCount = 0
	if b.state == HalfOpen {
		b.successCount++
		if b.successCount >= b.settings.SuccessThreshold {
			b.successCount = 0
			b.transition(Closed)
		}
	}
}

func (b *Breaker) onFailure() {
	b.successCount = 0
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failureCount++
		if b.failureCount >= b.settings.FailureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.nextAttempt = time.Now().Add(b.settings.Timeout)
	b.transition(Open)
}

func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	log.WithFields(log.Fields{"host": b.host, "from": b.state.String(), "to": next.String()}).Info("circuit state change")
	b.state = next
	monitoring.CircuitState.WithLabelValues(b.host).Set(float64(next))
}

// CurrentState is for introspection and tests.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry hands out one breaker per upstream host, created on demand.
type Registry struct {
	settings Settings
	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(settings Settings) *Registry {
	return &Registry{settings: settings.withDefaults(), breakers: make(map[string]*Breaker)}
}

func (r *Registry) Get(host string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.breakers[host]
	if b == nil {
		b = newBreaker(host, r.settings)
		r.breakers[host] = b
	}
	return b
}
