package credential

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gtranslate-go/internal/constants"
	"gtranslate-go/internal/kvstore"
	"gtranslate-go/internal/logging"
	"gtranslate-go/internal/monitoring"
	log "github.com/sirupsen/logrus"
)

// Pool owns the cached credential sets and their round-robin counters.
// Loads are coalesced so that concurrent demand triggers at most one store
// read per set.
type Pool struct {
	store kvstore.Store
	ttl   time.Duration

	mu       sync.Mutex
	entries  map[Set]*cacheEntry
	counters map[Set]*uint64
}

type cacheEntry struct {
	values   []string
	loadedAt time.Time
	inflight *loadFlight
}

type loadFlight struct {
	done   chan struct{}
	values []string
	err    error
}

func NewPool(store kvstore.Store, ttl time.Duration) *Pool {
	if ttl <= 0 {
		ttl = constants.DefaultCredentialCacheTTL
	}
	return &Pool{
		store:    store,
		ttl:      ttl,
		entries:  make(map[Set]*cacheEntry),
		counters: make(map[Set]*uint64),
	}
}

// Next returns the next credential of the set in round-robin order.
func (p *Pool) Next(ctx context.Context, set Set) (string, error) {
	values, err := p.load(ctx, set)
	if err != nil {
		return "", err
	}
	n := atomic.AddUint64(p.counter(set), 1)
	cred := values[n%uint64(len(values))]
	if n%constants.CounterPersistInterval == 0 {
		p.persistCounter(set, n)
	}
	return cred, nil
}

// Evict removes the credential from the local sequence and from the store.
// The relative order of remaining values is preserved.
func (p *Pool) Evict(ctx context.Context, set Set, cred string) {
	p.mu.Lock()
	if e, ok := p.entries[set]; ok {
		kept := e.values[:0:0]
		for _, v := range e.values {
			if v != cred {
				kept = append(kept, v)
			}
		}
		e.values = kept
	}
	p.mu.Unlock()

	monitoring.CredentialEvictions.WithLabelValues(string(set)).Inc()
	log.WithFields(log.Fields{"set": set, "key": logging.RedactKey(cred)}).Warn("evicting credential")
	if err := p.store.RemoveMember(ctx, string(set), cred); err != nil {
		log.WithError(err).WithField("set", set).Warn("credential eviction not persisted")
	}
}

// Invalidate drops the cached entry for the set; the next selection reloads.
func (p *Pool) Invalidate(set Set) {
	p.mu.Lock()
	delete(p.entries, set)
	p.mu.Unlock()
}

// load returns the cached values for a set, refreshing them from the store
// when stale. At most one load per set is in flight at any instant; late
// callers join it.
func (p *Pool) load(ctx context.Context, set Set) ([]string, error) {
	for {
		p.mu.Lock()
		e := p.entries[set]
		if e == nil {
			e = &cacheEntry{}
			p.entries[set] = e
		}
		if len(e.values) > 0 && time.Since(e.loadedAt) < p.ttl {
			values := append([]string(nil), e.values...)
			p.mu.Unlock()
			return values, nil
		}
		if f := e.inflight; f != nil {
			p.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-f.done:
			}
			if f.err == nil {
				return append([]string(nil), f.values...), nil
			}
			// The load we joined failed; initiate a fresh one.
			continue
		}

		f := &loadFlight{done: make(chan struct{})}
		e.inflight = f
		p.mu.Unlock()

		values, err := p.store.Members(ctx, string(set))
		if err == nil && len(values) == 0 {
			err = &NoCredentialsError{Set: set}
		}
		f.values, f.err = values, err

		p.mu.Lock()
		if err == nil {
			e.values = values
			e.loadedAt = time.Now()
		}
		e.inflight = nil
		p.mu.Unlock()
		close(f.done)

		if err != nil {
			monitoring.CredentialLoadFailures.WithLabelValues(string(set)).Inc()
			return nil, err
		}
		log.WithFields(log.Fields{"set": set, "count": len(values)}).Debug("credential set loaded")
		return append([]string(nil), values...), nil
	}
}

func (p *Pool) counter(set Set) *uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.counters[set]
	if c == nil {
		c = new(uint64)
		p.counters[set] = c
	}
	return c
}

// persistCounter writes the selection counter to the store, fire-and-forget.
// Persistence failures never affect selection.
func (p *Pool) persistCounter(set Set, n uint64) {
	key := set.CounterKey()
	if key == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.store.Set(ctx, key, strconv.FormatUint(n, 10)); err != nil {
			log.WithError(err).WithField("set", set).Debug("counter persistence skipped")
		}
	}()
}
