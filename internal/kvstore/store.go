// Package kvstore exposes the typed operations the gateway needs from the
// shared Redis store. Every operation except Incr is idempotent and
// retry-safe at the client layer.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by every operation when the store is not
// configured. Callers must degrade explicitly: caches read empty, writes are
// dropped, auth validation denies.
var ErrUnavailable = errors.New("kv store unavailable")

// Entry is one key/value pair for pipelined writes.
type Entry struct {
	Key   string
	Value string
}

// Store is the KV surface shared by the credential pool, the translation
// cache, and the auth sweep.
type Store interface {
	Members(ctx context.Context, set string) ([]string, error)
	IsMember(ctx context.Context, set, value string) (bool, error)
	AddMember(ctx context.Context, set, value string) error
	RemoveMember(ctx context.Context, set, value string) error

	Incr(ctx context.Context, counter string) (int64, error)
	Set(ctx context.Context, key, value string) error

	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// MGet returns one element per requested key, nil for misses, in input
	// order.
	MGet(ctx context.Context, keys []string) ([]*string, error)
	// MSetWithTTL writes all entries with a shared TTL in one pipeline.
	MSetWithTTL(ctx context.Context, entries []Entry, ttl time.Duration) error

	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key string, fields ...string) error

	Available() bool
	Health(ctx context.Context) error
	Close() error
}
