package kvstore

import (
	"context"
	"time"
)

// unavailableStore stands in when no Redis address is configured. Every
// operation fails with ErrUnavailable so downstream components take their
// degraded paths deliberately.
type unavailableStore struct{}

// Unavailable returns the shared unavailable store.
func Unavailable() Store { return unavailableStore{} }

func (unavailableStore) Members(context.Context, string) ([]string, error) {
	return nil, ErrUnavailable
}

func (unavailableStore) IsMember(context.Context, string, string) (bool, error) {
	return false, ErrUnavailable
}

func (unavailableStore) AddMember(context.Context, string, string) error    { return ErrUnavailable }
func (unavailableStore) RemoveMember(context.Context, string, string) error { return ErrUnavailable }

func (unavailableStore) Incr(context.Context, string) (int64, error) { return 0, ErrUnavailable }
func (unavailableStore) Set(context.Context, string, string) error   { return ErrUnavailable }

func (unavailableStore) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrUnavailable
}

func (unavailableStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return ErrUnavailable
}

func (unavailableStore) MGet(context.Context, []string) ([]*string, error) {
	return nil, ErrUnavailable
}

func (unavailableStore) MSetWithTTL(context.Context, []Entry, time.Duration) error {
	return ErrUnavailable
}

func (unavailableStore) HGet(context.Context, string, string) (string, bool, error) {
	return "", false, ErrUnavailable
}

func (unavailableStore) HGetAll(context.Context, string) (map[string]string, error) {
	return nil, ErrUnavailable
}

func (unavailableStore) HSet(context.Context, string, string, string) error { return ErrUnavailable }
func (unavailableStore) HDel(context.Context, string, ...string) error      { return ErrUnavailable }

func (unavailableStore) Available() bool               { return false }
func (unavailableStore) Health(context.Context) error  { return ErrUnavailable }
func (unavailableStore) Close() error                  { return nil }
