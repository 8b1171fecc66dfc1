package kvstore

import (
	"context"
	"time"

	"gtranslate-go/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a go-redis client.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewFromConfig returns a RedisStore when REDIS_ADDR is set, otherwise the
// unavailable store.
func NewFromConfig(cfg *config.Config) Store {
	if !cfg.StoreConfigured() {
		return Unavailable()
	}
	return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
}

func NewRedisStore(addr, password string, db int, prefix string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Members(ctx context.Context, set string) ([]string, error) {
	return r.client.SMembers(ctx, r.key(set)).Result()
}

func (r *RedisStore) IsMember(ctx context.Context, set, value string) (bool, error) {
	return r.client.SIsMember(ctx, r.key(set), value).Result()
}

func (r *RedisStore) AddMember(ctx context.Context, set, value string) error {
	return r.client.SAdd(ctx, r.key(set), value).Err()
}

func (r *RedisStore) RemoveMember(ctx context.Context, set, value string) error {
	return r.client.SRem(ctx, r.key(set), value).Err()
}

func (r *RedisStore) Incr(ctx context.Context, counter string) (int64, error) {
	return r.client.Incr(ctx, r.key(counter)).Result()
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisStore) MGet(ctx context.Context, keys []string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}
	raw, err := r.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*string, len(keys))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			val := s
			out[i] = &val
		}
	}
	return out, nil
}

func (r *RedisStore) MSetWithTTL(ctx context.Context, entries []Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, e := range entries {
		pipe.Set(ctx, r.key(e.Key), e.Value, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := r.client.HGet(ctx, r.key(key), field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, r.key(key)).Result()
}

func (r *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	return r.client.HSet(ctx, r.key(key), field, value).Err()
}

func (r *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return r.client.HDel(ctx, r.key(key), fields...).Err()
}

func (r *RedisStore) Available() bool { return true }

func (r *RedisStore) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
