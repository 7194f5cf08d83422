// Package cache mirrors the latest dashboard snapshot so other processes
// (risklock status --cached, external tooling) can read it without polling
// the risk service.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// SnapshotKey is the key the latest overview snapshot is mirrored under.
const SnapshotKey = "risklock:snapshot:latest"

// Cache is a byte-value store with per-key expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Backend names the implementation, "redis" or "memory".
	Backend() string
	Close() error
}

// NewCache connects to Redis at url and falls back to an in-process cache
// when url is empty, malformed or unreachable.
func NewCache(url string, logger zerolog.Logger) Cache {
	if url == "" {
		return NewMemoryCache()
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid Redis URL, using in-memory cache")
		return NewMemoryCache()
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opt.Addr).Msg("Redis unreachable, using in-memory cache")
		client.Close()
		return NewMemoryCache()
	}
	return &RedisCache{client: client}
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client *redis.Client
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (r *RedisCache) Backend() string { return "redis" }

func (r *RedisCache) Close() error { return r.client.Close() }

// MemoryCache implements Cache in process memory.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	val []byte
	exp time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !it.exp.IsZero() && m.now().After(it.exp) {
		delete(m.items, key)
		return nil, false
	}
	return append([]byte(nil), it.val...), true
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.items[key] = memItem{val: append([]byte(nil), val...), exp: exp}
	return nil
}

func (m *MemoryCache) Backend() string { return "memory" }

func (m *MemoryCache) Close() error { return nil }

// Entry wraps a mirrored value with the time it was stored.
type Entry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Put stores v as JSON under key.
func Put[T any](ctx context.Context, c Cache, key string, v T, ttl time.Duration) error {
	data, err := json.Marshal(Entry[T]{Value: v, StoredAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// Fetch reads a value stored by Put. It returns ErrMiss when absent.
func Fetch[T any](ctx context.Context, c Cache, key string) (Entry[T], error) {
	data, ok := c.Get(ctx, key)
	if !ok {
		return Entry[T]{}, ErrMiss
	}
	var e Entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry[T]{}, err
	}
	return e, nil
}
