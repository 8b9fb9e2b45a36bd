package wellknown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// Entry is a complete cached response.
type Entry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// Backend stores entries. A nil entry with a nil error is a miss.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
}

// MemoryBackend is an in-process cache bounded by entry count and TTL.
type MemoryBackend struct {
	cache *ttlcache.Cache[string, *Entry]
}

func NewMemoryBackend(ttl time.Duration, size uint64) *MemoryBackend {
	opts := []ttlcache.Option[string, *Entry]{
		ttlcache.WithTTL[string, *Entry](ttl),
		ttlcache.WithDisableTouchOnHit[string, *Entry](),
	}
	if size > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *Entry](size))
	}
	return &MemoryBackend{cache: ttlcache.New[string, *Entry](opts...)}
}

// Start runs the expired-entry cleanup loop until Stop is called.
func (m *MemoryBackend) Start() { go m.cache.Start() }

func (m *MemoryBackend) Stop() { m.cache.Stop() }

func (m *MemoryBackend) Len() int { return m.cache.Len() }

func (m *MemoryBackend) Get(_ context.Context, key string) (*Entry, error) {
	item := m.cache.Get(key)
	if item == nil {
		return nil, nil
	}
	return item.Value(), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, entry *Entry) error {
	m.cache.Set(key, entry, ttlcache.DefaultTTL)
	return nil
}

// RedisBackend shares entries between proxy instances. Entries are stored as
// JSON with the TTL as key expiry.
type RedisBackend struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisBackend(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cached entry: %w", err)
	}
	return &entry, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached entry: %w", err)
	}
	if err := r.client.Set(ctx, r.keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
