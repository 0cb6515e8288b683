package breach

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore holds bearer tokens keyed by Credentials.CacheKey.
type TokenStore interface {
	// Get returns the token, whether an unexpired entry was found, and any error.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type tokenEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryTokenStore is a process-local store. Expiry is checked lazily on Get;
// there is no background sweep.
type MemoryTokenStore struct {
	mu    sync.Mutex
	items map[string]tokenEntry
	now   func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		items: make(map[string]tokenEntry),
		now:   time.Now,
	}
}

// WithClock replaces the store's time source.
func (s *MemoryTokenStore) WithClock(now func() time.Time) *MemoryTokenStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryTokenStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, found := s.items[key]
	if !found {
		return "", false, nil
	}
	if !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return "", false, nil
	}
	return item.token, true, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, key, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = tokenEntry{
		token:     token,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryTokenStore) Invalidate(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of entries, expired ones included.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

const redisKeyPrefix = "breach:token:"

// RedisTokenStore shares tokens between connector replicas. The cache key
// contains the client secret, so only its SHA-256 digest reaches Redis.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(addr, password string, db int) *RedisTokenStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisTokenStore{client: rdb}
}

func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (r *RedisTokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisTokenStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	return r.client.Set(ctx, redisKey(key), token, ttl).Err()
}

func (r *RedisTokenStore) Invalidate(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisKey(key)).Err()
}

func (r *RedisTokenStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisTokenStore) Close() error {
	return r.client.Close()
}
