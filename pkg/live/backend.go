package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Backend stores session state by key. A TTL of zero keeps entries until
// they are deleted. Implementations are called with the store lock held.
type Backend interface {
	Load(ctx context.Context, key Key) (*State, bool, error)
	Save(ctx context.Context, key Key, st *State) error
	Delete(ctx context.Context, key Key) error
}

// MemoryBackend keeps state pointers in an in-process cache.
type MemoryBackend struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
	}
	return &MemoryBackend{
		cache: cache.New(expiration, cleanup),
		ttl:   expiration,
	}
}

func (b *MemoryBackend) Load(_ context.Context, key Key) (*State, bool, error) {
	if x, found := b.cache.Get(key.String()); found {
		return x.(*State), true, nil
	}
	return nil, false, nil
}

func (b *MemoryBackend) Save(_ context.Context, key Key, st *State) error {
	b.cache.Set(key.String(), st, b.ttl)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key Key) error {
	b.cache.Delete(key.String())
	return nil
}

// Count returns the number of live sessions held.
func (b *MemoryBackend) Count() int {
	return b.cache.ItemCount()
}

const redisKeyPrefix = "live:"

// RedisBackend stores JSON-encoded state so several server instances can
// share sessions.
type RedisBackend struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisBackend(rdb *redis.Client, ttl time.Duration) *RedisBackend {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisBackend{rdb: rdb, ttl: ttl}
}

func (b *RedisBackend) Load(ctx context.Context, key Key) (*State, bool, error) {
	data, err := b.rdb.Get(ctx, redisKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load live session: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("decode live session: %w", err)
	}
	st.ensure()
	return &st, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, key Key, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode live session: %w", err)
	}
	if err := b.rdb.Set(ctx, redisKeyPrefix+key.String(), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("save live session: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key Key) error {
	if err := b.rdb.Del(ctx, redisKeyPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("delete live session: %w", err)
	}
	return nil
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
)
