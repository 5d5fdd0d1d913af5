package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/model"
	"github.com/redis/go-redis/v9"
)

// PreferenceCache holds recently read or written rate preferences by user id.
// A miss is (nil, nil); errors are reported so callers can log them.
type PreferenceCache interface {
	Get(ctx context.Context, userID string) (*model.UserRatePreference, error)
	Set(ctx context.Context, pref model.UserRatePreference) error
	Delete(ctx context.Context, userID string) error
	Close() error
}

// MemoryPreferenceCache keeps preferences in process memory.
type MemoryPreferenceCache struct {
	items *Cache[model.UserRatePreference]
}

func NewMemoryPreferenceCache(ttl time.Duration) *MemoryPreferenceCache {
	return &MemoryPreferenceCache{items: NewCache[model.UserRatePreference](ttl)}
}

func (m *MemoryPreferenceCache) Get(_ context.Context, userID string) (*model.UserRatePreference, error) {
	pref, ok := m.items.Get(userID)
	if !ok {
		return nil, nil
	}
	return &pref, nil
}

func (m *MemoryPreferenceCache) Set(_ context.Context, pref model.UserRatePreference) error {
	m.items.Set(pref.UserID, pref)
	return nil
}

func (m *MemoryPreferenceCache) Delete(_ context.Context, userID string) error {
	m.items.Delete(userID)
	return nil
}

func (m *MemoryPreferenceCache) Stats() Stats {
	return m.items.Stats()
}

func (m *MemoryPreferenceCache) Close() error {
	m.items.Stop()
	return nil
}

// RedisKeyPrefix namespaces preference keys in a shared Redis.
const RedisKeyPrefix = "pert:pref:"

// RedisPreferenceCache stores preferences as JSON values in Redis, shared
// across replicas.
type RedisPreferenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPreferenceCache(addr string, ttl time.Duration) *RedisPreferenceCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisPreferenceCache{client: rdb, ttl: ttl}
}

// Ping checks that the server answers.
func (r *RedisPreferenceCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisPreferenceCache) Get(ctx context.Context, userID string) (*model.UserRatePreference, error) {
	val, err := r.client.Get(ctx, RedisKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var pref model.UserRatePreference
	if err := json.Unmarshal(val, &pref); err != nil {
		return nil, fmt.Errorf("redis decode: %w", err)
	}
	return &pref, nil
}

func (r *RedisPreferenceCache) Set(ctx context.Context, pref model.UserRatePreference) error {
	val, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	return r.client.Set(ctx, RedisKeyPrefix+pref.UserID, val, r.ttl).Err()
}

func (r *RedisPreferenceCache) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, RedisKeyPrefix+userID).Err()
}

func (r *RedisPreferenceCache) Close() error {
	return r.client.Close()
}

// NopPreferenceCache disables caching.
type NopPreferenceCache struct{}

func (NopPreferenceCache) Get(context.Context, string) (*model.UserRatePreference, error) {
	return nil, nil
}
func (NopPreferenceCache) Set(context.Context, model.UserRatePreference) error { return nil }
func (NopPreferenceCache) Delete(context.Context, string) error             { return nil }
func (NopPreferenceCache) Close() error                                     { return nil }

// NewPreferenceCache picks Redis when an address is set, memory when ttl > 0,
// and no cache otherwise.
func NewPreferenceCache(redisAddr string, ttl time.Duration) PreferenceCache {
	switch {
	case redisAddr != "":
		return NewRedisPreferenceCache(redisAddr, ttl)
	case ttl > 0:
		return NewMemoryPreferenceCache(ttl)
	default:
		return NopPreferenceCache{}
	}
}
