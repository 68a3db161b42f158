// Package credentials stores shop access tokens.
//
// Tokens are keyed by the normalized shop domain. The server receives a Store
// by injection; MemoryStore serves single-instance deployments and tests,
// RedisStore shares connections between instances.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no token is stored for a shop.
var ErrNotFound = errors.New("no token stored for shop")

// RedisKeyPrefix prefixes the per-shop token keys.
const RedisKeyPrefix = "shopify:token:"

// Store persists one access token per shop.
type Store interface {
	Save(ctx context.Context, shop, token string) error
	Get(ctx context.Context, shop string) (string, error)
	Delete(ctx context.Context, shop string) error
	Has(ctx context.Context, shop string) (bool, error)
}

// NormalizeShop returns the canonical key form of a shop domain.
func NormalizeShop(shop string) string {
	return strings.ToLower(strings.TrimSpace(shop))
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, shop, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[NormalizeShop(shop)] = token
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, shop string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[NormalizeShop(shop)]
	if !ok {
		return "", ErrNotFound
	}
	return token, nil
}

// Delete implements Store. Deleting an unknown shop is not an error.
func (m *MemoryStore) Delete(_ context.Context, shop string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, NormalizeShop(shop))
	return nil
}

// Has implements Store.
func (m *MemoryStore) Has(_ context.Context, shop string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tokens[NormalizeShop(shop)]
	return ok, nil
}

// RedisStore keeps tokens in Redis without expiry.
type RedisStore struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a Redis backed Store.
func NewRedisStore(redisClient *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		redis:  redisClient,
		logger: logger,
	}
}

func redisKey(shop string) string {
	return RedisKeyPrefix + NormalizeShop(shop)
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, shop, token string) error {
	if err := r.redis.Set(ctx, redisKey(shop), token, 0).Err(); err != nil {
		return fmt.Errorf("store token in redis: %w", err)
	}
	r.logger.Info().Str("shop", NormalizeShop(shop)).Msg("Shop connected")
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, shop string) (string, error) {
	token, err := r.redis.Get(ctx, redisKey(shop)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get token from redis: %w", err)
	}
	return token, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, shop string) error {
	if err := r.redis.Del(ctx, redisKey(shop)).Err(); err != nil {
		return fmt.Errorf("delete token from redis: %w", err)
	}
	r.logger.Info().Str("shop", NormalizeShop(shop)).Msg("Shop disconnected")
	return nil
}

// Has implements Store.
func (r *RedisStore) Has(ctx context.Context, shop string) (bool, error) {
	n, err := r.redis.Exists(ctx, redisKey(shop)).Result()
	if err != nil {
		return false, fmt.Errorf("check token in redis: %w", err)
	}
	return n > 0, nil
}
