package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/shopify-connector/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for query budget tracking.
var (
	budgetAvailable = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "shopify_query_budget_available",
		Help: "Query cost points available as last reported by Shopify",
	})

	// AdmissionWaits counts requests held back because the budget was below MinimumQueryCost.
	AdmissionWaits = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "shopify_admission_waits_total",
		Help: "Total number of requests delayed by the local query budget",
	})

	// AdmissionWaitSeconds observes the length of each admission delay.
	AdmissionWaitSeconds = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "shopify_admission_wait_seconds",
		Help:    "Admission delay duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 20},
	})
)

// RedisKeyPrefix prefixes the per-shop budget keys.
const RedisKeyPrefix = "shopify:rate_limit:"

// StateTTL bounds how long an idle budget is kept. After this long without
// requests the bucket is full again, so a missing key and an expired one agree.
const StateTTL = 10 * time.Minute

// StateStore keeps one State per credential between calls.
type StateStore interface {
	// Load returns the stored state for shop, or a full budget when none is stored.
	Load(ctx context.Context, shop string) (State, error)

	// Save stores the state for shop.
	Save(ctx context.Context, shop string, state State) error
}

func stateKey(shop string) string {
	return strings.ToLower(strings.TrimSpace(shop))
}

// MemoryStateStore is a process-local StateStore.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]State
	now    func() time.Time
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]State),
		now:    time.Now,
	}
}

// Load implements StateStore.
func (m *MemoryStateStore) Load(_ context.Context, shop string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[stateKey(shop)]
	if !ok {
		return NewState(m.now()), nil
	}
	return state, nil
}

// Save implements StateStore.
func (m *MemoryStateStore) Save(_ context.Context, shop string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[stateKey(shop)] = state
	return nil
}

// RedisStateStore shares budget state across connector instances via Redis.
type RedisStateStore struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewRedisStateStore creates a Redis backed StateStore.
func NewRedisStateStore(redisClient *redis.Client, logger zerolog.Logger) *RedisStateStore {
	return &RedisStateStore{
		redis:  redisClient,
		logger: logger,
	}
}

// Load implements StateStore.
func (r *RedisStateStore) Load(ctx context.Context, shop string) (State, error) {
	data, err := r.redis.Get(ctx, RedisKeyPrefix+stateKey(shop)).Bytes()
	if err == redis.Nil {
		r.logger.Debug().Str("shop", stateKey(shop)).Msg("No budget state in Redis, starting with full budget")
		return NewState(time.Now()), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get budget state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse budget state: %w", err)
	}
	return state, nil
}

// Save implements StateStore.
func (r *RedisStateStore) Save(ctx context.Context, shop string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal budget state: %w", err)
	}

	if err := r.redis.Set(ctx, RedisKeyPrefix+stateKey(shop), data, StateTTL).Err(); err != nil {
		return fmt.Errorf("store budget state in redis: %w", err)
	}

	r.logger.Debug().
		Str("shop", stateKey(shop)).
		Float64("available", state.Available).
		Msg("Budget state saved")
	return nil
}
