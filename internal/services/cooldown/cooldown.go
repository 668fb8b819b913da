// Package cooldown grants a key at most once per interval. The Redis backend
// shares the window across replicas; the memory backend is process local.
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cinemastream/internal/domain/ports"
)

const redisKeyPrefix = "cinemastream:cooldown:"

type Redis struct {
	client *redis.Client
}

var (
	_ ports.Cooldown = (*Redis)(nil)
	_ ports.Cooldown = (*Memory)(nil)
)

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, redisKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

type Memory struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{until: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.until[key]; ok && now.Before(until) {
		return false, nil
	}
	m.until[key] = now.Add(ttl)
	return true, nil
}
