// Package dedupe provides claim-once guards for at-least-once deliveries.
package dedupe

import (
	"context"
	"time"

	"barberline/pkg/utils"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// Memory is a process-local guard.
type Memory struct {
	c   *gocache.Cache
	ttl time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{c: gocache.New(ttl, 10*time.Minute), ttl: ttl}
}

// Claim reports true for the first caller of key within the TTL.
func (m *Memory) Claim(_ context.Context, key string) (bool, error) {
	// Add fails when the key already exists, which makes the claim atomic.
	if err := m.c.Add(key, struct{}{}, m.ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Redis shares claims across processes.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: "barberline:dedupe:"}
}

func (r *Redis) Claim(ctx context.Context, key string) (bool, error) {
	return utils.ClaimOnce(ctx, r.rdb, r.prefix+key, r.ttl)
}

func (r *Redis) Release(ctx context.Context, key string) error {
	return utils.ReleaseClaim(ctx, r.rdb, r.prefix+key)
}
