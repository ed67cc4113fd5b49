package runguard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the lease only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a lease held in Redis, shared by every process pointed at the same server.
// The TTL bounds how long a crashed holder blocks other runs.
type RedisGuard struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedisGuard creates a guard on addr using key as the lease name.
func NewRedisGuard(addr, key string, ttl time.Duration, logger logrus.FieldLogger) *RedisGuard {
	return &RedisGuard{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
		ttl:    ttl,
		log:    logger.WithField("component", "runguard"),
	}
}

// Ping checks the Redis connection.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// Acquire sets the lease if it is free, or returns ErrBusy.
func (g *RedisGuard) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", g.key, err)
	}
	if !ok {
		return nil, ErrBusy
	}

	release := func() {
		// Release must succeed even if the run's context was cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.client, []string{g.key}, token).Err(); err != nil {
			g.log.WithError(err).WithField("key", g.key).Warn("Failed to release lease, it will expire")
		}
	}
	return release, nil
}
