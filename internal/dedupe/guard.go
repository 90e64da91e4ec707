// Package dedupe suppresses repeated webhook deliveries of the same update.
package dedupe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/logging"
)

const (
	keyPrefix = "support:update:"
	// TTL covers Telegram's redelivery horizon for unacknowledged updates.
	TTL = 10 * time.Minute
)

// Guard decides whether an update is seen for the first time.
type Guard interface {
	FirstDelivery(ctx context.Context, updateID int64) bool
	Close() error
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisGuard marks update ids in Redis with SETNX.
type RedisGuard struct {
	client setNXer
	ttl    time.Duration
	logger *logrus.Entry
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, logger *logrus.Entry) (*RedisGuard, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newRedisGuard(rdb, logger), nil
}

func newRedisGuard(client setNXer, logger *logrus.Entry) *RedisGuard {
	if logger == nil {
		logger = logging.Logger()
	}
	return &RedisGuard{client: client, ttl: TTL, logger: logger}
}

// FirstDelivery reports false only when Redis confirms the update was
// already marked. Redis errors let the update through.
func (g *RedisGuard) FirstDelivery(ctx context.Context, updateID int64) bool {
	first, err := g.client.SetNX(ctx, keyPrefix+strconv.FormatInt(updateID, 10), 1, g.ttl).Result()
	if err != nil {
		g.logger.WithFields(logging.Fields{
			"event":     "dedupe_unavailable",
			"update_id": updateID,
		}).WithError(err).Warn("duplicate guard unavailable, processing update")
		return true
	}
	return first
}

// Close releases the Redis connection pool.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// Noop treats every update as new.
type Noop struct{}

func (Noop) FirstDelivery(context.Context, int64) bool { return true }

func (Noop) Close() error { return nil }
