package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tg_support_bot/internal/config"
	"tg_support_bot/internal/dedupe"
	"tg_support_bot/internal/logging"
)

const redisConnectTimeout = 5 * time.Second

// OpenGuard returns the Redis duplicate guard when REDIS_URL is set. An
// unreachable Redis degrades to the no-op guard instead of failing startup.
func OpenGuard(ctx context.Context, cfg config.Config, logger *logrus.Entry) dedupe.Guard {
	if logger == nil {
		logger = logging.Logger()
	}
	if cfg.RedisURL == "" {
		return dedupe.Noop{}
	}

	connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()

	guard, err := dedupe.NewRedis(connectCtx, cfg.RedisURL, logger.WithField("component", "dedupe"))
	if err != nil {
		logger.WithField("event", "dedupe_disabled").WithError(err).Warn("redis unavailable, duplicate deliveries will not be suppressed")
		return dedupe.Noop{}
	}

	logger.WithField("event", "redis_connect").Info("duplicate guard connected to redis")
	return guard
}
