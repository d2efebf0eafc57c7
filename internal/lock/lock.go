// Package lock provides the posting lock used by the core executor.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"accounting-engine/internal/config"
	"accounting-engine/internal/core"
)

// Redis serializes posting across processes with a bsm/redislock lease.
type Redis struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	logger *logrus.Logger
}

// NewRedis builds a Redis locker on an existing client. Acquire waits up to
// roughly two seconds for a held lock before giving up.
func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *Redis {
	return &Redis{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
		logger: logger,
	}
}

// Acquire obtains key for the configured TTL. A lock held elsewhere surfaces as
// core.ErrRetryable so callers can resubmit the whole operation.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := r.locker.Obtain(ctx, key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, core.Retryable(fmt.Errorf("posting lock %s is held by another process", key))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain posting lock %s: %w", key, err)
	}

	release := func() {
		// The scope may have been canceled; the lease still has to go.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lock.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(r.logger, "lock", "Release", "failed to release posting lock", key, err)
		}
	}
	return release, nil
}

// New picks the locker for cfg: Redis when REDIS_ADDR is set, otherwise core.NoopLocker.
// The returned close function releases the Redis client.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (core.Locker, func() error, error) {
	if !cfg.RedisEnabled() {
		logger.Info("REDIS_ADDR not set; posting relies on serializable transactions only")
		return core.NoopLocker{}, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.WithField("addr", cfg.RedisAddr).Info("connected to redis posting lock")
	return NewRedis(client, cfg.PostingLockTTL, logger), client.Close, nil
}
