package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker 基于 SET NX PX 的锁
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, prefix: strings.TrimSpace(prefix), ttl: ttl}
}

func (l *RedisLocker) key(key string) string {
	if l.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

// Acquire 获取锁
func (l *RedisLocker) Acquire(ctx context.Context, key string) bool {
	if l == nil || l.client == nil || strings.TrimSpace(key) == "" {
		return false
	}
	ok, err := l.client.SetNX(ctx, l.key(key), uuid.NewString(), l.ttl).Result()
	if err != nil {
		logger.Warnw("lock_redis_acquire_failed", "key", key, "error", err)
		return false
	}
	return ok
}

// Release 释放锁
func (l *RedisLocker) Release(ctx context.Context, key string) {
	if l == nil || l.client == nil || strings.TrimSpace(key) == "" {
		return
	}
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		logger.Warnw("lock_redis_release_failed", "key", key, "error", err)
	}
}
