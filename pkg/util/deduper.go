package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InFlightGuard 用 Redis SETNX 防止同一个事件被多个消费者同时处理
// 处理结束后应调用 Release；进程崩溃时锁由 TTL 自动过期，事件可被重新投递
type InFlightGuard struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewInFlightGuard(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *InFlightGuard {
	return &InFlightGuard{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func inFlightKey(handler, id string) string {
	return fmt.Sprintf("inflight:%s:%s", handler, id)
}

// Acquire 返回 true 表示当前调用者获得处理权
func (g *InFlightGuard) Acquire(ctx context.Context, handler, id string) bool {
	key := inFlightKey(handler, id)

	ok, err := g.rdb.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理，幂等由数据库 processed 标记兜底
		g.logger.Warn("Redis in-flight check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		g.logger.Info("Event already in flight, skipped",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.String("key", key),
		)
	}
	return ok
}

// Release 释放处理权
func (g *InFlightGuard) Release(ctx context.Context, handler, id string) {
	if err := g.rdb.Del(ctx, inFlightKey(handler, id)).Err(); err != nil {
		g.logger.Warn("Failed to release in-flight key",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
