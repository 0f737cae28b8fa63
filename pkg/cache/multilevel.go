package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"wallet-flow/pkg/logger"
)

// backfillTTL L2 命中后回写 L1 的过期时间，避免 L1 脏数据停留太久
const backfillTTL = time.Minute

// MultiLevelCache 多级缓存 (L1: Memory, L2: Redis)
type MultiLevelCache struct {
	local  Cache
	remote Cache
	log    *zap.Logger
}

func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{
		local:  local,
		remote: remote,
		log:    logger.Named("cache"),
	}
}

// Set 同时写入 L1 和 L2，L1 的 TTL 取 L2 的一半
func (m *MultiLevelCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := m.local.Set(ctx, key, value, ttl/2); err != nil {
		m.log.Warn("L1 写入失败", zap.String("key", key), zap.Error(err))
	}
	return m.remote.Set(ctx, key, value, ttl)
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target any) error {
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}

	err := m.remote.Get(ctx, key, target)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			m.log.Warn("L2 读取失败", zap.String("key", key), zap.Error(err))
		}
		return err
	}
	_ = m.local.Set(ctx, key, target, backfillTTL)
	return nil
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	return m.remote.Delete(ctx, key)
}
