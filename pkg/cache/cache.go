package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss key 不存在或已过期
var ErrMiss = errors.New("cache miss")

// Cache 通用 KV 接口，值以 JSON 语义存取 (内存实现也做一次序列化，保证与 Redis 行为一致)
type Cache interface {
	// Set ttl <= 0 表示使用实现的默认过期时间
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get 将结果 Unmarshal 到 target，未命中返回 ErrMiss
	Get(ctx context.Context, key string, target any) error
	Delete(ctx context.Context, key string) error
}
