package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/rankproxy/core"
)

// RedisStore 是 Redis 实现的 Cache。
// 生产环境常用，连接由客户端内部池化，可安全并发使用。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisStoreOption 配置 RedisStore
type RedisStoreOption func(*RedisStore)

// WithRedisTTL 设置写入条目的过期时间（0 表示不过期，遵循外部存储自身的淘汰策略）
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(r *RedisStore) {
		r.ttl = ttl
	}
}

func NewRedisStore(addr string, db int, opts ...RedisStoreOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	rs := &RedisStore{client: client}
	for _, opt := range opts {
		opt(rs)
	}
	return rs, nil
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", core.ErrCacheNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// 确保 RedisStore 实现了 core.Cache 接口
var _ core.Cache = (*RedisStore)(nil)
