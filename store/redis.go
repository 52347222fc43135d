package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/shoprec/core"
)

// RedisStore 是 Redis 实现的 KeyValueStore。
// 生产环境常用：多实例共享推荐缓存，SET EX 保证写入与过期原子完成。
type RedisStore struct {
	client *redis.Client
}

// RedisOptions 是 RedisStore 的连接参数。
type RedisOptions struct {
	Addr     string `koanf:"addr" yaml:"addr"`
	Password string `koanf:"password" yaml:"password"`
	DB       int    `koanf:"db" yaml:"db"`
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: redis ping failed", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient 使用已有的 *redis.Client 创建 RedisStore。
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	var expiration time.Duration
	if len(ttl) > 0 && ttl[0] > 0 {
		expiration = time.Duration(ttl[0]) * time.Second
	}
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	return r.client.HIncrBy(ctx, key, field, incr).Result()
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(vals))
	for k, v := range vals {
		result[k] = []byte(v)
	}
	return result, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// 确保 RedisStore 实现了 core.Store 和 core.KeyValueStore 接口
var _ core.Store = (*RedisStore)(nil)
var _ core.KeyValueStore = (*RedisStore)(nil)
