// Package store 提供 core.Store / core.KeyValueStore 的实现：
// 内存、Redis 与 Badger（嵌入式持久化）。
//
// 示例：
//
//	var cache core.Store = store.NewMemoryStore()
//	var counters core.KeyValueStore = store.NewMemoryStore()
package store

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
)

// Backend 是缓存后端类型。
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Options 是按配置构建 Store 的参数。
type Options struct {
	Backend   string
	Redis     RedisOptions
	BadgerDir string
}

// Open 根据 Backend 构建对应的 Store。
func Open(ctx context.Context, opts Options) (core.Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.Redis)
	case BackendBadger:
		return NewBadgerStore(opts.BadgerDir)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
