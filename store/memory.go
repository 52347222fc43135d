package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rushteam/shoprec/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/单机部署。
// 支持 TTL（过期时间），但进程重启后数据丢失。
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*entry
	hashes map[string]map[string]int64
	clean  *time.Ticker
	done   chan struct{}
	once   sync.Once

	// now 可在测试中替换，用于模拟过期
	now func() time.Time
}

type entry struct {
	value []byte
	ttl   *time.Time
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:   make(map[string]*entry),
		hashes: make(map[string]map[string]int64),
		clean:  time.NewTicker(10 * time.Second),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go ms.cleanup()
	return ms
}

// WithClock 替换时钟（测试用）。
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	if e.ttl != nil && m.now().After(*e.ttl) {
		return nil, core.ErrStoreNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(value))
	copy(buf, value)
	e := &entry{value: buf}
	if len(ttl) > 0 && ttl[0] > 0 {
		expire := m.now().Add(time.Duration(ttl[0]) * time.Second)
		e.ttl = &expire
	}
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.hashes, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.clean.C:
			m.mu.Lock()
			now := m.now()
			for k, e := range m.data {
				if e.ttl != nil && now.After(*e.ttl) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// KeyValueStore 扩展方法

var _ core.KeyValueStore = (*MemoryStore)(nil)

func (m *MemoryStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]int64)
		m.hashes[key] = h
	}
	h[field] += incr
	return h[field], nil
}

func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.hashes[key]
	result := make(map[string][]byte, len(h))
	for field, n := range h {
		result[field] = []byte(strconv.FormatInt(n, 10))
	}
	return result, nil
}
