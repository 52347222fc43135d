package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
)

func testStores(t *testing.T) map[string]core.KeyValueStore {
	t.Helper()
	b, err := NewBadgerStore("")
	if err != nil {
		t.Fatalf("打开 badger 失败: %v", err)
	}
	m := NewMemoryStore()
	t.Cleanup(func() {
		_ = b.Close()
		_ = m.Close()
	})
	return map[string]core.KeyValueStore{"memory": m, "badger": b}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
				t.Fatalf("期望 not found，实际 %v", err)
			}
			if err := s.Set(ctx, "k", []byte("v"), 60); err != nil {
				t.Fatalf("Set 失败: %v", err)
			}
			got, err := s.Get(ctx, "k")
			if err != nil || string(got) != "v" {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if err := s.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete 失败: %v", err)
			}
			if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
				t.Fatalf("删除后期望 not found，实际 %v", err)
			}
		})
	}
}

func TestStore_HIncrBy(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if _, err := s.HIncrBy(ctx, "clicks", "hybrid", 1); err != nil {
					t.Fatalf("HIncrBy 失败: %v", err)
				}
			}
			n, err := s.HIncrBy(ctx, "clicks", "trending", 2)
			if err != nil || n != 2 {
				t.Fatalf("HIncrBy = %d, %v", n, err)
			}
			all, err := s.HGetAll(ctx, "clicks")
			if err != nil {
				t.Fatalf("HGetAll 失败: %v", err)
			}
			if string(all["hybrid"]) != "3" || string(all["trending"]) != "2" {
				t.Errorf("HGetAll = %v", all)
			}
			empty, err := s.HGetAll(ctx, "nothing")
			if err != nil || len(empty) != 0 {
				t.Errorf("空 hash 期望为空，实际 %v, %v", empty, err)
			}
		})
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStore().WithClock(func() time.Time { return now })
	defer s.Close()

	if err := s.Set(ctx, "rec", []byte("cached"), 1800); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	now = now.Add(1799 * time.Second)
	if _, err := s.Get(ctx, "rec"); err != nil {
		t.Fatalf("TTL 内应命中: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := s.Get(ctx, "rec"); !core.IsStoreNotFound(err) {
		t.Fatalf("TTL 后应过期，实际 %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{})
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	defer s.Close()
	if s.Name() != BackendMemory {
		t.Errorf("默认后端 = %s", s.Name())
	}
	if _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Error("未知后端应返回错误")
	}
}
