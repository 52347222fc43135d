package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rushteam/shoprec/core"
)

// Hash 字段在 badger 中以 hashKeyPrefix + key + "\x00" + field 平铺存储。
const hashKeyPrefix = "h:"

// BadgerStore 是 BadgerDB 实现的 KeyValueStore，适合单机部署时需要跨重启保留缓存与计数。
// TTL 直接使用 badger 的 entry 过期机制。
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore 打开（或创建）dir 下的 BadgerDB；dir 为空时使用内存模式。
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: open badger", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreWithDB 使用已打开的 *badger.DB 创建 BadgerStore。
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.ErrStoreNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if len(ttl) > 0 && ttl[0] > 0 {
			e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
		}
		return txn.SetEntry(e)
	})
}

func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		prefix := []byte(hashKeyPrefix + key + "\x00")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		var fields [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			fields = append(fields, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range fields {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	k := []byte(hashKeyPrefix + key + "\x00" + field)
	var next int64
	err := b.db.Update(func(txn *badger.Txn) error {
		var cur int64
		item, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				n, perr := strconv.ParseInt(string(val), 10, 64)
				cur = n
				return perr
			}); err != nil {
				return fmt.Errorf("parse counter %s/%s: %w", key, field, err)
			}
		}
		next = cur + incr
		return txn.Set(k, []byte(strconv.FormatInt(next, 10)))
	})
	return next, err
}

func (b *BadgerStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	prefix := hashKeyPrefix + key + "\x00"
	result := make(map[string][]byte)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix), PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.Key()[len(prefix):])] = val
		}
		return nil
	})
	return result, err
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

var _ core.KeyValueStore = (*BadgerStore)(nil)
