package feedback

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/conv"
)

// DefaultKeyPrefix 是计数 Hash 的 key 前缀，完整 key 为 prefix:algorithm。
const DefaultKeyPrefix = "feedback"

// StoreCollector 把事件累加到 KeyValueStore 的 Hash 计数中：
//
//	feedback:hybrid  -> {click: 12, purchase: 3}
type StoreCollector struct {
	Store     core.KeyValueStore
	KeyPrefix string

	recorder
}

func NewStoreCollector(s core.KeyValueStore) *StoreCollector {
	c := &StoreCollector{Store: s, KeyPrefix: DefaultKeyPrefix}
	c.recorder = recorder{name: "store", fn: c.incr}
	return c
}

func (c *StoreCollector) key(algorithm string) string {
	prefix := c.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":" + algorithm
}

func (c *StoreCollector) incr(ctx context.Context, ev Event) error {
	_, err := c.Store.HIncrBy(ctx, c.key(ev.Algorithm), string(ev.Type), 1)
	return err
}

func (c *StoreCollector) RecordClick(ctx context.Context, userID, productID, algorithm string) {
	c.record(ctx, EventClick, userID, productID, algorithm)
}

func (c *StoreCollector) RecordPurchase(ctx context.Context, userID, productID, algorithm string) {
	c.record(ctx, EventPurchase, userID, productID, algorithm)
}

// Counts 读取某个算法的累计计数。
func (c *StoreCollector) Counts(ctx context.Context, algorithm string) (map[EventType]int64, error) {
	raw, err := c.Store.HGetAll(ctx, c.key(algorithm))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return map[EventType]int64{}, nil
		}
		return nil, err
	}
	out := make(map[EventType]int64, len(raw))
	for field, v := range raw {
		n, ok := conv.ToInt64(v)
		if !ok {
			return nil, fmt.Errorf("feedback: counter %s/%s is not an integer", algorithm, field)
		}
		out[EventType(field)] = n
	}
	return out, nil
}

func (c *StoreCollector) Close() error { return nil }
