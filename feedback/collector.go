// Package feedback 记录推荐结果上的点击与购买，按算法标签累加，用于离线 A/B 对比。
//
// 所有 Collector 都是 fire-and-forget：失败只记录日志与指标，
// 永远不会影响推荐链路。
package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pkg/logging"
)

// EventType 是追踪事件类型。
type EventType string

const (
	EventClick    EventType = "click"
	EventPurchase EventType = "purchase"
)

// Event 是一次点击或购买。
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Algorithm string    `json:"algorithm"`
	Timestamp int64     `json:"timestamp"` // Unix 秒
}

// Collector 是追踪接口。
type Collector interface {
	// RecordClick 记录用户点击了某个算法推荐的商品
	RecordClick(ctx context.Context, userID, productID, algorithm string)

	// RecordPurchase 记录用户购买了某个算法推荐的商品
	RecordPurchase(ctx context.Context, userID, productID, algorithm string)

	// Close 释放资源（Kafka 会等待缓冲数据发送完成）
	Close() error
}

// recorder 是各 Collector 的公共部分：构造事件、吞掉错误。
type recorder struct {
	name string
	now  func() time.Time
	fn   func(ctx context.Context, ev Event) error
}

func (r recorder) record(ctx context.Context, typ EventType, userID, productID, algorithm string) {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	ev := Event{Type: typ, UserID: userID, ProductID: productID, Algorithm: algorithm, Timestamp: now().Unix()}
	if ev.Algorithm == "" {
		ev.Algorithm = "unknown"
	}
	if err := r.fn(ctx, ev); err != nil {
		metrics.FeedbackErrors.WithLabelValues(r.name).Inc()
		logging.Ctx(ctx).Warn().Err(err).
			Str("collector", r.name).
			Str("event", string(typ)).
			Str("product_id", productID).
			Msg("feedback event dropped")
	}
}

// MultiCollector 把事件依次分发给多个 Collector。
type MultiCollector []Collector

func (m MultiCollector) RecordClick(ctx context.Context, userID, productID, algorithm string) {
	for _, c := range m {
		c.RecordClick(ctx, userID, productID, algorithm)
	}
}

func (m MultiCollector) RecordPurchase(ctx context.Context, userID, productID, algorithm string) {
	for _, c := range m {
		c.RecordPurchase(ctx, userID, productID, algorithm)
	}
}

func (m MultiCollector) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopCollector 丢弃所有事件。
type NopCollector struct{}

func (NopCollector) RecordClick(context.Context, string, string, string)    {}
func (NopCollector) RecordPurchase(context.Context, string, string, string) {}
func (NopCollector) Close() error                                           { return nil }
