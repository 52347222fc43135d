package catalog

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pkg/logging"
)

// BreakerConfig 是熔断参数。
type BreakerConfig struct {
	Name             string        `koanf:"name" yaml:"name"`
	MaxRequests      uint32        `koanf:"max_requests" yaml:"max_requests"`
	Interval         time.Duration `koanf:"interval" yaml:"interval"`
	Timeout          time.Duration `koanf:"timeout" yaml:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold" yaml:"failure_threshold"`
}

// DefaultBreakerConfig 返回默认熔断参数。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "catalog",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerReader 用熔断器包装 CatalogReader。
// 只有 UNAVAILABLE 类错误计入失败；NOT_FOUND 等业务结果不会触发熔断。
// 熔断打开时直接返回 UNAVAILABLE，Resolver 据此降级到 trending。
type BreakerReader struct {
	next core.CatalogReader
	cb   *gobreaker.CircuitBreaker[any]
}

var _ core.CatalogReader = (*BreakerReader)(nil)

func NewBreakerReader(next core.CatalogReader, cfg BreakerConfig) *BreakerReader {
	if cfg.Name == "" {
		cfg.Name = next.Name()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !core.IsUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("catalog breaker state changed")
		},
	}
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	return &BreakerReader{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (b *BreakerReader) Name() string { return b.next.Name() }

// State 返回熔断器当前状态（closed / half-open / open）。
func (b *BreakerReader) State() string { return b.cb.State().String() }

func (b *BreakerReader) execute(op string, fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, core.NewCatalogUnavailable(op, err)
	}
	return v, err
}

func (b *BreakerReader) GetCompletedOrders(ctx context.Context, userID string, since time.Time) ([]core.InteractionRecord, error) {
	v, err := b.execute("completed orders", func() (any, error) {
		return b.next.GetCompletedOrders(ctx, userID, since)
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.InteractionRecord), nil
}

func (b *BreakerReader) GetOrdersContaining(ctx context.Context, productID string) ([]core.InteractionRecord, error) {
	v, err := b.execute("orders containing", func() (any, error) {
		return b.next.GetOrdersContaining(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.InteractionRecord), nil
}

func (b *BreakerReader) GetUsersWhoBought(ctx context.Context, productIDs []string) ([]string, error) {
	v, err := b.execute("users who bought", func() (any, error) {
		return b.next.GetUsersWhoBought(ctx, productIDs)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (b *BreakerReader) GetOrderCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	v, err := b.execute("order counts", func() (any, error) {
		return b.next.GetOrderCountsSince(ctx, since)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]int), nil
}

func (b *BreakerReader) GetProduct(ctx context.Context, id string) (*core.ProductRef, error) {
	v, err := b.execute("product", func() (any, error) {
		return b.next.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.ProductRef), nil
}

func (b *BreakerReader) GetProducts(ctx context.Context, ids []string) (map[string]core.ProductRef, error) {
	v, err := b.execute("products", func() (any, error) {
		return b.next.GetProducts(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]core.ProductRef), nil
}

func (b *BreakerReader) GetProductsByCategory(ctx context.Context, categoryID string) ([]core.ProductRef, error) {
	return b.products("products by category", func() ([]core.ProductRef, error) {
		return b.next.GetProductsByCategory(ctx, categoryID)
	})
}

func (b *BreakerReader) GetProductsByTagOverlap(ctx context.Context, tags []string) ([]core.ProductRef, error) {
	return b.products("products by tag", func() ([]core.ProductRef, error) {
		return b.next.GetProductsByTagOverlap(ctx, tags)
	})
}

func (b *BreakerReader) GetProductsByPriceBand(ctx context.Context, min, max float64) ([]core.ProductRef, error) {
	return b.products("products by price", func() ([]core.ProductRef, error) {
		return b.next.GetProductsByPriceBand(ctx, min, max)
	})
}

func (b *BreakerReader) GetActiveProducts(ctx context.Context, categoryFilter []string) ([]core.ProductRef, error) {
	return b.products("active products", func() ([]core.ProductRef, error) {
		return b.next.GetActiveProducts(ctx, categoryFilter)
	})
}

func (b *BreakerReader) products(op string, fn func() ([]core.ProductRef, error)) ([]core.ProductRef, error) {
	v, err := b.execute(op, func() (any, error) { return fn() })
	if err != nil {
		return nil, err
	}
	return v.([]core.ProductRef), nil
}
