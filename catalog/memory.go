package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/shoprec/core"
)

// MemoryCatalog 是内存实现的 CatalogReader，并发安全。
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]core.ProductRef
	orders   map[string]Order
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[string]core.ProductRef),
		orders:   make(map[string]Order),
	}
}

var (
	_ core.CatalogReader = (*MemoryCatalog)(nil)
	_ Writer             = (*MemoryCatalog)(nil)
)

func (m *MemoryCatalog) Name() string { return "memory" }

func (m *MemoryCatalog) AddProduct(ctx context.Context, p core.ProductRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Tags = append([]string(nil), p.Tags...)
	m.products[p.ID] = p
	return nil
}

func (m *MemoryCatalog) AddOrder(ctx context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Items = append([]OrderItem(nil), o.Items...)
	m.orders[o.ID] = o
	return nil
}

// completedOrders 返回已完成订单，按下单时间倒序、订单 ID 倒序。调用方持有读锁。
func (m *MemoryCatalog) completedOrders(match func(o *Order) bool) []Order {
	var out []Order
	for _, o := range m.orders {
		if !core.IsCompletedOrderStatus(o.Status) {
			continue
		}
		if match != nil && !match(&o) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.After(out[j].PlacedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MemoryCatalog) GetCompletedOrders(ctx context.Context, userID string, since time.Time) ([]core.InteractionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("completed orders", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.InteractionRecord
	for _, o := range m.completedOrders(func(o *Order) bool {
		return o.UserID == userID && (since.IsZero() || !o.PlacedAt.Before(since))
	}) {
		out = append(out, o.Records()...)
	}
	return out, nil
}

func (m *MemoryCatalog) GetOrdersContaining(ctx context.Context, productID string) ([]core.InteractionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("orders containing", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.InteractionRecord
	for _, o := range m.completedOrders(func(o *Order) bool { return o.contains(productID) }) {
		out = append(out, o.Records()...)
	}
	return out, nil
}

func (m *MemoryCatalog) GetUsersWhoBought(ctx context.Context, productIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("users who bought", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := core.StringSet(productIDs)
	seen := make(map[string]struct{})
	for _, o := range m.completedOrders(nil) {
		for _, it := range o.Items {
			if _, ok := want[it.ProductID]; ok {
				seen[o.UserID] = struct{}{}
				break
			}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (m *MemoryCatalog) GetOrderCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("order counts", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, o := range m.completedOrders(func(o *Order) bool { return !o.PlacedAt.Before(since) }) {
		seen := make(map[string]struct{}, len(o.Items))
		for _, it := range o.Items {
			if _, dup := seen[it.ProductID]; dup {
				continue
			}
			seen[it.ProductID] = struct{}{}
			counts[it.ProductID]++
		}
	}
	return counts, nil
}

func (m *MemoryCatalog) GetProduct(ctx context.Context, id string) (*core.ProductRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("product", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, core.ErrProductNotFound
	}
	return &p, nil
}

func (m *MemoryCatalog) GetProducts(ctx context.Context, ids []string) (map[string]core.ProductRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("products", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]core.ProductRef, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryCatalog) GetProductsByCategory(ctx context.Context, categoryID string) ([]core.ProductRef, error) {
	return m.activeWhere(ctx, "products by category", func(p *core.ProductRef) bool {
		return p.CategoryID == categoryID
	})
}

func (m *MemoryCatalog) GetProductsByTagOverlap(ctx context.Context, tags []string) ([]core.ProductRef, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	want := core.StringSet(tags)
	return m.activeWhere(ctx, "products by tag", func(p *core.ProductRef) bool {
		for _, t := range p.Tags {
			if _, ok := want[t]; ok {
				return true
			}
		}
		return false
	})
}

func (m *MemoryCatalog) GetProductsByPriceBand(ctx context.Context, min, max float64) ([]core.ProductRef, error) {
	return m.activeWhere(ctx, "products by price", func(p *core.ProductRef) bool {
		return p.Price >= min && p.Price <= max
	})
}

func (m *MemoryCatalog) GetActiveProducts(ctx context.Context, categoryFilter []string) ([]core.ProductRef, error) {
	cats := core.StringSet(categoryFilter)
	return m.activeWhere(ctx, "active products", func(p *core.ProductRef) bool {
		if cats == nil {
			return true
		}
		_, ok := cats[p.CategoryID]
		return ok
	})
}

// activeWhere 返回满足条件的在售商品，按 ID 升序。
func (m *MemoryCatalog) activeWhere(ctx context.Context, op string, match func(p *core.ProductRef) bool) ([]core.ProductRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewCatalogUnavailable(op, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.ProductRef
	for _, p := range m.products {
		if p.IsActive() && match(&p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (o *Order) contains(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}
