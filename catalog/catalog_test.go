package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, w Writer) {
	t.Helper()
	ctx := context.Background()
	products := []core.ProductRef{
		{ID: "p1", CategoryID: "c1", Tags: []string{"red", "cotton"}, Price: 10, Status: "active", UnitsSold: 5, CreatedAt: base, UpdatedAt: base},
		{ID: "p2", CategoryID: "c1", Tags: []string{"blue"}, Price: 19.99, Status: "active", UnitsSold: 9, CreatedAt: base, UpdatedAt: base},
		{ID: "p3", CategoryID: "c2", Tags: []string{"red"}, Price: 30, Status: "active", CreatedAt: base, UpdatedAt: base},
		{ID: "p4", CategoryID: "c2", Tags: []string{"red"}, Price: 12, Status: "inactive", CreatedAt: base, UpdatedAt: base},
	}
	for _, p := range products {
		if err := w.AddProduct(ctx, p); err != nil {
			t.Fatalf("AddProduct: %v", err)
		}
	}
	orders := []Order{
		{ID: "o1", UserID: "u1", Status: core.OrderStatusDelivered, PlacedAt: base.Add(-48 * time.Hour),
			Items: []OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}, {ProductID: "p2", Quantity: 2, UnitPrice: 19.99}}},
		{ID: "o2", UserID: "u1", Status: core.OrderStatusPaymentCompleted, PlacedAt: base.Add(-time.Hour),
			Items: []OrderItem{{ProductID: "p3", Quantity: 1, UnitPrice: 30}}},
		{ID: "o3", UserID: "u2", Status: "cancelled", PlacedAt: base,
			Items: []OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}}},
		{ID: "o4", UserID: "u3", Status: core.OrderStatusDelivered, PlacedAt: base.Add(-24 * time.Hour),
			Items: []OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}}},
	}
	for _, o := range orders {
		if err := w.AddOrder(ctx, o); err != nil {
			t.Fatalf("AddOrder: %v", err)
		}
	}
}

type testCatalog interface {
	core.CatalogReader
	Writer
}

func catalogs(t *testing.T) map[string]testCatalog {
	t.Helper()
	sq, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	out := map[string]testCatalog{"memory": NewMemoryCatalog(), "sqlite": sq}
	for _, c := range out {
		seed(t, c)
	}
	return out
}

func productIDs(ps []core.ProductRef) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestCatalog_Reader(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			recs, err := c.GetCompletedOrders(ctx, "u1", time.Time{})
			if err != nil {
				t.Fatalf("GetCompletedOrders: %v", err)
			}
			var got []string
			for _, r := range recs {
				got = append(got, r.OrderID+"/"+r.ProductID)
			}
			if want := []string{"o2/p3", "o1/p1", "o1/p2"}; !reflect.DeepEqual(got, want) {
				t.Errorf("completed orders = %v, want %v", got, want)
			}
			if recs[2].UnitPrice != 19.99 {
				t.Errorf("unit price = %v", recs[2].UnitPrice)
			}

			recent, _ := c.GetCompletedOrders(ctx, "u1", base.Add(-2*time.Hour))
			if len(recent) != 1 || recent[0].ProductID != "p3" {
				t.Errorf("since 过滤失败: %+v", recent)
			}

			users, err := c.GetUsersWhoBought(ctx, []string{"p1"})
			if err != nil || !reflect.DeepEqual(users, []string{"u1", "u3"}) {
				t.Errorf("users who bought = %v, %v", users, err)
			}

			containing, _ := c.GetOrdersContaining(ctx, "p2")
			if len(containing) != 2 {
				t.Errorf("orders containing p2 应返回整单 2 行，实际 %d", len(containing))
			}

			counts, _ := c.GetOrderCountsSince(ctx, base.Add(-30*time.Hour))
			if counts["p1"] != 1 || counts["p3"] != 1 || counts["p2"] != 0 {
				t.Errorf("order counts = %v", counts)
			}

			p, err := c.GetProduct(ctx, "p2")
			if err != nil || p.Price != 19.99 || p.CategoryID != "c1" {
				t.Errorf("GetProduct = %+v, %v", p, err)
			}
			if _, err := c.GetProduct(ctx, "nope"); !core.IsNotFound(err) {
				t.Errorf("missing product err = %v", err)
			}

			many, _ := c.GetProducts(ctx, []string{"p1", "p4", "nope"})
			if len(many) != 2 {
				t.Errorf("GetProducts = %v", many)
			}

			byCat, _ := c.GetProductsByCategory(ctx, "c2")
			if got := productIDs(byCat); !reflect.DeepEqual(got, []string{"p3"}) {
				t.Errorf("by category = %v", got)
			}
			byTag, _ := c.GetProductsByTagOverlap(ctx, []string{"red", "blue"})
			if got := productIDs(byTag); !reflect.DeepEqual(got, []string{"p1", "p2", "p3"}) {
				t.Errorf("by tag = %v", got)
			}
			byPrice, _ := c.GetProductsByPriceBand(ctx, 10, 20)
			if got := productIDs(byPrice); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
				t.Errorf("by price = %v", got)
			}
			active, _ := c.GetActiveProducts(ctx, []string{"c1"})
			if got := productIDs(active); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
				t.Errorf("active c1 = %v", got)
			}
			all, _ := c.GetActiveProducts(ctx, nil)
			if len(all) != 3 {
				t.Errorf("active = %v", productIDs(all))
			}
		})
	}
}

func TestImportFixtures(t *testing.T) {
	data := []byte(`
products:
  - id: p1
    category_id: c1
    tags: [red]
    price: 9.5
orders:
  - id: o1
    user_id: u1
    status: delivered
    placed_at: 2026-05-01T00:00:00Z
    items:
      - product_id: p1
        quantity: 1
        unit_price: 9.5
`)
	m := NewMemoryCatalog()
	np, no, err := ImportFixtures(context.Background(), m, data)
	if err != nil || np != 1 || no != 1 {
		t.Fatalf("ImportFixtures = %d, %d, %v", np, no, err)
	}
	p, err := m.GetProduct(context.Background(), "p1")
	if err != nil || !p.IsActive() || p.Price != 9.5 {
		t.Errorf("导入商品 = %+v, %v", p, err)
	}
}

type failingReader struct {
	core.CatalogReader
	calls int
}

func (f *failingReader) GetProduct(ctx context.Context, id string) (*core.ProductRef, error) {
	f.calls++
	return nil, core.NewCatalogUnavailable("product", errors.New("connection refused"))
}

func TestBreakerReader_Opens(t *testing.T) {
	inner := &failingReader{CatalogReader: NewMemoryCatalog()}
	cfg := DefaultBreakerConfig()
	cfg.Name = "test-breaker"
	cfg.FailureThreshold = 2
	br := NewBreakerReader(inner, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := br.GetProduct(ctx, "p1"); !core.IsUnavailable(err) {
			t.Fatalf("期望 unavailable，实际 %v", err)
		}
	}
	if br.State() != "open" {
		t.Fatalf("state = %s, want open", br.State())
	}
	_, err := br.GetProduct(ctx, "p1")
	if !core.IsUnavailable(err) {
		t.Errorf("熔断打开后应返回 unavailable，实际 %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("熔断打开后不应再调用下游，calls = %d", inner.calls)
	}
}

func TestBreakerReader_NotFoundDoesNotTrip(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.Name = "test-breaker-nf"
	cfg.FailureThreshold = 1
	br := NewBreakerReader(NewMemoryCatalog(), cfg)
	for i := 0; i < 3; i++ {
		if _, err := br.GetProduct(context.Background(), "missing"); !core.IsNotFound(err) {
			t.Fatalf("err = %v", err)
		}
	}
	if br.State() != "closed" {
		t.Errorf("NOT_FOUND 不应触发熔断，state = %s", br.State())
	}
}
