package fusion

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/recall"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newCatalog(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()
	ctx := context.Background()
	cat := catalog.NewMemoryCatalog()
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		p := core.ProductRef{
			ID:         id,
			CategoryID: "c1",
			Tags:       []string{"t"},
			Price:      10,
			Status:     core.ProductStatusActive,
			CreatedAt:  now.Add(-30 * 24 * time.Hour),
		}
		if err := cat.AddProduct(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	orders := []catalog.Order{
		{ID: "o1", UserID: "u1", Status: core.OrderStatusDelivered, PlacedAt: now.Add(-time.Hour)},
		{ID: "o2", UserID: "u2", Status: core.OrderStatusPaymentCompleted, PlacedAt: now.Add(-2 * time.Hour)},
	}
	for _, pid := range []string{"p1", "p2", "p3"} {
		orders[0].Items = append(orders[0].Items, catalog.OrderItem{ProductID: pid, Quantity: 1, UnitPrice: 10})
	}
	for _, pid := range []string{"p2", "p3", "p4"} {
		orders[1].Items = append(orders[1].Items, catalog.OrderItem{ProductID: pid, Quantity: 1, UnitPrice: 10})
	}
	for _, o := range orders {
		if err := cat.AddOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}
	return cat
}

func newHybrid(reader core.CatalogReader) *Hybrid {
	h := New(reader, nil)
	h.Trending.Now = func() time.Time { return now }
	return h
}

func TestHybrid_BlendsCollaborativeAndContent(t *testing.T) {
	h := newHybrid(newCatalog(t))

	res, err := h.Recommend(context.Background(), "u1", 2, recall.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.ProductIDs(); !reflect.DeepEqual(got, []string{"p4", "p5"}) {
		t.Fatalf("products = %v", got)
	}
	// p4: 协同 1×0.6 + 内容 2×0.4；p5: 内容 1×0.4
	wantScores := []float64{1.4, 0.4}
	for i, p := range res.Products {
		if math.Abs(p.RecommendationScore-wantScores[i]) > 1e-9 {
			t.Errorf("%s score = %v, want %v", p.ID, p.RecommendationScore, wantScores[i])
		}
	}
	// 协同 0.25×0.5×100 = 12.5，内容 0.5×0.2×100 = 10
	if res.Algorithm != core.AlgorithmHybrid || math.Abs(res.Confidence-12.5) > 1e-9 {
		t.Errorf("algorithm/confidence = %s/%v", res.Algorithm, res.Confidence)
	}
}

func TestHybrid_ColdStartEqualsTrending(t *testing.T) {
	cat := newCatalog(t)
	h := newHybrid(cat)
	ctx := context.Background()

	got, err := h.Recommend(ctx, "ghost", 3, recall.Options{})
	if err != nil {
		t.Fatal(err)
	}
	want, err := h.Trending.Recommend(ctx, 3, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.ProductIDs(), want.ProductIDs()) {
		t.Errorf("冷启动 = %v, trending = %v", got.ProductIDs(), want.ProductIDs())
	}
	if got.Algorithm != core.AlgorithmTrending || got.Confidence != recall.TrendingConfidence {
		t.Errorf("algorithm/confidence = %s/%v", got.Algorithm, got.Confidence)
	}
}

type failingOrders struct {
	*catalog.MemoryCatalog
}

func (failingOrders) GetUsersWhoBought(context.Context, []string) ([]string, error) {
	return nil, core.NewCatalogUnavailable("GetUsersWhoBought", errors.New("connection refused"))
}

func (failingOrders) GetProductsByCategory(context.Context, string) ([]core.ProductRef, error) {
	return nil, core.NewCatalogUnavailable("GetProductsByCategory", errors.New("connection refused"))
}

func TestHybrid_BothPathsFail(t *testing.T) {
	h := newHybrid(failingOrders{newCatalog(t)})

	_, err := h.Recommend(context.Background(), "u1", 2, recall.Options{})
	if !core.IsUnavailable(err) {
		t.Errorf("两路都失败应返回 UNAVAILABLE, got %v", err)
	}
}

type failingContent struct {
	*catalog.MemoryCatalog
}

func (failingContent) GetProductsByCategory(context.Context, string) ([]core.ProductRef, error) {
	return nil, core.NewCatalogUnavailable("GetProductsByCategory", errors.New("connection refused"))
}

func TestHybrid_OnePathFails(t *testing.T) {
	h := newHybrid(failingContent{newCatalog(t)})

	res, err := h.Recommend(context.Background(), "u1", 2, recall.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.ProductIDs(); !reflect.DeepEqual(got, []string{"p4"}) {
		t.Errorf("products = %v", got)
	}
	if math.Abs(res.Confidence-12.5) > 1e-9 {
		t.Errorf("confidence = %v, want 12.5", res.Confidence)
	}
}
