package recall

import (
	"context"
	"sort"
	"time"

	"github.com/rushteam/shoprec/core"
)

// TrendingConfidence 是热门兜底的固定置信度。
const TrendingConfidence = 85

// Trending 是热门兜底召回：不依赖任何个性化信号，冷启动与降级时使用。
//
// 排序：近 Window 内订单数降序 → 评论数降序 → 上架时间降序 → ID 升序。
// 推荐分即窗口内订单数。
type Trending struct {
	Reader core.CatalogReader
	Window time.Duration

	// Now 可在测试中替换
	Now func() time.Time
}

func NewTrending(reader core.CatalogReader, cfg core.RecallConfig) *Trending {
	if cfg == nil {
		cfg = &core.DefaultRecallConfig{}
	}
	return &Trending{Reader: reader, Window: cfg.DefaultTrendingWindow(), Now: time.Now}
}

func (r *Trending) Name() string { return core.AlgorithmTrending }

// Recommend 返回热门商品；exclude 中的商品不会出现在结果中。
func (r *Trending) Recommend(ctx context.Context, limit int, categoryFilter []string, exclude map[string]struct{}) (*core.RecommendationResult, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	window := r.Window
	if window <= 0 {
		window = (&core.DefaultRecallConfig{}).DefaultTrendingWindow()
	}

	products, err := r.Reader.GetActiveProducts(ctx, categoryFilter)
	if err != nil {
		return nil, err
	}
	counts, err := r.Reader.GetOrderCountsSince(ctx, now().Add(-window))
	if err != nil {
		return nil, err
	}

	kept := make([]core.ProductRef, 0, len(products))
	for _, p := range products {
		if _, skip := exclude[p.ID]; skip || !p.IsActive() {
			continue
		}
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool {
		a, b := &kept[i], &kept[j]
		if counts[a.ID] != counts[b.ID] {
			return counts[a.ID] > counts[b.ID]
		}
		if a.ReviewCount != b.ReviewCount {
			return a.ReviewCount > b.ReviewCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	out := make([]*core.ScoredProduct, 0, len(kept))
	for _, p := range kept {
		out = append(out, core.NewScoredProduct(p, float64(counts[p.ID])))
	}
	return &core.RecommendationResult{
		Products:   out,
		Algorithm:  core.AlgorithmTrending,
		Confidence: TrendingConfidence,
		Reason:     "Popular products right now",
	}, nil
}
