package recall

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/rerank"
)

// 商品相关召回的候选列表
const (
	SourceCoBought     = "co_bought"
	SourceSameCategory = "same_category"
	SourceTagOverlap   = "tag_overlap"
	SourcePriceBand    = "price_band"
)

// DefaultItemWeights 是四个候选列表的融合权重。
var DefaultItemWeights = map[string]float64{
	SourceCoBought:     0.4,
	SourceSameCategory: 0.3,
	SourceTagOverlap:   0.2,
	SourcePriceBand:    0.1,
}

// priceBandRatio 是价格带上下浮动比例（±30%）。
const priceBandRatio = 0.3

// ItemBased 是基于商品共现的召回（"买了又买" + 同类目 + 标签重叠 + 价格带）。
//
// 四个候选列表并发获取，每个列表排除源商品与非在售商品后整体参与
// 按位置加权合并：(len - index) × weight。列表不按 limit 截断，
// 因此 limit=1 的结果总是 limit=10 结果的第一个。
type ItemBased struct {
	Reader  core.CatalogReader
	Weights map[string]float64
	Timeout time.Duration // 单个候选列表的超时
}

func NewItemBased(reader core.CatalogReader, cfg core.RecallConfig) *ItemBased {
	if cfg == nil {
		cfg = &core.DefaultRecallConfig{}
	}
	return &ItemBased{Reader: reader, Weights: DefaultItemWeights, Timeout: cfg.DefaultTimeout()}
}

func (r *ItemBased) Name() string { return core.AlgorithmItemBased }

func (r *ItemBased) weight(source string) float64 {
	if w, ok := r.Weights[source]; ok {
		return w
	}
	return DefaultItemWeights[source]
}

// Recommend 返回与 productID 相关的商品。商品不存在时返回零置信度结果。
// 四个候选列表全部失败时返回 UNAVAILABLE。
func (r *ItemBased) Recommend(ctx context.Context, productID string, limit int) (*core.RecommendationResult, error) {
	source, err := r.Reader.GetProduct(ctx, productID)
	if err != nil {
		if core.IsNotFound(err) {
			return &core.RecommendationResult{
				Products:   []*core.ScoredProduct{},
				Algorithm:  core.AlgorithmItemBased,
				Confidence: 0,
				Reason:     "Product not found",
			}, nil
		}
		return nil, err
	}

	fan := &Fanout{
		Timeout: r.Timeout,
		Sources: []Source{
			SourceFunc{SourceName: SourceCoBought, Fn: func(ctx context.Context) ([]*core.ScoredProduct, error) {
				return r.coBought(ctx, source)
			}},
			SourceFunc{SourceName: SourceSameCategory, Fn: func(ctx context.Context) ([]*core.ScoredProduct, error) {
				products, err := r.Reader.GetProductsByCategory(ctx, source.CategoryID)
				return rankList(products, err, source.ID, func(a, b *core.ProductRef) int {
					return compareInt64(b.UnitsSold, a.UnitsSold)
				})
			}},
			SourceFunc{SourceName: SourceTagOverlap, Fn: func(ctx context.Context) ([]*core.ScoredProduct, error) {
				if len(source.Tags) == 0 {
					return nil, nil
				}
				products, err := r.Reader.GetProductsByTagOverlap(ctx, source.Tags)
				return rankList(products, err, source.ID, func(a, b *core.ProductRef) int {
					return compareInt64(b.ReviewCount, a.ReviewCount)
				})
			}},
			SourceFunc{SourceName: SourcePriceBand, Fn: func(ctx context.Context) ([]*core.ScoredProduct, error) {
				products, err := r.Reader.GetProductsByPriceBand(ctx,
					source.Price*(1-priceBandRatio), source.Price*(1+priceBandRatio))
				return rankList(products, err, source.ID, func(a, b *core.ProductRef) int {
					return b.UpdatedAt.Compare(a.UpdatedAt)
				})
			}},
		},
	}

	results := fan.Run(ctx)
	if AllFailed(results) {
		return nil, core.WrapDomainError(core.ModuleRecall, core.ErrorCodeUnavailable,
			"recall: all item-based sources failed", FirstError(results))
	}

	lists := make([]rerank.WeightedList, 0, len(results))
	for _, res := range results {
		lists = append(lists, rerank.WeightedList{Name: res.Name, Weight: r.weight(res.Name), Products: res.Products})
	}
	products := rerank.Truncate(rerank.Merge(lists...), limit)

	return &core.RecommendationResult{
		Products:   products,
		Algorithm:  core.AlgorithmItemBased,
		Confidence: core.ClampConfidence(coverage(len(products), limit) * 100),
		Reason:     fmt.Sprintf("Frequently bought together with or similar to %s", source.ID),
	}, nil
}

// coBought 统计与源商品出现在同一已完成订单中的商品，按共现订单数降序。
func (r *ItemBased) coBought(ctx context.Context, source *core.ProductRef) ([]*core.ScoredProduct, error) {
	records, err := r.Reader.GetOrdersContaining(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	freq := make(map[string]int)
	seen := make(map[string]struct{})
	for _, rec := range records {
		if rec.ProductID == source.ID {
			continue
		}
		key := rec.OrderID + "\x00" + rec.ProductID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		freq[rec.ProductID]++
	}
	if len(freq) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(freq))
	for id := range freq {
		ids = append(ids, id)
	}
	products, err := r.Reader.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	list := make([]core.ProductRef, 0, len(products))
	for _, p := range products {
		list = append(list, p)
	}
	return rankList(list, nil, source.ID, func(a, b *core.ProductRef) int {
		return freq[b.ID] - freq[a.ID]
	})
}

// rankList 排除源商品与非在售商品，按 cmp 排序（相同按 ID 升序）。
// cmp 返回负数表示 a 排在 b 前。
func rankList(products []core.ProductRef, err error, sourceID string, cmp func(a, b *core.ProductRef) int) ([]*core.ScoredProduct, error) {
	if err != nil {
		return nil, err
	}
	kept := make([]core.ProductRef, 0, len(products))
	for _, p := range products {
		if p.ID == sourceID || !p.IsActive() {
			continue
		}
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool {
		if c := cmp(&kept[i], &kept[j]); c != 0 {
			return c < 0
		}
		return kept[i].ID < kept[j].ID
	})
	out := make([]*core.ScoredProduct, 0, len(kept))
	for i, p := range kept {
		out = append(out, core.NewScoredProduct(p, float64(len(kept)-i)))
	}
	return out, nil
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
