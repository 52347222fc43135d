package rerank

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// Diversity 是按类目打散的 ReRank：每个类目最多保留 MaxPerCategory 个商品（保持原有顺序）。
// MaxPerCategory <= 0 时不做限制。
type Diversity struct {
	MaxPerCategory int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendationRequest,
	products []*core.ScoredProduct,
) ([]*core.ScoredProduct, error) {
	if n.MaxPerCategory <= 0 || len(products) == 0 {
		return products, nil
	}

	seen := make(map[string]int, 16)
	out := make([]*core.ScoredProduct, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		if p.CategoryID == "" {
			out = append(out, p)
			continue
		}
		if seen[p.CategoryID] >= n.MaxPerCategory {
			continue
		}
		seen[p.CategoryID]++
		out = append(out, p)
	}
	return out, nil
}
