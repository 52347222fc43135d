package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/logging"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该商品就会被过滤掉。
// 过滤器出错时记录日志并保留该商品。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	req *core.RecommendationRequest,
	products []*core.ScoredProduct,
) ([]*core.ScoredProduct, error) {
	if len(n.Filters) == 0 || len(products) == 0 {
		return products, nil
	}

	out := make([]*core.ScoredProduct, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		drop := false
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, req, p)
			if err != nil {
				logging.Ctx(ctx).Debug().Err(err).Str("filter", f.Name()).Str("product", p.ID).Msg("filter error, keeping product")
				continue
			}
			if ok {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, p)
		}
	}
	return out, nil
}
