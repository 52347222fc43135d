package rerank

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点。
// N <= 0 时使用请求中的 Limit；两者都未设置则不截断。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	req *core.RecommendationRequest,
	products []*core.ScoredProduct,
) ([]*core.ScoredProduct, error) {
	limit := n.N
	if limit <= 0 && req != nil {
		limit = req.Limit
	}
	return Truncate(products, limit), nil
}

// SortNode 去重后按推荐分降序稳定排序，分数相同保持引擎给出的顺序。
type SortNode struct{}

func (n *SortNode) Name() string        { return "rerank.sort" }
func (n *SortNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *SortNode) Process(
	_ context.Context,
	_ *core.RecommendationRequest,
	products []*core.ScoredProduct,
) ([]*core.ScoredProduct, error) {
	out := Dedup(products)
	for _, p := range out {
		if p.RecommendationScore < 0 {
			p.RecommendationScore = 0
		}
	}
	StableSortByScore(out)
	return out, nil
}
