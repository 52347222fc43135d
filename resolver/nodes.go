package resolver

import (
	"fmt"

	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/conv"
	"github.com/rushteam/shoprec/rerank"
)

// DefaultNodeFactory 返回包含所有内置后处理 Node 的工厂，
// 供 resolver.postprocess 配置项按类型构建额外的 Node。
//
//	filter.expr       config: {expr: "product.price < 500.0"}
//	filter.category   config: {categories: [c1, c2]}
//	filter.exclude    config: {ids: [p1, p2]}
//	rerank.diversity  config: {max_per_category: 2}
//	rerank.topn       config: {n: 5}
func DefaultNodeFactory() *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()
	factory.Register("filter.expr", buildExprNode)
	factory.Register("filter.category", buildCategoryNode)
	factory.Register("filter.exclude", buildExcludeNode)
	factory.Register("rerank.diversity", buildDiversityNode)
	factory.Register("rerank.topn", buildTopNNode)
	return factory
}

func buildExprNode(config map[string]any) (pipeline.Node, error) {
	expr := conv.ConfigGet(config, "expr", "")
	if expr == "" {
		return nil, fmt.Errorf("filter.expr: expr is required")
	}
	f, err := filter.NewExprFilter(expr)
	if err != nil {
		return nil, fmt.Errorf("filter.expr: %w", err)
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

func buildCategoryNode(config map[string]any) (pipeline.Node, error) {
	cats := conv.SliceAnyToString(config["categories"])
	if len(cats) == 0 {
		return nil, fmt.Errorf("filter.category: categories is required")
	}
	return &filter.FilterNode{Filters: []filter.Filter{&filter.CategoryFilter{Categories: cats}}}, nil
}

func buildExcludeNode(config map[string]any) (pipeline.Node, error) {
	ids := conv.SliceAnyToString(config["ids"])
	return &filter.FilterNode{Filters: []filter.Filter{filter.NewExcludeFilter(ids...)}}, nil
}

func buildDiversityNode(config map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{MaxPerCategory: int(conv.ConfigGetInt64(config, "max_per_category", 0))}, nil
}

func buildTopNNode(config map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(config, "n", 0))}, nil
}
