package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// CategoryFilter 只保留请求 CategoryFilter 中的类目；请求未设置类目时不过滤。
// Categories 非空时优先使用固定类目（配置场景）。
type CategoryFilter struct {
	Categories []string
}

func (f *CategoryFilter) Name() string {
	return "filter.category"
}

func (f *CategoryFilter) ShouldFilter(_ context.Context, req *core.RecommendationRequest, p *core.ScoredProduct) (bool, error) {
	allowed := core.StringSet(f.Categories)
	if allowed == nil && req != nil {
		allowed = req.CategorySet()
	}
	if allowed == nil {
		return false, nil
	}
	_, ok := allowed[p.CategoryID]
	return !ok, nil
}

// ActiveFilter 过滤非在售商品。
type ActiveFilter struct{}

func (ActiveFilter) Name() string { return "filter.active" }

func (ActiveFilter) ShouldFilter(_ context.Context, _ *core.RecommendationRequest, p *core.ScoredProduct) (bool, error) {
	return !p.IsActive(), nil
}
