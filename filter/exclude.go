package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// ExcludeFilter 过滤指定 ID 的商品（主体商品本身、用户已购商品等）。
type ExcludeFilter struct {
	IDs map[string]struct{}
}

// NewExcludeFilter 创建排除过滤器。
func NewExcludeFilter(ids ...string) *ExcludeFilter {
	f := &ExcludeFilter{IDs: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		f.IDs[id] = struct{}{}
	}
	return f
}

// Add 追加需要排除的 ID。
func (f *ExcludeFilter) Add(ids map[string]struct{}) *ExcludeFilter {
	for id := range ids {
		f.IDs[id] = struct{}{}
	}
	return f
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

func (f *ExcludeFilter) ShouldFilter(_ context.Context, _ *core.RecommendationRequest, p *core.ScoredProduct) (bool, error) {
	_, ok := f.IDs[p.ID]
	return ok, nil
}

// SubjectFilter 过滤 PRODUCT 请求中的主体商品本身。
type SubjectFilter struct{}

func (SubjectFilter) Name() string { return "filter.subject" }

func (SubjectFilter) ShouldFilter(_ context.Context, req *core.RecommendationRequest, p *core.ScoredProduct) (bool, error) {
	return req != nil && req.SubjectType == core.SubjectProduct && p.ID == req.SubjectID, nil
}
