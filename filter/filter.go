// Package filter 提供后处理阶段的候选过滤器与 FilterNode。
package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Filter 是过滤器的抽象接口，用于判断一个商品是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 product 是否应该被过滤
	ShouldFilter(ctx context.Context, req *core.RecommendationRequest, product *core.ScoredProduct) (bool, error)
}
