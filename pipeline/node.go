package pipeline

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindFilter      Kind = "filter"      // 过滤阶段：剔除不符合约束的候选
	KindReRank      Kind = "rerank"      // 重排阶段：去重/排序/截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：最终结果修饰
)

// Node 是后处理 Pipeline 的最小可扩展单元。
// 统一采用"输入 products -> 输出 products"的形态，Filter 剔除、ReRank 重排/截断。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		req *core.RecommendationRequest,
		products []*core.ScoredProduct,
	) ([]*core.ScoredProduct, error)
}
