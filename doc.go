// Package shoprec 是电商商品推荐服务。
//
// 设计要点：
// - 策略分发：HYBRID / COLLABORATIVE / CONTENT / ITEM_BASED / TRENDING 由 resolver 统一编排
// - 永不失败：个性化路径出错或无信号时降级为热门商品，只有非法请求会返回错误
// - Labels 透传：每个推荐商品记录来自哪些召回列表，便于 explain / 观测
// - 后处理可配置：过滤、多样性、截断都是 pipeline.Node，可通过配置追加
package shoprec

import (
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/resolver"
)

// 轻量 facade：便于直接 import "shoprec" 使用核心类型。
type (
	Resolver              = resolver.Resolver
	RecommendationRequest = core.RecommendationRequest
	RecommendationResult  = core.RecommendationResult
	ScoredProduct         = core.ScoredProduct
)

var NewResolver = resolver.New

const (
	StrategyHybrid        = core.StrategyHybrid
	StrategyCollaborative = core.StrategyCollaborative
	StrategyContent       = core.StrategyContent
	StrategyItemBased     = core.StrategyItemBased
	StrategyTrending      = core.StrategyTrending
)
