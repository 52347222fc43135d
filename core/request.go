package core

import (
	"sort"
	"strconv"
	"strings"
)

// SubjectType 是推荐主体类型：为用户推荐或为商品找相关商品。
type SubjectType string

const (
	SubjectUser    SubjectType = "USER"
	SubjectProduct SubjectType = "PRODUCT"
)

// Strategy 是推荐策略。
type Strategy string

const (
	StrategyHybrid        Strategy = "HYBRID"
	StrategyCollaborative Strategy = "COLLABORATIVE"
	StrategyContent       Strategy = "CONTENT"
	StrategyItemBased     Strategy = "ITEM_BASED"
	StrategyTrending      Strategy = "TRENDING"
)

// DefaultLimit 是未指定 limit 时的结果数量。
const DefaultLimit = 10

// 结果中的算法标签
const (
	AlgorithmHybrid        = "hybrid"
	AlgorithmCollaborative = "collaborative"
	AlgorithmContent       = "content-based"
	AlgorithmItemBased     = "item-based"
	AlgorithmTrending      = "trending"
)

// RecommendationRequest 是推荐请求。
// Limit 为 0 表示未指定，由 Resolver 补默认值；负数为非法请求。
type RecommendationRequest struct {
	SubjectType              SubjectType `json:"subject_type" validate:"required,oneof=USER PRODUCT"`
	SubjectID                string      `json:"subject_id" validate:"required"`
	Strategy                 Strategy    `json:"strategy" validate:"required,oneof=HYBRID COLLABORATIVE CONTENT ITEM_BASED TRENDING"`
	Limit                    int         `json:"limit" validate:"min=1"`
	IncludeAlreadyInteracted bool        `json:"include_already_interacted"`
	CategoryFilter           []string    `json:"category_filter,omitempty" validate:"dive,required"`
}

// CacheKey 返回请求的缓存 key。
// 由 strategy / subject / limit / includeAlreadyInteracted 组成，
// 同时带上主体类型与排序后的类目过滤，避免不同过滤条件互相命中。
func (r *RecommendationRequest) CacheKey(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(":")
	b.WriteString(string(r.Strategy))
	b.WriteString(":")
	b.WriteString(string(r.SubjectType))
	b.WriteString(":")
	b.WriteString(r.SubjectID)
	b.WriteString(":")
	b.WriteString(strconv.Itoa(r.Limit))
	b.WriteString(":")
	b.WriteString(strconv.FormatBool(r.IncludeAlreadyInteracted))
	if len(r.CategoryFilter) > 0 {
		cats := append([]string(nil), r.CategoryFilter...)
		sort.Strings(cats)
		b.WriteString(":")
		b.WriteString(strings.Join(cats, ","))
	}
	return b.String()
}

// CategorySet 把类目过滤转为集合，未设置时返回 nil。
func (r *RecommendationRequest) CategorySet() map[string]struct{} {
	return StringSet(r.CategoryFilter)
}

// RecommendationResult 是推荐结果。
// Products 按 RecommendationScore 降序，长度不超过 limit，且不含重复 ID。
type RecommendationResult struct {
	Products   []*ScoredProduct `json:"products"`
	Algorithm  string           `json:"algorithm"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
}

// ProductIDs 返回结果中的商品 ID（保持顺序）。
func (r *RecommendationResult) ProductIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Products))
	for _, p := range r.Products {
		ids = append(ids, p.ID)
	}
	return ids
}

// ClampConfidence 把置信度限制在 [0, 100]。
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0 || c != c:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}

// StringSet 把字符串切片转为集合，空切片返回 nil。
func StringSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
