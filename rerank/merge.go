package rerank

import (
	"sort"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

// WeightedList 是一个带权重的有序候选列表（排名靠前的在前）。
type WeightedList struct {
	Name     string
	Weight   float64
	Products []*core.ScoredProduct
}

// Merge 按位置加权合并多个候选列表。
//
// 列表中第 i 个商品得分 (len - i) × weight，同一商品在各列表中的得分相加；
// 不在某个列表中不扣分。结果按分数降序、ID 升序排列，商品属性取首次出现的那一份。
//
//	co_bought [A,B,C] ×0.4 + same_category [B,D] ×0.3
//	=> B 1.4, A 1.2, C 0.4, D 0.3
func Merge(lists ...WeightedList) []*core.ScoredProduct {
	merged := make(map[string]*core.ScoredProduct)
	order := make([]string, 0)
	for _, l := range lists {
		n := len(l.Products)
		for i, p := range l.Products {
			if p == nil {
				continue
			}
			points := float64(n-i) * l.Weight
			sp, ok := merged[p.ID]
			if !ok {
				sp = core.NewScoredProduct(p.ProductRef, 0)
				merged[p.ID] = sp
				order = append(order, p.ID)
			}
			for k, v := range p.Labels {
				// 来源与位置由列表名重新生成
				if l.Name != "" && (k == utils.LabelRecallSource || k == utils.LabelListRank) {
					continue
				}
				sp.PutLabel(k, v)
			}
			sp.RecommendationScore += points
			if l.Name != "" {
				sp.PutLabel(utils.LabelRecallSource, utils.RecallLabel(l.Name))
				sp.PutLabel(utils.LabelListRank, utils.RankLabel(l.Name, i))
			}
		}
	}

	out := make([]*core.ScoredProduct, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	SortByScore(out)
	return out
}

// SortByScore 按推荐分降序排序，分数相同按 ID 升序，保证结果确定。
func SortByScore(products []*core.ScoredProduct) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].RecommendationScore != products[j].RecommendationScore {
			return products[i].RecommendationScore > products[j].RecommendationScore
		}
		return products[i].ID < products[j].ID
	})
}

// StableSortByScore 按推荐分降序稳定排序，分数相同时保持原有顺序（保留引擎自己的次级排序）。
func StableSortByScore(products []*core.ScoredProduct) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].RecommendationScore > products[j].RecommendationScore
	})
}

// Dedup 按 ID 去重，保留第一次出现的商品并合并后续同 ID 商品的 labels。
func Dedup(products []*core.ScoredProduct) []*core.ScoredProduct {
	seen := make(map[string]*core.ScoredProduct, len(products))
	out := make([]*core.ScoredProduct, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		if old, ok := seen[p.ID]; ok {
			for k, v := range p.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[p.ID] = p
		out = append(out, p)
	}
	return out
}

// Truncate 截取前 n 个，n <= 0 时不截断。
func Truncate(products []*core.ScoredProduct, n int) []*core.ScoredProduct {
	if n <= 0 || len(products) <= n {
		return products
	}
	return products[:n]
}
