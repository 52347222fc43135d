package recall

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/rerank"
)

// Source 表示一个候选列表来源（共购/同类目/标签重叠/价格带/协同/内容...）。
// 返回的列表是有序的：排在前面的更相关。
type Source interface {
	Name() string
	Recall(ctx context.Context) ([]*core.ScoredProduct, error)
}

// SourceFunc 把一个函数包装成 Source。
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context) ([]*core.ScoredProduct, error)
}

func (s SourceFunc) Name() string { return s.SourceName }

func (s SourceFunc) Recall(ctx context.Context) ([]*core.ScoredProduct, error) {
	return s.Fn(ctx)
}

// Options 是个性化召回的公共参数。
type Options struct {
	IncludePurchased bool
	CategoryFilter   []string
}

// passesCategory 判断商品是否满足类目过滤（未设置时都满足）。
func passesCategory(cats map[string]struct{}, categoryID string) bool {
	if cats == nil {
		return true
	}
	_, ok := cats[categoryID]
	return ok
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// coverage 是 min(n/limit, 1)。
func coverage(n, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return minFloat(float64(n)/float64(limit), 1)
}

// sortAndTruncate 按分数降序（ID 升序）排序并截取前 limit 个。
func sortAndTruncate(products []*core.ScoredProduct, limit int) []*core.ScoredProduct {
	rerank.SortByScore(products)
	return rerank.Truncate(products, limit)
}
