package recall

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rushteam/shoprec/core"
)

const (
	topCategoryCount = 3
	topTagCount      = 5
)

// ProfileBuilder 从用户自己的已完成订单推导偏好画像。
//
//	类目/标签：按订单行出现次数取 Top3 / Top5，次数相同按最近购买优先，再按 ID 升序
//	价格区间：订单行单价的 均值 ± 总体标准差，下限不小于 0
type ProfileBuilder struct {
	Reader core.CatalogReader
}

func NewProfileBuilder(reader core.CatalogReader) *ProfileBuilder {
	return &ProfileBuilder{Reader: reader}
}

// BuildProfile 返回用户画像；用户没有任何已完成订单时返回 nil, nil（冷启动）。
func (b *ProfileBuilder) BuildProfile(ctx context.Context, userID string) (*core.PreferenceProfile, error) {
	records, err := b.Reader.GetCompletedOrders(ctx, userID, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(records))
	purchased := make(map[string]struct{}, len(records))
	orders := make(map[string]struct{})
	for _, r := range records {
		orders[r.OrderID] = struct{}{}
		if _, ok := purchased[r.ProductID]; !ok {
			purchased[r.ProductID] = struct{}{}
			ids = append(ids, r.ProductID)
		}
	}
	products, err := b.Reader.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	cats := newTally()
	tags := newTally()
	prices := make([]float64, 0, len(records))
	// records 按最近优先排列，position 越小越近
	for pos, r := range records {
		prices = append(prices, r.UnitPrice)
		p, ok := products[r.ProductID]
		if !ok {
			continue
		}
		if p.CategoryID != "" {
			cats.add(p.CategoryID, pos)
		}
		for _, t := range p.Tags {
			tags.add(t, pos)
		}
	}

	return &core.PreferenceProfile{
		UserID:             userID,
		OrderCount:         len(orders),
		TopCategories:      cats.top(topCategoryCount),
		TopTags:            tags.top(topTagCount),
		PriceRange:         priceRange(prices),
		ExcludedProductIDs: purchased,
	}, nil
}

type tallyEntry struct {
	key    string
	count  int
	recent int // 第一次出现的位置（越小越近）
}

type tally struct {
	entries map[string]*tallyEntry
}

func newTally() *tally {
	return &tally{entries: make(map[string]*tallyEntry)}
}

func (t *tally) add(key string, pos int) {
	e, ok := t.entries[key]
	if !ok {
		e = &tallyEntry{key: key, recent: pos}
		t.entries[key] = e
	}
	e.count++
}

func (t *tally) top(n int) []string {
	list := make([]*tallyEntry, 0, len(t.entries))
	for _, e := range t.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		if list[i].recent != list[j].recent {
			return list[i].recent < list[j].recent
		}
		return list[i].key < list[j].key
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.key)
	}
	return out
}

// priceRange 计算 [max(0, mean-sd), mean+sd]，sd 为总体标准差。
func priceRange(prices []float64) core.PriceRange {
	if len(prices) == 0 {
		return core.PriceRange{}
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))
	var variance float64
	for _, p := range prices {
		d := p - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(prices)))
	return core.PriceRange{Min: math.Max(0, mean-sd), Max: mean + sd}
}
