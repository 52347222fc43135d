package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// BlacklistFilter 是运营黑名单过滤器，过滤掉黑名单中的商品。
type BlacklistFilter struct {
	// ProductIDs 是内存中的黑名单商品 ID 列表
	ProductIDs []string

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单商品 ID 列表
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(productIDs []string, storeAdapter *StoreAdapter, key string) *BlacklistFilter {
	var store BlacklistStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &BlacklistFilter{
		ProductIDs: productIDs,
		Store:      store,
		Key:        key,
	}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendationRequest,
	p *core.ScoredProduct,
) (bool, error) {
	for _, id := range f.ProductIDs {
		if p.ID == id {
			return true, nil
		}
	}

	if f.Store != nil && f.Key != "" {
		blacklist, err := f.Store.GetBlacklist(ctx, f.Key)
		if err != nil {
			if core.IsStoreNotFound(err) {
				return false, nil
			}
			return false, err
		}
		for _, id := range blacklist {
			if p.ID == id {
				return true, nil
			}
		}
	}
	return false, nil
}
