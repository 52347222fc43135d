package core

// PriceRange 是价格区间 [Min, Max]。
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains 判断价格是否落在区间内（闭区间）。
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

// PreferenceProfile 是用户偏好画像，每次请求从用户自己的已完成订单推导，不持久化。
//
//	维度            作用
//	TopCategories  内容召回的类目来源（≤3）
//	TopTags        内容召回的标签来源（≤5）
//	PriceRange     候选价格约束（均值 ± 标准差）
//	Excluded       已购商品，默认从结果中排除
type PreferenceProfile struct {
	UserID             string              `json:"user_id"`
	OrderCount         int                 `json:"order_count"`
	TopCategories      []string            `json:"top_categories"`
	TopTags            []string            `json:"top_tags"`
	PriceRange         PriceRange          `json:"price_range"`
	ExcludedProductIDs map[string]struct{} `json:"-"`
}

// CategoryRank 返回类目在 TopCategories 中的位置，不存在返回 -1。
func (p *PreferenceProfile) CategoryRank(categoryID string) int {
	for i, c := range p.TopCategories {
		if c == categoryID {
			return i
		}
	}
	return -1
}

// TagRank 返回标签在 TopTags 中的位置，不存在返回 -1。
func (p *PreferenceProfile) TagRank(tag string) int {
	for i, t := range p.TopTags {
		if t == tag {
			return i
		}
	}
	return -1
}

// HasPurchased 判断用户是否买过该商品。
func (p *PreferenceProfile) HasPurchased(productID string) bool {
	_, ok := p.ExcludedProductIDs[productID]
	return ok
}
