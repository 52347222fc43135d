package recall

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/shoprec/core"
)

// ContentBased 是基于内容的召回：从用户偏好的类目与标签出发，限定在偏好价格区间内。
//
//	score = 类目亲和 (3 - rank) / 3 + Σ 标签亲和 (5 - rank) / 5
//	confidence = min(n/limit, 1) × min(orderCount/5, 1) × 100
type ContentBased struct {
	Reader   core.CatalogReader
	Profiles *ProfileBuilder
}

func NewContentBased(reader core.CatalogReader) *ContentBased {
	return &ContentBased{Reader: reader, Profiles: NewProfileBuilder(reader)}
}

func (c *ContentBased) Name() string { return core.AlgorithmContent }

// Recommend 为用户生成内容推荐。无历史时返回空结果。
func (c *ContentBased) Recommend(ctx context.Context, userID string, limit int, opts Options) (*core.RecommendationResult, error) {
	profile, err := c.Profiles.BuildProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.RecommendFor(ctx, profile, limit, opts)
}

// RecommendFor 基于已构建的画像生成推荐。
func (c *ContentBased) RecommendFor(ctx context.Context, profile *core.PreferenceProfile, limit int, opts Options) (*core.RecommendationResult, error) {
	result := &core.RecommendationResult{
		Products:  []*core.ScoredProduct{},
		Algorithm: core.AlgorithmContent,
		Reason:    "No matching products for your preferences",
	}
	if profile == nil {
		result.Reason = "No purchase history"
		return result, nil
	}

	pool := make(map[string]core.ProductRef)
	for _, cat := range profile.TopCategories {
		products, err := c.Reader.GetProductsByCategory(ctx, cat)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			pool[p.ID] = p
		}
	}
	if len(profile.TopTags) > 0 {
		products, err := c.Reader.GetProductsByTagOverlap(ctx, profile.TopTags)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			pool[p.ID] = p
		}
	}

	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cats := core.StringSet(opts.CategoryFilter)
	candidates := make([]*core.ScoredProduct, 0, len(ids))
	for _, id := range ids {
		p := pool[id]
		if !p.IsActive() || !profile.PriceRange.Contains(p.Price) || !passesCategory(cats, p.CategoryID) {
			continue
		}
		if !opts.IncludePurchased && profile.HasPurchased(id) {
			continue
		}
		score := contentScore(profile, &p)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, core.NewScoredProduct(p, score))
	}
	candidates = sortAndTruncate(candidates, limit)

	result.Products = candidates
	result.Confidence = core.ClampConfidence(coverage(len(candidates), limit) * minFloat(float64(profile.OrderCount)/5, 1) * 100)
	if len(candidates) > 0 {
		result.Reason = fmt.Sprintf("Based on your interest in %d categories and %d tags", len(profile.TopCategories), len(profile.TopTags))
	}
	return result, nil
}

func contentScore(profile *core.PreferenceProfile, p *core.ProductRef) float64 {
	var score float64
	if rank := profile.CategoryRank(p.CategoryID); rank >= 0 {
		score += float64(topCategoryCount-rank) / topCategoryCount
	}
	for _, t := range p.Tags {
		if rank := profile.TagRank(t); rank >= 0 {
			score += float64(topTagCount-rank) / topTagCount
		}
	}
	return score
}
