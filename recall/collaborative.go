package recall

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
)

// SimilarUser 是一个相似用户及其 Jaccard 相似度。
type SimilarUser struct {
	UserID     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`

	// Purchased 是该用户买过的商品，协同召回直接复用
	Purchased map[string]struct{} `json:"-"`
}

// SimilarityEngine 是基于用户的协同过滤（User-CF）相似度计算。
//
// 算法流程：
//  1. 候选用户池限定为与目标用户至少共同购买过一个商品的用户
//  2. 并发读取每个候选用户的已购集合，计算 Jaccard 相似度
//  3. 丢弃相似度 <= MinSimilarity 的用户，降序取 TopK（相同相似度按用户 ID 升序）
type SimilarityEngine struct {
	Reader core.CatalogReader

	// TopK 最多保留的相似用户数
	TopK int

	// MinSimilarity 相似度阈值（不含）
	MinSimilarity float64

	// MaxConcurrent 并发读取候选用户的上限（0 表示 8）
	MaxConcurrent int
}

// NewSimilarityEngine 使用 RecallConfig 中的默认值创建相似度引擎。
func NewSimilarityEngine(reader core.CatalogReader, cfg core.RecallConfig) *SimilarityEngine {
	if cfg == nil {
		cfg = &core.DefaultRecallConfig{}
	}
	return &SimilarityEngine{
		Reader:        reader,
		TopK:          cfg.DefaultTopKSimilarUsers(),
		MinSimilarity: cfg.DefaultMinSimilarity(),
	}
}

// Jaccard 返回两个集合的 Jaccard 指数 |A∩B| / |A∪B|，两个空集返回 0。
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// FindSimilarUsers 返回与 userID 最相似的用户。purchased 是目标用户的已购集合。
func (e *SimilarityEngine) FindSimilarUsers(ctx context.Context, userID string, purchased map[string]struct{}) ([]SimilarUser, error) {
	if len(purchased) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(purchased))
	for id := range purchased {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	candidates, err := e.Reader.GetUsersWhoBought(ctx, ids)
	if err != nil {
		return nil, err
	}

	limit := e.MaxConcurrent
	if limit <= 0 {
		limit = 8
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	var (
		mu      sync.Mutex
		similar []SimilarUser
	)
	for _, cand := range candidates {
		if cand == userID {
			continue
		}
		cand := cand
		eg.Go(func() error {
			records, err := e.Reader.GetCompletedOrders(egCtx, cand, time.Time{})
			if err != nil {
				return fmt.Errorf("orders of %s: %w", cand, err)
			}
			theirs := make(map[string]struct{}, len(records))
			for _, r := range records {
				theirs[r.ProductID] = struct{}{}
			}
			sim := Jaccard(purchased, theirs)
			if sim <= e.MinSimilarity {
				return nil
			}
			mu.Lock()
			similar = append(similar, SimilarUser{UserID: cand, Similarity: sim, Purchased: theirs})
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(similar, func(i, j int) bool {
		if similar[i].Similarity != similar[j].Similarity {
			return similar[i].Similarity > similar[j].Similarity
		}
		return similar[i].UserID < similar[j].UserID
	})
	if e.TopK > 0 && len(similar) > e.TopK {
		similar = similar[:e.TopK]
	}
	return similar, nil
}

// Collaborative 是协同过滤召回：推荐相似用户买过的商品。
// 商品得分为买过它的相似用户的相似度之和；
// 置信度 = min(n/limit, 1) × 最大相似度 × 100。
type Collaborative struct {
	Reader     core.CatalogReader
	Profiles   *ProfileBuilder
	Similarity *SimilarityEngine
}

func NewCollaborative(reader core.CatalogReader, cfg core.RecallConfig) *Collaborative {
	return &Collaborative{
		Reader:     reader,
		Profiles:   NewProfileBuilder(reader),
		Similarity: NewSimilarityEngine(reader, cfg),
	}
}

func (c *Collaborative) Name() string { return core.AlgorithmCollaborative }

// Recommend 为用户生成协同过滤推荐。无历史或无相似用户时返回空结果（由调用方决定是否降级）。
func (c *Collaborative) Recommend(ctx context.Context, userID string, limit int, opts Options) (*core.RecommendationResult, error) {
	profile, err := c.Profiles.BuildProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.RecommendFor(ctx, profile, limit, opts)
}

// RecommendFor 基于已构建的画像生成推荐。
func (c *Collaborative) RecommendFor(ctx context.Context, profile *core.PreferenceProfile, limit int, opts Options) (*core.RecommendationResult, error) {
	result := &core.RecommendationResult{
		Products:  []*core.ScoredProduct{},
		Algorithm: core.AlgorithmCollaborative,
		Reason:    "No similar customers found",
	}
	if profile == nil {
		result.Reason = "No purchase history"
		return result, nil
	}

	similar, err := c.Similarity.FindSimilarUsers(ctx, profile.UserID, profile.ExcludedProductIDs)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return result, nil
	}

	scores := make(map[string]float64)
	maxSim := 0.0
	for _, su := range similar {
		if su.Similarity > maxSim {
			maxSim = su.Similarity
		}
		for id := range su.Purchased {
			if !opts.IncludePurchased && profile.HasPurchased(id) {
				continue
			}
			scores[id] += su.Similarity
		}
	}
	if len(scores) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	products, err := c.Reader.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	cats := core.StringSet(opts.CategoryFilter)
	candidates := make([]*core.ScoredProduct, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok || !p.IsActive() || !passesCategory(cats, p.CategoryID) {
			continue
		}
		candidates = append(candidates, core.NewScoredProduct(p, scores[id]))
	}
	candidates = sortAndTruncate(candidates, limit)

	result.Products = candidates
	result.Confidence = core.ClampConfidence(coverage(len(candidates), limit) * maxSim * 100)
	result.Reason = fmt.Sprintf("Customers with similar purchases also bought these (%d similar customers)", len(similar))
	return result, nil
}
