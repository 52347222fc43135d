// Package fusion 把协同过滤与内容召回按位置加权融合成混合推荐。
package fusion

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// 融合权重
const (
	DefaultCollaborativeWeight = 0.6
	DefaultContentWeight       = 0.4
)

// Hybrid 是混合推荐：
//   - 无购买历史直接走热门兜底
//   - 协同与内容两路并发，各取 2×limit
//   - 位置加权融合（协同 0.6，内容 0.4），不在某一路中不扣分
//   - 置信度取两路中的较大值
type Hybrid struct {
	Profiles      *recall.ProfileBuilder
	Collaborative *recall.Collaborative
	Content       *recall.ContentBased
	Trending      *recall.Trending

	CollaborativeWeight float64
	ContentWeight       float64
	Timeout             time.Duration // 每一路的超时
}

// New 基于同一个 CatalogReader 构建各路召回。
func New(reader core.CatalogReader, cfg core.RecallConfig) *Hybrid {
	if cfg == nil {
		cfg = &core.DefaultRecallConfig{}
	}
	return &Hybrid{
		Profiles:            recall.NewProfileBuilder(reader),
		Collaborative:       recall.NewCollaborative(reader, cfg),
		Content:             recall.NewContentBased(reader),
		Trending:            recall.NewTrending(reader, cfg),
		CollaborativeWeight: DefaultCollaborativeWeight,
		ContentWeight:       DefaultContentWeight,
		Timeout:             cfg.DefaultTimeout(),
	}
}

func (h *Hybrid) Name() string { return core.AlgorithmHybrid }

// Recommend 为用户生成混合推荐。
// 无历史或两路都为空时返回热门兜底；两路都失败时返回错误。
func (h *Hybrid) Recommend(ctx context.Context, userID string, limit int, opts recall.Options) (*core.RecommendationResult, error) {
	profile, err := h.Profiles.BuildProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return h.Trending.Recommend(ctx, limit, opts.CategoryFilter, nil)
	}

	var collab, content *core.RecommendationResult
	fan := &recall.Fanout{
		Timeout: h.Timeout,
		Sources: []recall.Source{
			recall.SourceFunc{SourceName: core.AlgorithmCollaborative, Fn: func(ctx context.Context) ([]*core.ScoredProduct, error) {
				res, err := h.Collaborative.RecommendFor(ctx, profile, 2*limit, opts)
				if err != nil {
					return nil, err
				}
				collab = res
				return res.Products, nil
			}},
			recall.SourceFunc{SourceName: core.AlgorithmContent, Fn: func(ctx context.Context) ([]*core.ScoredProduct, error) {
				res, err := h.Content.RecommendFor(ctx, profile, 2*limit, opts)
				if err != nil {
					return nil, err
				}
				content = res
				return res.Products, nil
			}},
		},
	}
	results := fan.Run(ctx)
	if recall.AllFailed(results) {
		return nil, core.WrapDomainError(core.ModuleRecall, core.ErrorCodeUnavailable,
			"recall: collaborative and content paths failed", recall.FirstError(results))
	}

	products := rerank.Truncate(rerank.Merge(
		rerank.WeightedList{Name: core.AlgorithmCollaborative, Weight: h.CollaborativeWeight, Products: results[0].Products},
		rerank.WeightedList{Name: core.AlgorithmContent, Weight: h.ContentWeight, Products: results[1].Products},
	), limit)
	if len(products) == 0 {
		return h.Trending.Recommend(ctx, limit, opts.CategoryFilter, exclusions(profile, opts))
	}

	confidence := 0.0
	if results[0].Err == nil && collab != nil {
		confidence = math.Max(confidence, collab.Confidence)
	}
	if results[1].Err == nil && content != nil {
		confidence = math.Max(confidence, content.Confidence)
	}
	return &core.RecommendationResult{
		Products:   products,
		Algorithm:  core.AlgorithmHybrid,
		Confidence: core.ClampConfidence(confidence),
		Reason:     fmt.Sprintf("Blended from similar customers and your preferences (%d candidates)", len(products)),
	}, nil
}

func exclusions(profile *core.PreferenceProfile, opts recall.Options) map[string]struct{} {
	if opts.IncludePurchased || profile == nil {
		return nil
	}
	return profile.ExcludedProductIDs
}
