// Package resolver 是推荐编排层：校验 → 缓存 → 策略分发 → 后处理 → 写缓存。
//
// 对结构合法的请求，Resolve 总会返回一个 RecommendationResult：
// 非热门策略的任何失败都会降级为热门兜底，热门也失败时返回置信度为 0 的空结果。
// 唯一返回给调用方的错误是 INVALID_INPUT。
package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/fusion"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// DefaultKeyPrefix 是推荐结果缓存 key 的前缀。
const DefaultKeyPrefix = "recommendations"

// Resolver 编排各召回引擎。无状态，可并发使用；缓存是唯一的共享可变资源。
type Resolver struct {
	reader core.CatalogReader
	cache  core.Store

	profiles      *recall.ProfileBuilder
	collaborative *recall.Collaborative
	content       *recall.ContentBased
	itemBased     *recall.ItemBased
	trending      *recall.Trending
	hybrid        *fusion.Hybrid

	post *pipeline.Pipeline

	keyPrefix    string
	cacheTTL     int
	timeout      time.Duration
	defaultLimit int
}

type settings struct {
	keyPrefix     string
	cacheTTL      int
	timeout       time.Duration
	defaultLimit  int
	candidateRule string
	blacklist     []string
	blacklistKey  string
	recallCfg     core.RecallConfig
	filters       []filter.Filter
	nodes         []pipeline.Node
	now           func() time.Time

	collaborativeWeight, contentWeight float64
}

// Option 配置 Resolver。
type Option func(*settings)

// WithCacheTTL 设置缓存 TTL（秒）。缓存只按 TTL 过期，商品或订单变更不会使其失效。
func WithCacheTTL(seconds int) Option {
	return func(s *settings) { s.cacheTTL = seconds }
}

// WithKeyPrefix 设置缓存 key 前缀。
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) { s.keyPrefix = prefix }
}

// WithTimeout 设置单次分发的超时（作用于所有 catalog 读取）。
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithDefaultLimit 设置未指定 limit 时的结果数量。
func WithDefaultLimit(n int) Option {
	return func(s *settings) { s.defaultLimit = n }
}

// WithCandidateRule 设置 CEL 候选规则，结果中的每个商品都必须满足该规则。
func WithCandidateRule(expr string) Option {
	return func(s *settings) { s.candidateRule = expr }
}

// WithBlacklist 设置运营黑名单：ids 为固定列表，key 非空时还会从缓存 Store 中读取
// JSON 数组形式的黑名单（运行时可更新）。
func WithBlacklist(ids []string, key string) Option {
	return func(s *settings) {
		s.blacklist = ids
		s.blacklistKey = key
	}
}

// WithRecallConfig 设置召回参数（相似用户数、相似度阈值、热门窗口、单源超时）。
func WithRecallConfig(cfg core.RecallConfig) Option {
	return func(s *settings) { s.recallCfg = cfg }
}

// WithFilters 追加后处理过滤器（如运营黑名单）。
func WithFilters(filters ...filter.Filter) Option {
	return func(s *settings) { s.filters = append(s.filters, filters...) }
}

// WithNodes 追加后处理 Node，位于过滤之后、排序截断之前。
func WithNodes(nodes ...pipeline.Node) Option {
	return func(s *settings) { s.nodes = append(s.nodes, nodes...) }
}

// WithFusionWeights 设置混合推荐中协同与内容两路的权重。
func WithFusionWeights(collaborative, content float64) Option {
	return func(s *settings) {
		s.collaborativeWeight = collaborative
		s.contentWeight = content
	}
}

// WithClock 替换热门窗口使用的时钟（测试用）。
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// New 创建 Resolver。reader 通常是 catalog.BreakerReader，cache 可以为 nil（不缓存）。
func New(reader core.CatalogReader, cache core.Store, opts ...Option) (*Resolver, error) {
	if reader == nil {
		return nil, fmt.Errorf("resolver: catalog reader is required")
	}
	s := settings{
		keyPrefix:    DefaultKeyPrefix,
		cacheTTL:     core.DefaultCacheTTLSeconds,
		timeout:      5 * time.Second,
		defaultLimit: core.DefaultLimit,
		recallCfg:    &core.DefaultRecallConfig{},
	}
	for _, opt := range opts {
		opt(&s)
	}

	filters := []filter.Filter{filter.ActiveFilter{}, filter.SubjectFilter{}, &filter.CategoryFilter{}}
	if s.candidateRule != "" {
		rule, err := filter.NewExprFilter(s.candidateRule)
		if err != nil {
			return nil, fmt.Errorf("resolver: candidate rule: %w", err)
		}
		filters = append(filters, rule)
	}
	if len(s.blacklist) > 0 || s.blacklistKey != "" {
		var adapter *filter.StoreAdapter
		if cache != nil && s.blacklistKey != "" {
			adapter = filter.NewStoreAdapter(cache)
		}
		filters = append(filters, filter.NewBlacklistFilter(s.blacklist, adapter, s.blacklistKey))
	}
	filters = append(filters, s.filters...)

	nodes := []pipeline.Node{&filter.FilterNode{Filters: filters}}
	nodes = append(nodes, s.nodes...)
	nodes = append(nodes, &rerank.SortNode{}, &rerank.TopNNode{})

	r := &Resolver{
		reader:        reader,
		cache:         cache,
		profiles:      recall.NewProfileBuilder(reader),
		collaborative: recall.NewCollaborative(reader, s.recallCfg),
		content:       recall.NewContentBased(reader),
		itemBased:     recall.NewItemBased(reader, s.recallCfg),
		trending:      recall.NewTrending(reader, s.recallCfg),
		hybrid:        fusion.New(reader, s.recallCfg),
		post:          &pipeline.Pipeline{Nodes: nodes},
		keyPrefix:     s.keyPrefix,
		cacheTTL:      s.cacheTTL,
		timeout:       s.timeout,
		defaultLimit:  s.defaultLimit,
	}
	if s.now != nil {
		r.trending.Now = s.now
	}
	r.hybrid.Trending = r.trending
	if s.collaborativeWeight > 0 || s.contentWeight > 0 {
		r.hybrid.CollaborativeWeight = s.collaborativeWeight
		r.hybrid.ContentWeight = s.contentWeight
	}
	return r, nil
}

// Resolve 为请求生成推荐结果。
func (r *Resolver) Resolve(ctx context.Context, req *core.RecommendationRequest) (*core.RecommendationResult, error) {
	start := time.Now()
	req = normalize(req, r.defaultLimit)
	if err := Validate(req); err != nil {
		metrics.ValidationErrors.Inc()
		logging.Ctx(ctx).Debug().Err(err).Msg("invalid recommendation request")
		return nil, err
	}
	log := logging.Ctx(ctx).With().
		Str("strategy", string(req.Strategy)).
		Str("subject_type", string(req.SubjectType)).
		Str("subject_id", req.SubjectID).
		Int("limit", req.Limit).
		Logger()

	key := req.CacheKey(r.keyPrefix)
	if cached, ok := r.lookup(ctx, key); ok {
		metrics.RecordResolve(string(req.Strategy), cached.Algorithm, time.Since(start))
		log.Debug().Str("algorithm", cached.Algorithm).Msg("recommendations served from cache")
		return cached, nil
	}

	result, err := r.compute(ctx, req)
	if err != nil {
		metrics.RecordDegradation(string(req.Strategy), reason(err))
		log.Warn().Err(err).Msg("strategy failed, degrading to trending")
		result = r.degrade(ctx, req)
	} else {
		r.store(ctx, key, result)
	}

	metrics.RecordResolve(string(req.Strategy), result.Algorithm, time.Since(start))
	log.Debug().
		Str("algorithm", result.Algorithm).
		Int("count", len(result.Products)).
		Float64("confidence", result.Confidence).
		Dur("took", time.Since(start)).
		Msg("recommendations resolved")
	return result, nil
}

// compute 执行策略分发与后处理，受 r.timeout 约束。
func (r *Resolver) compute(ctx context.Context, req *core.RecommendationRequest) (*core.RecommendationResult, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.finish(ctx, req, result)
}

func (r *Resolver) dispatch(ctx context.Context, req *core.RecommendationRequest) (*core.RecommendationResult, error) {
	opts := recall.Options{
		IncludePurchased: req.IncludeAlreadyInteracted,
		CategoryFilter:   req.CategoryFilter,
	}
	switch req.Strategy {
	case core.StrategyTrending:
		return r.trending.Recommend(ctx, req.Limit, req.CategoryFilter, nil)
	case core.StrategyItemBased:
		if req.SubjectType == core.SubjectUser {
			return r.itemBasedForUser(ctx, req)
		}
		return r.itemBased.Recommend(ctx, req.SubjectID, req.Limit)
	case core.StrategyCollaborative, core.StrategyContent:
		return r.personalized(ctx, req, opts)
	default:
		return r.hybrid.Recommend(ctx, req.SubjectID, req.Limit, opts)
	}
}

// personalized 执行单路协同 / 内容召回；无历史或结果为空时回退到热门。
func (r *Resolver) personalized(ctx context.Context, req *core.RecommendationRequest, opts recall.Options) (*core.RecommendationResult, error) {
	profile, err := r.profiles.BuildProfile(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}

	var result *core.RecommendationResult
	if req.Strategy == core.StrategyCollaborative {
		result, err = r.collaborative.RecommendFor(ctx, profile, req.Limit, opts)
	} else {
		result, err = r.content.RecommendFor(ctx, profile, req.Limit, opts)
	}
	if err != nil {
		return nil, err
	}
	if len(result.Products) > 0 {
		return result, nil
	}

	var exclude map[string]struct{}
	if profile != nil && !opts.IncludePurchased {
		exclude = profile.ExcludedProductIDs
	}
	return r.trending.Recommend(ctx, req.Limit, req.CategoryFilter, exclude)
}

// itemBasedForUser 以用户最近购买的商品为种子做相关商品推荐；无历史时回退到热门。
func (r *Resolver) itemBasedForUser(ctx context.Context, req *core.RecommendationRequest) (*core.RecommendationResult, error) {
	orders, err := r.reader.GetCompletedOrders(ctx, req.SubjectID, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return r.trending.Recommend(ctx, req.Limit, req.CategoryFilter, nil)
	}

	if req.IncludeAlreadyInteracted {
		return r.itemBased.Recommend(ctx, orders[0].ProductID, req.Limit)
	}
	purchased := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		purchased[o.ProductID] = struct{}{}
	}
	// 多取已购数量的候选，排除已购后仍能凑满 limit
	result, err := r.itemBased.Recommend(ctx, orders[0].ProductID, req.Limit+len(purchased))
	if err != nil {
		return nil, err
	}
	kept := make([]*core.ScoredProduct, 0, len(result.Products))
	for _, p := range result.Products {
		if _, ok := purchased[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	result.Products = rerank.Truncate(kept, req.Limit)
	return result, nil
}

// degrade 在策略失败后用新的超时重新走热门兜底，结果不写缓存。
func (r *Resolver) degrade(ctx context.Context, req *core.RecommendationRequest) *core.RecommendationResult {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.trending.Recommend(ctx, req.Limit, req.CategoryFilter, nil)
	if err == nil {
		result, err = r.finish(ctx, req, result)
	}
	if err != nil {
		metrics.RecordDegradation(string(core.StrategyTrending), reason(err))
		logging.Ctx(ctx).Error().Err(err).Str("subject_id", req.SubjectID).Msg("trending fallback failed, returning empty result")
		return &core.RecommendationResult{
			Products:   []*core.ScoredProduct{},
			Algorithm:  core.AlgorithmTrending,
			Confidence: 0,
			Reason:     "Recommendations are temporarily unavailable",
		}
	}
	return result
}

// finish 执行后处理 pipeline：过滤 → 额外 Node → 去重排序 → Top-N → 置信度截断。
// item-based 的置信度按过滤后的商品数重新计算。
func (r *Resolver) finish(ctx context.Context, req *core.RecommendationRequest, result *core.RecommendationResult) (*core.RecommendationResult, error) {
	products, err := r.post.Run(ctx, req, result.Products)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []*core.ScoredProduct{}
	}
	confidence := result.Confidence
	if result.Algorithm == core.AlgorithmItemBased && req.Limit > 0 {
		// 相关商品的置信度按过滤后的实际数量计算
		confidence = math.Min(float64(len(products))/float64(req.Limit), 1) * 100
	}
	return &core.RecommendationResult{
		Products:   products,
		Algorithm:  result.Algorithm,
		Confidence: core.ClampConfidence(confidence),
		Reason:     result.Reason,
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, key string) (*core.RecommendationResult, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if !core.IsStoreNotFound(err) {
			metrics.CacheErrors.WithLabelValues("get").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		metrics.RecordCache(false)
		return nil, false
	}
	var result core.RecommendationResult
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache entry is corrupt, ignoring")
		metrics.RecordCache(false)
		return nil, false
	}
	if result.Products == nil {
		result.Products = []*core.ScoredProduct{}
	}
	metrics.RecordCache(true)
	return &result, true
}

func (r *Resolver) store(ctx context.Context, key string, result *core.RecommendationResult) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("encode").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := r.cache.Set(ctx, key, data, r.cacheTTL); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// reason 把错误归类为降级原因（用于 metrics label）。
func reason(err error) string {
	switch {
	case core.IsUnavailable(err):
		return "unavailable"
	case core.IsNotFound(err):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
