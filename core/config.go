package core

import "time"

// RecallConfig 是召回相关的配置接口，用于提供默认值。
type RecallConfig interface {
	// DefaultTopKSimilarUsers 返回默认的 TopK 相似用户数
	DefaultTopKSimilarUsers() int

	// DefaultMinSimilarity 返回默认的最小 Jaccard 相似度（不含）
	DefaultMinSimilarity() float64

	// DefaultTrendingWindow 返回热门统计的时间窗口
	DefaultTrendingWindow() time.Duration

	// DefaultTimeout 返回默认的单源超时时间
	DefaultTimeout() time.Duration
}

// DefaultRecallConfig 是默认的召回配置实现。
type DefaultRecallConfig struct{}

func (c *DefaultRecallConfig) DefaultTopKSimilarUsers() int {
	return 10
}

func (c *DefaultRecallConfig) DefaultMinSimilarity() float64 {
	return 0.10
}

func (c *DefaultRecallConfig) DefaultTrendingWindow() time.Duration {
	return 30 * 24 * time.Hour
}

func (c *DefaultRecallConfig) DefaultTimeout() time.Duration {
	return 2 * time.Second
}

// DefaultCacheTTLSeconds 是推荐结果缓存的 TTL（秒）。
const DefaultCacheTTLSeconds = 1800
