// Package config 加载 shoprec 的运行配置。
//
// 优先级：环境变量 > 配置文件 > 内置默认值。
//
//	cfg, err := config.Load("shoprec.yaml")
//
// 环境变量以 SHOPREC_ 开头，层级用双下划线分隔：
//
//	SHOPREC_RESOLVER__CACHE_TTL=600     -> resolver.cache_ttl
//	SHOPREC_CACHE__REDIS__ADDR=...      -> cache.redis.addr
//	SHOPREC_FEEDBACK__KAFKA__BROKERS=a,b -> feedback.kafka.brokers
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/fusion"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/resolver"
	"github.com/rushteam/shoprec/store"
)

// Config 是完整配置。
type Config struct {
	Resolver ResolverConfig `koanf:"resolver" yaml:"resolver"`
	Recall   RecallConfig   `koanf:"recall" yaml:"recall"`
	Cache    CacheConfig    `koanf:"cache" yaml:"cache"`
	Catalog  CatalogConfig  `koanf:"catalog" yaml:"catalog"`
	Feedback FeedbackConfig `koanf:"feedback" yaml:"feedback"`
	Server   ServerConfig   `koanf:"server" yaml:"server"`
	Log      logging.Config `koanf:"log" yaml:"log"`
}

// ResolverConfig 是推荐编排配置。
type ResolverConfig struct {
	DefaultLimit  int                   `koanf:"default_limit" yaml:"default_limit" validate:"min=1"`
	CacheTTL      int                   `koanf:"cache_ttl" yaml:"cache_ttl" validate:"min=0"` // 秒
	KeyPrefix     string                `koanf:"key_prefix" yaml:"key_prefix" validate:"required"`
	Timeout       time.Duration         `koanf:"timeout" yaml:"timeout" validate:"gt=0"`
	CandidateRule string                `koanf:"candidate_rule" yaml:"candidate_rule"` // CEL，如 product.price < 500.0
	Blacklist     []string              `koanf:"blacklist" yaml:"blacklist"`
	BlacklistKey  string                `koanf:"blacklist_key" yaml:"blacklist_key"` // 缓存中的黑名单 key（JSON 数组）
	PostProcess   []pipeline.NodeConfig `koanf:"postprocess" yaml:"postprocess"`
}

// RecallConfig 是召回参数，实现 core.RecallConfig。
type RecallConfig struct {
	TopKSimilarUsers    int           `koanf:"top_k_similar_users" yaml:"top_k_similar_users" validate:"min=1"`
	MinSimilarity       float64       `koanf:"min_similarity" yaml:"min_similarity" validate:"min=0,max=1"`
	TrendingWindow      time.Duration `koanf:"trending_window" yaml:"trending_window" validate:"gt=0"`
	SourceTimeout       time.Duration `koanf:"source_timeout" yaml:"source_timeout" validate:"gt=0"`
	CollaborativeWeight float64       `koanf:"collaborative_weight" yaml:"collaborative_weight" validate:"min=0"`
	ContentWeight       float64       `koanf:"content_weight" yaml:"content_weight" validate:"min=0"`
}

var _ core.RecallConfig = RecallConfig{}

func (c RecallConfig) DefaultTopKSimilarUsers() int         { return c.TopKSimilarUsers }
func (c RecallConfig) DefaultMinSimilarity() float64        { return c.MinSimilarity }
func (c RecallConfig) DefaultTrendingWindow() time.Duration { return c.TrendingWindow }
func (c RecallConfig) DefaultTimeout() time.Duration        { return c.SourceTimeout }

// CacheConfig 是推荐结果缓存（以及追踪计数）的后端配置。
type CacheConfig struct {
	Backend   string             `koanf:"backend" yaml:"backend" validate:"oneof=memory redis badger"`
	Redis     store.RedisOptions `koanf:"redis" yaml:"redis"`
	BadgerDir string             `koanf:"badger_dir" yaml:"badger_dir"` // 为空时使用内存模式
}

// CatalogConfig 是商品/订单数据源配置。
type CatalogConfig struct {
	Backend  string                `koanf:"backend" yaml:"backend" validate:"oneof=memory sqlite"`
	SQLite   string                `koanf:"sqlite" yaml:"sqlite"`     // 数据库文件，:memory: 表示内存库
	Fixtures string                `koanf:"fixtures" yaml:"fixtures"` // 启动时导入的 YAML 数据（可选）
	Breaker  catalog.BreakerConfig `koanf:"breaker" yaml:"breaker"`
}

// FeedbackConfig 是点击/购买追踪配置。
type FeedbackConfig struct {
	Collectors []string             `koanf:"collectors" yaml:"collectors" validate:"dive,oneof=store metrics kafka"`
	Kafka      feedback.KafkaConfig `koanf:"kafka" yaml:"kafka"`
}

// ServerConfig 是 HTTP 服务配置。
type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr" validate:"required"`
	RateLimit       int           `koanf:"rate_limit" yaml:"rate_limit" validate:"min=0"` // 每个 IP 每分钟请求数，0 表示不限流
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default 返回内置默认配置。
func Default() *Config {
	recall := &core.DefaultRecallConfig{}
	return &Config{
		Resolver: ResolverConfig{
			DefaultLimit: core.DefaultLimit,
			CacheTTL:     core.DefaultCacheTTLSeconds,
			KeyPrefix:    resolver.DefaultKeyPrefix,
			Timeout:      5 * time.Second,
		},
		Recall: RecallConfig{
			TopKSimilarUsers:    recall.DefaultTopKSimilarUsers(),
			MinSimilarity:       recall.DefaultMinSimilarity(),
			TrendingWindow:      recall.DefaultTrendingWindow(),
			SourceTimeout:       recall.DefaultTimeout(),
			CollaborativeWeight: fusion.DefaultCollaborativeWeight,
			ContentWeight:       fusion.DefaultContentWeight,
		},
		Cache: CacheConfig{
			Backend: store.BackendMemory,
			Redis:   store.RedisOptions{Addr: "localhost:6379"},
		},
		Catalog: CatalogConfig{
			Backend: "memory",
			SQLite:  "shoprec.db",
			Breaker: catalog.DefaultBreakerConfig(),
		},
		Feedback: FeedbackConfig{
			Collectors: []string{"store", "metrics"},
			Kafka: feedback.KafkaConfig{
				Topic:         "shoprec.feedback",
				BatchSize:     100,
				FlushInterval: time.Second,
				RequiredAcks:  1,
			},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimit:       600,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: logging.Config{Level: "info", Format: "json"},
	}
}

// Validate 校验配置。
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Recall.CollaborativeWeight+c.Recall.ContentWeight == 0 {
		return fmt.Errorf("invalid config: recall weights must not both be zero")
	}
	if c.Catalog.Backend == "sqlite" && c.Catalog.SQLite == "" {
		return fmt.Errorf("invalid config: catalog.sqlite is required for the sqlite backend")
	}
	for _, name := range c.Feedback.Collectors {
		if name == "kafka" && (len(c.Feedback.Kafka.Brokers) == 0 || c.Feedback.Kafka.Topic == "") {
			return fmt.Errorf("invalid config: feedback.kafka.brokers and topic are required for the kafka collector")
		}
	}

	factory := resolver.DefaultNodeFactory()
	supported := factory.Types()
	for _, nc := range c.Resolver.PostProcess {
		if !contains(supported, nc.Type) {
			return fmt.Errorf("invalid config: unsupported postprocess node %q (supported: %s)", nc.Type, strings.Join(supported, ", "))
		}
	}
	return nil
}

// ResolverOptions 把配置转换为 resolver.Option。
func (c *Config) ResolverOptions() ([]resolver.Option, error) {
	opts := []resolver.Option{
		resolver.WithDefaultLimit(c.Resolver.DefaultLimit),
		resolver.WithCacheTTL(c.Resolver.CacheTTL),
		resolver.WithKeyPrefix(c.Resolver.KeyPrefix),
		resolver.WithTimeout(c.Resolver.Timeout),
		resolver.WithRecallConfig(c.Recall),
		resolver.WithFusionWeights(c.Recall.CollaborativeWeight, c.Recall.ContentWeight),
	}
	if c.Resolver.CandidateRule != "" {
		opts = append(opts, resolver.WithCandidateRule(c.Resolver.CandidateRule))
	}
	if len(c.Resolver.Blacklist) > 0 || c.Resolver.BlacklistKey != "" {
		opts = append(opts, resolver.WithBlacklist(c.Resolver.Blacklist, c.Resolver.BlacklistKey))
	}
	if len(c.Resolver.PostProcess) > 0 {
		nodes, err := pipeline.BuildNodes(resolver.DefaultNodeFactory(), c.Resolver.PostProcess)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resolver.WithNodes(nodes...))
	}
	return opts, nil
}

// StoreOptions 返回缓存后端参数。
func (c *Config) StoreOptions() store.Options {
	return store.Options{Backend: c.Cache.Backend, Redis: c.Cache.Redis, BadgerDir: c.Cache.BadgerDir}
}

// YAML 返回生效配置的 YAML 表示。
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
