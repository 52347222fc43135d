package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("默认配置应合法: %v", err)
	}
	if cfg.Resolver.CacheTTL != core.DefaultCacheTTLSeconds || cfg.Resolver.DefaultLimit != core.DefaultLimit {
		t.Errorf("resolver defaults = %+v", cfg.Resolver)
	}
	if cfg.Recall.DefaultMinSimilarity() != 0.10 || cfg.Recall.DefaultTopKSimilarUsers() != 10 {
		t.Errorf("recall defaults = %+v", cfg.Recall)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shoprec.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileAndEnvLayers(t *testing.T) {
	path := writeFile(t, `
resolver:
  cache_ttl: 600
  timeout: 3s
  candidate_rule: product.price < 500.0
  postprocess:
    - type: rerank.diversity
      config:
        max_per_category: 2
cache:
  backend: badger
catalog:
  backend: sqlite
  sqlite: ":memory:"
server:
  addr: ":8081"
`)
	t.Setenv("SHOPREC_SERVER__ADDR", ":9090")
	t.Setenv("SHOPREC_RECALL__MIN_SIMILARITY", "0.2")
	t.Setenv("SHOPREC_FEEDBACK__COLLECTORS", "metrics, store")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Resolver.CacheTTL != 600 || cfg.Resolver.Timeout != 3*time.Second {
		t.Errorf("resolver = %+v", cfg.Resolver)
	}
	if cfg.Resolver.DefaultLimit != core.DefaultLimit {
		t.Errorf("未覆盖的字段应保留默认值: %d", cfg.Resolver.DefaultLimit)
	}
	if len(cfg.Resolver.PostProcess) != 1 || cfg.Resolver.PostProcess[0].Type != "rerank.diversity" {
		t.Errorf("postprocess = %+v", cfg.Resolver.PostProcess)
	}
	if cfg.Cache.Backend != "badger" || cfg.Catalog.Backend != "sqlite" || cfg.Catalog.SQLite != ":memory:" {
		t.Errorf("cache/catalog = %+v / %+v", cfg.Cache, cfg.Catalog)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("环境变量应覆盖配置文件: %s", cfg.Server.Addr)
	}
	if cfg.Recall.MinSimilarity != 0.2 {
		t.Errorf("min_similarity = %v", cfg.Recall.MinSimilarity)
	}
	if !reflect.DeepEqual(cfg.Feedback.Collectors, []string{"metrics", "store"}) {
		t.Errorf("collectors = %v", cfg.Feedback.Collectors)
	}

	opts, err := cfg.ResolverOptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) == 0 {
		t.Error("ResolverOptions 不应为空")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown cache backend", "cache:\n  backend: memcached\n", "Backend"},
		{"zero limit", "resolver:\n  default_limit: 0\n", "DefaultLimit"},
		{"unknown postprocess node", "resolver:\n  postprocess:\n    - type: rank.lr\n", "unsupported postprocess node"},
		{"kafka without brokers", "feedback:\n  collectors: [kafka]\n", "feedback.kafka.brokers"},
		{"unknown collector", "feedback:\n  collectors: [stdout]\n", "Collectors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("配置文件不存在应报错")
	}
}

func TestConfig_YAML(t *testing.T) {
	cfg := Default()
	cfg.Resolver.PostProcess = []pipeline.NodeConfig{{Type: "rerank.topn", Config: map[string]any{"n": 5}}}

	out, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"cache_ttl: 1800", "backend: memory", "timeout: 5s", "type: rerank.topn"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("YAML 输出缺少 %q:\n%s", want, out)
		}
	}
}
