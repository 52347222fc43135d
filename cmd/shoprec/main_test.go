package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/pipeline"
)

// writeConfig 生成一份使用内存后端与临时 fixtures 的配置文件。
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	placed := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	fixtures := fmt.Sprintf(`
products:
  - {id: p1, category_id: c1, tags: [red], price: 10}
  - {id: p2, category_id: c1, tags: [red], price: 12}
  - {id: p3, category_id: c2, tags: [blue], price: 30}
orders:
  - id: o1
    user_id: u2
    status: delivered
    placed_at: %[1]s
    items:
      - {product_id: p1, quantity: 1, unit_price: 10}
      - {product_id: p3, quantity: 1, unit_price: 30}
  - id: o2
    user_id: u3
    status: delivered
    placed_at: %[1]s
    items:
      - {product_id: p1, quantity: 1, unit_price: 10}
`, placed)
	fixturesPath := filepath.Join(dir, "fixtures.yaml")
	if err := os.WriteFile(fixturesPath, []byte(fixtures), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := fmt.Sprintf(`
catalog:
  backend: memory
  fixtures: %s
log:
  level: error
`, fixturesPath)
	path := filepath.Join(dir, "shoprec.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "resolve", "--config", path, "--subject-id", "u1", "--strategy", "trending", "--limit", "2")
	if err != nil {
		t.Fatal(err)
	}
	var result core.RecommendationResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("输出应为 JSON: %v\n%s", err, out)
	}
	if result.Algorithm != core.AlgorithmTrending {
		t.Errorf("algorithm = %s", result.Algorithm)
	}
	if ids := result.ProductIDs(); len(ids) != 2 || ids[0] != "p1" || ids[1] != "p3" {
		t.Errorf("products = %v, want [p1 p3]", ids)
	}
}

func TestResolveCommand_InvalidRequest(t *testing.T) {
	path := writeConfig(t)
	_, err := run(t, "resolve", "--config", path, "--subject-type", "shop", "--subject-id", "u1")
	if !core.IsInvalidInput(err) {
		t.Errorf("非法 subject type 应返回 INVALID_INPUT, got %v", err)
	}
}

func TestConfigCommand(t *testing.T) {
	path := writeConfig(t)
	out, err := run(t, "config", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"fixtures:", "level: error", "rate_limit: 600"} {
		if !strings.Contains(out, want) {
			t.Errorf("输出缺少 %q:\n%s", want, out)
		}
	}
}

func TestNewApp_Collectors(t *testing.T) {
	cfg, err := config.Load(writeConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	multi, ok := a.collector.(feedback.MultiCollector)
	if !ok || len(multi) != 2 {
		t.Fatalf("默认应组装 store 与 metrics 两个 Collector: %#v", a.collector)
	}
	store, ok := multi[0].(*feedback.StoreCollector)
	if !ok {
		t.Fatalf("第一个 Collector 应为 StoreCollector: %T", multi[0])
	}

	a.collector.RecordClick(context.Background(), "u1", "p1", core.AlgorithmTrending)
	counts, err := store.Counts(context.Background(), core.AlgorithmTrending)
	if err != nil {
		t.Fatal(err)
	}
	if counts[feedback.EventClick] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestNewApp_StartupErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
	}{
		{"kafka without brokers", func(cfg *config.Config) {
			cfg.Feedback.Collectors = []string{"store", "kafka"}
		}},
		{"missing fixtures", func(cfg *config.Config) {
			cfg.Catalog.Fixtures = filepath.Join(t.TempDir(), "missing.yaml")
		}},
		{"bad postprocess node", func(cfg *config.Config) {
			cfg.Resolver.PostProcess = []pipeline.NodeConfig{{Type: "filter.expr"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(cfg)
			a, err := newApp(context.Background(), cfg)
			if err == nil {
				t.Fatal("启动失败应返回错误")
			}
			if a != nil {
				t.Errorf("启动失败不应返回 app: %+v", a)
			}
		})
	}
}
