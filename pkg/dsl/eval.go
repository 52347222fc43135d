// Package dsl 提供基于 CEL (Common Expression Language) 的候选商品规则。
//
// 可用变量：
//   - product：id / category_id / tags / price / status / units_sold / review_count / score
//   - label：label key -> value，例如 label.recall_source
//   - req：subject_type / subject_id / strategy / limit
//
// 示例：
//   - `product.price < 500.0`
//   - `product.review_count >= 3 && !("clearance" in product.tags)`
//   - `label.recall_source.contains("co_bought")`
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/shoprec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("product", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("label", cel.MapType(cel.StringType, cel.StringType)),
			cel.Variable("req", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译好的规则，可并发调用 Match。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；表达式必须返回 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Match 对单个商品求值。
func (p *Program) Match(sp *core.ScoredProduct, req *core.RecommendationRequest) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(sp, req))
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Evaluate 是一次性的编译 + 求值，空表达式视为 true。
func Evaluate(expr string, sp *core.ScoredProduct, req *core.RecommendationRequest) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(sp, req)
}

func buildInput(sp *core.ScoredProduct, req *core.RecommendationRequest) map[string]any {
	tags := make([]string, len(sp.Tags))
	copy(tags, sp.Tags)
	product := map[string]any{
		"id":           sp.ID,
		"category_id":  sp.CategoryID,
		"tags":         tags,
		"price":        sp.Price,
		"status":       sp.Status,
		"units_sold":   sp.UnitsSold,
		"review_count": sp.ReviewCount,
		"score":        sp.RecommendationScore,
	}

	labels := make(map[string]string, len(sp.Labels))
	for k, v := range sp.Labels {
		labels[k] = v.Value
	}

	r := map[string]any{}
	if req != nil {
		r = map[string]any{
			"subject_type": string(req.SubjectType),
			"subject_id":   req.SubjectID,
			"strategy":     string(req.Strategy),
			"limit":        int64(req.Limit),
		}
	}

	return map[string]any{
		"product": product,
		"label":   labels,
		"req":     r,
	}
}
