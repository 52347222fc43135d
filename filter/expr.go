package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/dsl"
)

// ExprFilter 是基于 CEL 表达式的候选规则：表达式为 false 的商品被过滤。
//
//	f, _ := filter.NewExprFilter(`product.price < 500.0`)
type ExprFilter struct {
	prg *dsl.Program
}

// NewExprFilter 编译表达式；表达式为空时返回 nil, nil。
func NewExprFilter(expr string) (*ExprFilter, error) {
	if expr == "" {
		return nil, nil
	}
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{prg: prg}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

// Expr 返回规则表达式。
func (f *ExprFilter) Expr() string {
	return f.prg.String()
}

func (f *ExprFilter) ShouldFilter(_ context.Context, req *core.RecommendationRequest, p *core.ScoredProduct) (bool, error) {
	ok, err := f.prg.Match(p, req)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
