package dsl

import (
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

func TestProgram_Match(t *testing.T) {
	sp := core.NewScoredProduct(core.ProductRef{
		ID: "p1", CategoryID: "c1", Tags: []string{"red", "sale"}, Price: 120.5,
		Status: "active", ReviewCount: 7,
	}, 0.9)
	sp.PutLabel(utils.LabelRecallSource, utils.RecallLabel("co_bought"))
	req := &core.RecommendationRequest{SubjectType: core.SubjectProduct, SubjectID: "p9", Strategy: core.StrategyItemBased, Limit: 5}

	tests := []struct {
		expr string
		want bool
	}{
		{`product.price < 500.0`, true},
		{`product.price < 100.0`, false},
		{`"sale" in product.tags`, true},
		{`product.review_count >= 3 && product.category_id == "c1"`, true},
		{`label.recall_source.contains("co_bought")`, true},
		{`req.subject_type == "PRODUCT" && req.limit == 5`, true},
		{`product.score > 0.95`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, sp, req)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, expr := range []string{`product.price <`, `"not a bool"`, `1 + 2`} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) 应返回错误", expr)
		}
	}
	if ok, err := Evaluate("", core.NewScoredProduct(core.ProductRef{}, 0), nil); !ok || err != nil {
		t.Errorf("空表达式应为 true")
	}
}
