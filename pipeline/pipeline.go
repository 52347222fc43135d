package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
)

// Pipeline 把引擎产出的候选依次交给各 Node 处理。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	req *core.RecommendationRequest,
	products []*core.ScoredProduct,
) ([]*core.ScoredProduct, error) {
	cur := products
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, req, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
