package recall

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pkg/logging"
	"github.com/rushteam/shoprec/pkg/utils"
)

// Fanout 并发执行多个召回源，每个源有独立超时。
// 单个源失败（含超时）只记录日志，不中断其他召回源。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
}

// SourceResult 是单个召回源的结果，Products 为 nil 且 Err 非空表示该源失败。
type SourceResult struct {
	Name     string
	Products []*core.ScoredProduct
	Err      error
}

// Run 执行所有召回源，结果与 Sources 顺序一一对应。
func (n *Fanout) Run(ctx context.Context) []SourceResult {
	results := make([]SourceResult, len(n.Sources))
	if len(n.Sources) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		i, src := i, src
		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			products, err := src.Recall(recallCtx)
			if err == nil {
				err = recallCtx.Err()
			}
			if err != nil {
				metrics.RecallSourceErrors.WithLabelValues(src.Name()).Inc()
				logging.Ctx(ctx).Warn().Err(err).Str("source", src.Name()).Msg("recall source failed, skipping")
				products = nil
			}

			// 记录召回来源 label，方便 explain / 观测
			for _, p := range products {
				p.PutLabel(utils.LabelRecallSource, utils.RecallLabel(src.Name()))
			}

			mu.Lock()
			results[i] = SourceResult{Name: src.Name(), Products: products, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// AllFailed 判断是否所有召回源都失败。
func AllFailed(results []SourceResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}

// FirstError 返回第一个失败源的错误。
func FirstError(results []SourceResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
