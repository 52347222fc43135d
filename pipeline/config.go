package pipeline

import (
	"fmt"
	"sort"
)

// NodeConfig 是单个 Node 的配置（来自 resolver.postprocess 配置项）。
type NodeConfig struct {
	Type   string         `koanf:"type" yaml:"type" json:"type"`       // filter.expr / filter.category / rerank.diversity 等
	Config map[string]any `koanf:"config" yaml:"config" json:"config"` // Node 特定配置
}

// BuildNodes 根据配置构建 Node 列表。
func BuildNodes(factory *NodeFactory, configs []NodeConfig) ([]Node, error) {
	nodes := make([]Node, 0, len(configs))
	for _, nc := range configs {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("build node %s: %w", nc.Type, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// NodeFactory 用于根据配置构建 Node 实例。
type NodeFactory struct {
	builders map[string]func(map[string]any) (Node, error)
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{
		builders: make(map[string]func(map[string]any) (Node, error)),
	}
}

// Register 注册 Node 构建器。
func (f *NodeFactory) Register(nodeType string, builder func(map[string]any) (Node, error)) {
	f.builders[nodeType] = builder
}

// Build 根据类型和配置构建 Node。
func (f *NodeFactory) Build(nodeType string, config map[string]any) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
	return builder(config)
}

// Types 返回已注册的 Node 类型（排序），用于配置校验与错误提示。
func (f *NodeFactory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
