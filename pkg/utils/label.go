package utils

import "strconv"

// Label 是推荐结果中的解释信息：可追踪、可透传、可缓存。
// Value 与 Source 的语义由各召回源自定义；这里只提供标准化的合并规则。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / fusion / fallback ...
}

// 常用 label key
const (
	LabelRecallSource = "recall_source"
	LabelListRank     = "list_rank"
	LabelFallback     = "fallback"
)

// RecallLabel 记录商品来自哪个候选列表。
func RecallLabel(source string) Label {
	return Label{Value: source, Source: "recall"}
}

// RankLabel 记录商品在某个候选列表中的位置（从 0 开始）。
func RankLabel(source string, index int) Label {
	return Label{Value: source + "#" + strconv.Itoa(index), Source: "recall"}
}

// MergeLabel 用于合并同名 Label，遵循"保留历史、可追踪"的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积（相同来源不重复）
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "", incoming.Source == existing.Source:
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
