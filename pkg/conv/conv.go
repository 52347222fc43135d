// Package conv 提供显式的数值转换，避免依赖隐式类型转换（例如 SQLite 的 DECIMAL 列可能以 float/int/text 返回）。
package conv

import (
	"strconv"
	"strings"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32、string、[]byte（十进制文本）；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	case string:
		return parseDecimal(val)
	case []byte:
		return parseDecimal(string(val))
	default:
		return 0, false
	}
}

// ToInt64 将 any 转为 int64。
// 支持 int、int64、int32、float64、float32、string、[]byte。
func ToInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SliceAnyToString 将配置中的 []any / []string 转为 []string，非字符串元素跳过。
func SliceAnyToString(v any) []string {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ConfigGet 从 map[string]any（如 YAML/koanf 解析结果）按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt64 从 config 取 int64。YAML 常得到 int 或 float64，此处统一为 int64。
func ConfigGetInt64(m map[string]any, key string, defaultVal int64) int64 {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if n, ok := ToInt64(v); ok {
		return n
	}
	return defaultVal
}
