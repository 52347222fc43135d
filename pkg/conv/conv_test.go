package conv

import "testing"

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		{"float64", 12.5, 12.5, true},
		{"int64", int64(3), 3, true},
		{"decimal text", "19.99", 19.99, true},
		{"decimal bytes", []byte(" 5.10 "), 5.10, true},
		{"bool", true, 1, true},
		{"empty text", "", 0, false},
		{"garbage", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat64(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ToFloat64(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ToFloat64(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	if n, ok := ToInt64("42"); !ok || n != 42 {
		t.Errorf("ToInt64(\"42\") = %v, %v", n, ok)
	}
	if n, ok := ToInt64(float64(7.9)); !ok || n != 7 {
		t.Errorf("ToInt64(7.9) = %v, %v", n, ok)
	}
	if _, ok := ToInt64("x"); ok {
		t.Error("ToInt64(\"x\") should fail")
	}
}

func TestConfigGet(t *testing.T) {
	cfg := map[string]any{
		"expr":  "product.price < 10.0",
		"n":     3,
		"f":     float64(4),
		"bad":   "x",
		"cats":  []any{"c1", 2, "c2"},
		"plain": []string{"a"},
	}
	if got := ConfigGet(cfg, "expr", ""); got != "product.price < 10.0" {
		t.Errorf("ConfigGet(expr) = %q", got)
	}
	if got := ConfigGet(cfg, "n", "def"); got != "def" {
		t.Errorf("类型不符应返回默认值, got %q", got)
	}
	if got := ConfigGet[string](nil, "expr", "def"); got != "def" {
		t.Errorf("nil map 应返回默认值, got %q", got)
	}
	if got := ConfigGetInt64(cfg, "n", 0); got != 3 {
		t.Errorf("ConfigGetInt64(n) = %d", got)
	}
	if got := ConfigGetInt64(cfg, "f", 0); got != 4 {
		t.Errorf("ConfigGetInt64(f) = %d", got)
	}
	if got := ConfigGetInt64(cfg, "bad", 7); got != 7 {
		t.Errorf("ConfigGetInt64(bad) = %d", got)
	}
	if got := SliceAnyToString(cfg["cats"]); len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Errorf("SliceAnyToString(cats) = %v", got)
	}
	if got := SliceAnyToString(cfg["plain"]); len(got) != 1 || got[0] != "a" {
		t.Errorf("SliceAnyToString(plain) = %v", got)
	}
}
