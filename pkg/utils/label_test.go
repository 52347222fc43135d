package utils

import "testing"

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{"empty existing", Label{}, RecallLabel("co_bought"), Label{Value: "co_bought", Source: "recall"}},
		{"empty incoming", RecallLabel("tag"), Label{}, Label{Value: "tag", Source: "recall"}},
		{"same source", RecallLabel("co_bought"), RecallLabel("category"), Label{Value: "co_bought|category", Source: "recall"}},
		{"different source", RecallLabel("co_bought"), Label{Value: "x", Source: "fusion"}, Label{Value: "co_bought|x", Source: "recall,fusion"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Errorf("MergeLabel() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRankLabel(t *testing.T) {
	if got := RankLabel("category", 2).Value; got != "category#2" {
		t.Errorf("RankLabel value = %q", got)
	}
}
