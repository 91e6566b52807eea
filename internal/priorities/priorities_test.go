package priorities

import (
	"reflect"
	"testing"
)

func TestPoolOrder(t *testing.T) {
	tests := []struct {
		name       string
		override   string
		configured []string
		want       []string
	}{
		{
			name: "default order",
			want: []string{"bug", "documentation", "refactor", "enhancement"},
		},
		{
			name:       "override replaces order",
			override:   "good first issue",
			configured: []string{"bug"},
			want:       []string{"good first issue"},
		},
		{
			name:     "override is trimmed",
			override: "  bug ",
			want:     []string{"bug"},
		},
		{
			name:       "configured order",
			configured: []string{"enhancement", "bug"},
			want:       []string{"enhancement", "bug"},
		},
		{
			name:       "duplicates dropped case-insensitively",
			configured: []string{"bug", "Bug", " ", "documentation"},
			want:       []string{"bug", "documentation"},
		},
		{
			name:       "all blank falls back to default",
			configured: []string{" ", ""},
			want:       []string{"bug", "documentation", "refactor", "enhancement"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PoolOrder(tt.override, tt.configured)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PoolOrder(%q, %v) = %v, want %v", tt.override, tt.configured, got, tt.want)
			}
		})
	}
}

func TestDefaultReturnsCopy(t *testing.T) {
	d := Default()
	d[0] = "mutated"
	if DefaultLabelPriority[0] != "bug" {
		t.Errorf("Default() leaked the package slice: %v", DefaultLabelPriority)
	}
}

func TestUseFallbackScan(t *testing.T) {
	if !UseFallbackScan("") {
		t.Error("expected fallback scan without override")
	}
	if UseFallbackScan("bug") {
		t.Error("expected no fallback scan with override")
	}
}
