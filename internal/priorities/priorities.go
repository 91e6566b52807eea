package priorities

import (
	"strings"

	"github.com/steveyegge/assignbot/internal/labels"
)

// DefaultLabelPriority is the order in which label pools are searched when no
// override label is given.
var DefaultLabelPriority = []string{
	labels.LabelBug,
	labels.LabelDocumentation,
	labels.LabelRefactor,
	labels.LabelEnhancement,
}

// Default returns a copy of DefaultLabelPriority.
func Default() []string {
	out := make([]string, len(DefaultLabelPriority))
	copy(out, DefaultLabelPriority)
	return out
}

// PoolOrder returns the label pools to search, in order.
//
// Rules:
// - An override label replaces the whole order with a single pool
// - Otherwise the configured order is used, falling back to the default
// - Blank and duplicate entries are dropped (first occurrence wins)
func PoolOrder(override string, configured []string) []string {
	if o := strings.TrimSpace(override); o != "" {
		return []string{o}
	}
	if len(configured) == 0 {
		return Default()
	}

	seen := make(map[string]bool, len(configured))
	order := make([]string, 0, len(configured))
	for _, name := range configured {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		order = append(order, name)
	}
	if len(order) == 0 {
		return Default()
	}
	return order
}

// UseFallbackScan reports whether the all-open-issues scan runs after the pools
// are exhausted. It only runs for the default search, never for an explicit label.
func UseFallbackScan(override string) bool {
	return strings.TrimSpace(override) == ""
}
