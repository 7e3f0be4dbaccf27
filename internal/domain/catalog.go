package domain

import (
	"fmt"
	"path"
	"strings"
)

// ExpressionEntry is one row of the expression catalog.
type ExpressionEntry struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// ExpressionCatalog maps expression labels to indices. It is built once when
// the render target is attached and never mutated afterwards.
type ExpressionCatalog struct {
	entries []ExpressionEntry
}

// NewExpressionCatalog builds a catalog from labels in target order.
// Empty labels become "expr_<index>"; file references are reduced to their base name.
func NewExpressionCatalog(labels []string) *ExpressionCatalog {
	entries := make([]ExpressionEntry, len(labels))
	for i, label := range labels {
		entries[i] = ExpressionEntry{Index: i, Label: ExpressionLabel(label, i)}
	}
	return &ExpressionCatalog{entries: entries}
}

// ExpressionLabel normalizes a label reported by a render target.
func ExpressionLabel(label string, index int) string {
	label = strings.TrimSpace(label)
	if strings.ContainsRune(label, '/') || strings.HasSuffix(strings.ToLower(label), ".json") {
		label = path.Base(label)
		for _, suffix := range []string{".json", ".exp3"} {
			if strings.HasSuffix(strings.ToLower(label), suffix) {
				label = label[:len(label)-len(suffix)]
			}
		}
	}
	if label == "" {
		return fmt.Sprintf("expr_%d", index)
	}
	return label
}

// Lookup finds the index whose label equals name, ignoring case.
func (c *ExpressionCatalog) Lookup(name string) (int, bool) {
	if c == nil {
		return -1, false
	}
	for _, e := range c.entries {
		if strings.EqualFold(e.Label, name) {
			return e.Index, true
		}
	}
	return -1, false
}

func (c *ExpressionCatalog) Entries() []ExpressionEntry {
	if c == nil {
		return nil
	}
	out := make([]ExpressionEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *ExpressionCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
