// Package rules holds the leaf rule table produced by both tree front-ends
// and renders it for people.
package rules

import (
	"sort"
	"strings"
)

// LeafRule is the rule that routes an input to one leaf.
type LeafRule struct {
	ID       int               `json:"id"`
	Impurity float64           `json:"impurity"`
	Count    []int             `json:"count"`
	Rule     map[string]string `json:"rule"`
}

// Features returns the rule's feature names in sorted order.
func (l LeafRule) Features() []string {
	names := make([]string, 0, len(l.Rule))
	for name := range l.Rule {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conjunction joins the non-empty bounds, e.g. "POSX > 179.4 and SIZEX <= 1.4005".
func (l LeafRule) Conjunction() string {
	var parts []string
	for _, name := range l.Features() {
		if b := l.Rule[name]; b != "" {
			parts = append(parts, name+" "+b)
		}
	}
	return strings.Join(parts, " and ")
}

// Table is the ordered set of leaf rules for one tree. Order is the order in
// which the extractor visited the leaves.
type Table struct {
	Leaves []LeafRule `json:"leaves"`
}

// Append adds a leaf at the end of the table.
func (t *Table) Append(l LeafRule) {
	t.Leaves = append(t.Leaves, l)
}

// Len returns the number of leaves.
func (t *Table) Len() int { return len(t.Leaves) }

// IDs returns the leaf ids in table order.
func (t *Table) IDs() []int {
	ids := make([]int, len(t.Leaves))
	for i, l := range t.Leaves {
		ids[i] = l.ID
	}
	return ids
}

// Leaf returns the leaf with the given id.
func (t *Table) Leaf(id int) (LeafRule, bool) {
	for _, l := range t.Leaves {
		if l.ID == id {
			return l, true
		}
	}
	return LeafRule{}, false
}

// SortedByImpurity returns a copy ordered by ascending impurity. Ties keep
// their visit order.
func (t *Table) SortedByImpurity() *Table {
	out := &Table{Leaves: append([]LeafRule(nil), t.Leaves...)}
	sort.SliceStable(out.Leaves, func(i, j int) bool {
		return out.Leaves[i].Impurity < out.Leaves[j].Impurity
	})
	return out
}
