package dotparse

import (
	"log/slog"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dgallion1/treerule/internal/rules"
)

// pathDigits returns the branch digits for the i-th of n leaves: i in binary,
// zero-padded to bitlen(n)-1 digits. Read from the end, digit k says whether
// the k-th edge above the leaf was a right ("1") or left ("0") edge.
//
// This matches the true branch sequence only when leaves are enumerated like
// the leaves of a complete binary tree; see PositionalMismatches.
func pathDigits(i, n int) string {
	width := bits.Len(uint(n)) - 1
	s := strconv.FormatInt(int64(i), 2)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// Options tunes Rules.
type Options struct {
	// Logger receives a warning for every leaf whose positional digits
	// disagree with the edge declaration order. Nil disables the check.
	Logger *slog.Logger
}

// Rules rebuilds each leaf's rule by walking leaf to root through Parents.
// At every ancestor the leaf's positional digit picks the branch: "1" flips
// the stored "<=" to ">", "0" keeps it. When a feature is tested more than
// once on a path the test nearest the root wins. Every feature seen on any
// path appears in every rule, with "" where the leaf's path does not test it.
func (d *Document) Rules(opts Options) (*rules.Table, error) {
	n := len(d.Leaves)
	factors := make([]map[string]string, n)
	seen := map[string]bool{}
	for i, leaf := range d.Leaves {
		digits := pathDigits(i, n)
		factor := map[string]string{}
		for id := leaf.ID; ; {
			par, ok := d.Parents[id]
			if !ok {
				break
			}
			c, found := d.Nodes[par]
			if !found {
				return nil, malformed("leaf %d: ancestor %d has no split criterion", leaf.ID, par)
			}
			if digits == "" {
				return nil, malformed("leaf %d: position %d of %d leaves is too short for its depth", leaf.ID, i, n)
			}
			val := c.Comparison
			if digits[len(digits)-1] == '1' {
				val = strings.Replace(val, "<=", ">", 1)
			}
			digits = digits[:len(digits)-1]
			factor[c.Feature] = val
			seen[c.Feature] = true
			id = par
		}
		factors[i] = factor
	}

	table := &rules.Table{Leaves: make([]rules.LeafRule, 0, n)}
	for i, leaf := range d.Leaves {
		rule := make(map[string]string, len(seen))
		for name := range seen {
			rule[name] = factors[i][name]
		}
		table.Append(rules.LeafRule{
			ID:       leaf.ID,
			Impurity: leaf.Impurity,
			Count:    leaf.Count,
			Rule:     rule,
		})
	}

	if opts.Logger != nil {
		for _, id := range d.PositionalMismatches() {
			opts.Logger.Warn("leaf position disagrees with declared branches", "leaf_id", id)
		}
	}
	return table, nil
}

// PositionalMismatches lists the leaves whose positional digits disagree
// with the branch directions implied by edge order, where a parent's first
// declared child is its left ("<=") child. Rules is not changed by this
// check.
func (d *Document) PositionalMismatches() []int {
	n := len(d.Leaves)
	var out []int
	for i, leaf := range d.Leaves {
		digits := pathDigits(i, n)
		for id := leaf.ID; ; {
			par, ok := d.Parents[id]
			if !ok {
				break
			}
			want := byte('0')
			if kids := d.Children[par]; len(kids) > 1 && kids[1] == id {
				want = '1'
			}
			if digits == "" || digits[len(digits)-1] != want {
				out = append(out, leaf.ID)
				break
			}
			digits = digits[:len(digits)-1]
			id = par
		}
	}
	sort.Ints(out)
	return out
}

// Extract parses src and builds its leaf rule table.
func Extract(src string, opts Options) (*rules.Table, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	table, err := doc.Rules(opts)
	if err != nil {
		return nil, errors.Wrap(err, "rebuild leaf rules")
	}
	return table, nil
}
