// Package clftree walks a binary decision tree stored as parallel node arrays
// and derives one bound map per leaf.
package clftree

import (
	"github.com/cockroachdb/errors"
)

// Leaf marks a missing child in ChildrenLeft/ChildrenRight.
const Leaf = -1

// ErrInvalidTree is the kind of error returned when the node arrays do not
// describe a finite rooted binary tree.
var ErrInvalidTree = errors.New("invalid tree")

// Tree is a fitted binary tree as parallel arrays indexed by node id. Node 0
// is the root. Feature and Threshold are only read for internal nodes;
// Impurity and Value are passed through to the leaf table.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left" yaml:"children_left" validate:"required,min=1"`
	ChildrenRight []int       `json:"children_right" yaml:"children_right" validate:"required,min=1"`
	Feature       []int       `json:"feature" yaml:"feature" validate:"required,min=1"`
	Threshold     []float64   `json:"threshold" yaml:"threshold" validate:"required,min=1"`
	Impurity      []float64   `json:"impurity" yaml:"impurity"`
	Value         [][]float64 `json:"value" yaml:"value"`
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int { return len(t.ChildrenLeft) }

// IsLeaf reports whether node id has no children.
func (t *Tree) IsLeaf(id int) bool {
	return t.ChildrenLeft[id] == Leaf && t.ChildrenRight[id] == Leaf
}

// Validate checks that the arrays agree in length, every child id is in
// range, every node other than the root has exactly one parent and is
// reachable from the root, and every internal node names one of
// numFeatures features.
func (t *Tree) Validate(numFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.Mark(errors.New("tree has no nodes"), ErrInvalidTree)
	}
	if numFeatures < 1 {
		return errors.Mark(errors.New("feature list is empty"), ErrInvalidTree)
	}
	for _, c := range []struct {
		name string
		len  int
	}{
		{"children_right", len(t.ChildrenRight)},
		{"feature", len(t.Feature)},
		{"threshold", len(t.Threshold)},
	} {
		if c.len != n {
			return errors.Mark(errors.Newf("%s has %d entries, want %d", c.name, c.len, n), ErrInvalidTree)
		}
	}
	if t.Impurity != nil && len(t.Impurity) != n {
		return errors.Mark(errors.Newf("impurity has %d entries, want %d", len(t.Impurity), n), ErrInvalidTree)
	}
	if t.Value != nil && len(t.Value) != n {
		return errors.Mark(errors.Newf("value has %d entries, want %d", len(t.Value), n), ErrInvalidTree)
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = Leaf
	}
	for id := 0; id < n; id++ {
		for _, c := range [2]int{t.ChildrenLeft[id], t.ChildrenRight[id]} {
			if c == Leaf {
				continue
			}
			if c <= 0 || c >= n {
				return errors.Mark(errors.Newf("node %d: child %d out of range", id, c), ErrInvalidTree)
			}
			if parent[c] != Leaf {
				return errors.Mark(errors.Newf("node %d has parents %d and %d", c, parent[c], id), ErrInvalidTree)
			}
			parent[c] = id
		}
		if !t.IsLeaf(id) {
			if f := t.Feature[id]; f < 0 || f >= numFeatures {
				return errors.Mark(errors.Newf("node %d: feature index %d out of range", id, f), ErrInvalidTree)
			}
		}
	}
	// With one parent per non-root node, a node unreachable from the root can
	// only sit on a cycle.
	for id := 1; id < n; id++ {
		seen := 0
		for p := id; p != 0; p = parent[p] {
			if p == Leaf || seen > n {
				return errors.Mark(errors.Newf("node %d is not reachable from the root", id), ErrInvalidTree)
			}
			seen++
		}
	}
	return nil
}

// Counts returns node id's value vector truncated to integers.
func (t *Tree) Counts(id int) []int {
	if id >= len(t.Value) {
		return nil
	}
	out := make([]int, len(t.Value[id]))
	for i, v := range t.Value[id] {
		out[i] = int(v)
	}
	return out
}

// ImpurityOf returns node id's impurity, or 0 when none was supplied.
func (t *Tree) ImpurityOf(id int) float64 {
	if id >= len(t.Impurity) {
		return 0
	}
	return t.Impurity[id]
}
