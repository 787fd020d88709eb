package clftree

import (
	"github.com/cockroachdb/errors"
	"github.com/dgallion1/treerule/internal/bound"
	"github.com/dgallion1/treerule/internal/rules"
)

// DefaultMaxDepth bounds recursion when Options.MaxDepth is zero.
const DefaultMaxDepth = 512

// Options tunes a walk.
type Options struct {
	// MaxDepth is the deepest node level accepted; the root is level 0.
	MaxDepth int
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// LeafPath is the bound map accumulated from the root to one leaf.
type LeafPath struct {
	ID     int
	Bounds bound.Map
}

type walker struct {
	tree     *Tree
	features []string
	maxDepth int
	paths    []LeafPath
}

// Paths walks tree depth-first from the root, left subtree before right, and
// returns the bound map of every leaf in visit order. Any inconsistent split
// aborts the walk.
func Paths(tree *Tree, features []string, opts Options) ([]LeafPath, error) {
	if err := tree.Validate(len(features)); err != nil {
		return nil, err
	}
	w := &walker{tree: tree, features: features, maxDepth: opts.maxDepth()}
	if err := w.visit(0, 0, bound.Map{}); err != nil {
		return nil, err
	}
	return w.paths, nil
}

// visit owns bounds; each child gets its own copy derived from it, so the
// left subtree's refinement is never seen by the right.
func (w *walker) visit(id, depth int, bounds bound.Map) error {
	if depth > w.maxDepth {
		return errors.Mark(errors.Newf("node %d: depth exceeds %d", id, w.maxDepth), ErrInvalidTree)
	}
	t := w.tree
	if t.IsLeaf(id) {
		w.paths = append(w.paths, LeafPath{ID: id, Bounds: bounds})
		return nil
	}

	name := w.features[t.Feature[id]]
	threshold := t.Threshold[id]
	cur, ok := bounds[name]
	if !ok {
		cur = bound.Unbounded()
		bounds = bounds.With(name, cur)
	}

	if left := t.ChildrenLeft[id]; left != Leaf {
		b, err := bound.Refine(cur, threshold, true)
		if err != nil {
			return errors.Wrapf(err, "node %d (%s <= %v)", id, name, threshold)
		}
		if err := w.visit(left, depth+1, bounds.With(name, b)); err != nil {
			return err
		}
	}
	if right := t.ChildrenRight[id]; right != Leaf {
		b, err := bound.Refine(cur, threshold, false)
		if err != nil {
			return errors.Wrapf(err, "node %d (%s > %v)", id, name, threshold)
		}
		if err := w.visit(right, depth+1, bounds.With(name, b)); err != nil {
			return err
		}
	}
	return nil
}

// Leaves walks tree and assembles the leaf rule table: impurity passed
// through, value vectors truncated to integers, bounds rendered as text.
func Leaves(tree *Tree, features []string, opts Options) (*rules.Table, error) {
	paths, err := Paths(tree, features, opts)
	if err != nil {
		return nil, err
	}
	table := &rules.Table{Leaves: make([]rules.LeafRule, 0, len(paths))}
	for _, p := range paths {
		table.Append(rules.LeafRule{
			ID:       p.ID,
			Impurity: tree.ImpurityOf(p.ID),
			Count:    tree.Counts(p.ID),
			Rule:     bound.FormatMap(p.Bounds),
		})
	}
	return table, nil
}
