package clftree

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/dgallion1/treerule/internal/bound"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// parseTree reads the compact node listing used by testdata/walk:
//
//	<id> split <feature> <threshold> <left> <right>
//	<id> leaf <impurity> <count>...
func parseTree(t *testing.T, d *datadriven.TestData) *Tree {
	lines := strings.Split(strings.TrimSpace(d.Input), "\n")
	n := len(lines)
	tree := &Tree{
		ChildrenLeft:  make([]int, n),
		ChildrenRight: make([]int, n),
		Feature:       make([]int, n),
		Threshold:     make([]float64, n),
		Impurity:      make([]float64, n),
		Value:         make([][]float64, n),
	}
	atoi := func(s string) int {
		v, err := strconv.Atoi(s)
		if err != nil {
			d.Fatalf(t, "%v", err)
		}
		return v
	}
	atof := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			d.Fatalf(t, "%v", err)
		}
		return v
	}
	for _, line := range lines {
		f := strings.Fields(line)
		id := atoi(f[0])
		switch f[1] {
		case "split":
			tree.Feature[id] = atoi(f[2])
			tree.Threshold[id] = atof(f[3])
			tree.ChildrenLeft[id] = atoi(f[4])
			tree.ChildrenRight[id] = atoi(f[5])
			tree.Impurity[id] = 0.5
		case "leaf":
			tree.ChildrenLeft[id], tree.ChildrenRight[id] = Leaf, Leaf
			tree.Feature[id], tree.Threshold[id] = -2, -2
			tree.Impurity[id] = atof(f[2])
			for _, c := range f[3:] {
				tree.Value[id] = append(tree.Value[id], atof(c))
			}
		default:
			d.Fatalf(t, "unknown node kind %q", f[1])
		}
	}
	return tree
}

func TestWalkDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/walk", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "walk":
			var features []string
			for _, arg := range d.CmdArgs {
				if arg.Key == "features" {
					features = arg.Vals
				}
			}
			var opts Options
			if d.HasArg("max-depth") {
				d.ScanArgs(t, "max-depth", &opts.MaxDepth)
			}
			table, err := Leaves(parseTree(t, d), features, opts)
			if err != nil {
				return "error: " + err.Error()
			}
			var sb strings.Builder
			for _, l := range table.Leaves {
				parts := []string{
					strconv.Itoa(l.ID),
					"impurity=" + strconv.FormatFloat(l.Impurity, 'g', -1, 64),
					"count=" + strings.Join(strings.Fields(fmt.Sprint(l.Count)), ", "),
				}
				for _, name := range l.Features() {
					parts = append(parts, fmt.Sprintf("%s=%q", name, l.Rule[name]))
				}
				sb.WriteString(strings.Join(parts, " "))
				sb.WriteString("\n")
			}
			return sb.String()
		default:
			d.Fatalf(t, "unknown command %q", d.Cmd)
			return ""
		}
	})
}

var fiveFeatures = []string{"PINNUM", "POSX", "POSY", "SIZEX", "SIZEY"}

// depthThreeTree mirrors a depth-3 classifier fitted on the five component
// features.
func depthThreeTree() *Tree {
	const (
		sizeX = 3
		posX  = 1
		posY  = 2
		none  = -2
	)
	return &Tree{
		ChildrenLeft:  []int{1, 2, 3, Leaf, Leaf, 6, Leaf, Leaf, 9, 10, Leaf, Leaf, 13, Leaf, Leaf},
		ChildrenRight: []int{8, 5, 4, Leaf, Leaf, 7, Leaf, Leaf, 12, 11, Leaf, Leaf, 14, Leaf, Leaf},
		Feature:       []int{sizeX, posX, sizeX, none, none, posY, none, none, posY, posY, none, none, posY, none, none},
		Threshold: []float64{
			1.4005000591278076, 179.39999389648438, 0.19349999725818634, -2, -2,
			112.14999389648438, -2, -2, 32.650001525878906, 23.75, -2, -2,
			38.150001525878906, -2, -2,
		},
	}
}

func TestPathsDepthThree(t *testing.T) {
	paths, err := Paths(depthThreeTree(), fiveFeatures, Options{})
	require.NoError(t, err)

	got := map[int]bound.Map{}
	var order []int
	for _, p := range paths {
		got[p.ID] = p.Bounds
		order = append(order, p.ID)
	}
	want := map[int]bound.Map{
		3:  {"POSX": bound.AtMost(179.39999389648438), "SIZEX": bound.AtMost(0.19349999725818634)},
		4:  {"POSX": bound.AtMost(179.39999389648438), "SIZEX": bound.Between(0.19349999725818634, 1.4005000591278076)},
		6:  {"POSX": bound.Above(179.39999389648438), "POSY": bound.AtMost(112.14999389648438), "SIZEX": bound.AtMost(1.4005000591278076)},
		7:  {"POSX": bound.Above(179.39999389648438), "POSY": bound.Above(112.14999389648438), "SIZEX": bound.AtMost(1.4005000591278076)},
		10: {"POSY": bound.AtMost(23.75), "SIZEX": bound.Above(1.4005000591278076)},
		11: {"POSY": bound.Between(23.75, 32.650001525878906), "SIZEX": bound.Above(1.4005000591278076)},
		13: {"POSY": bound.Between(32.650001525878906, 38.150001525878906), "SIZEX": bound.Above(1.4005000591278076)},
		14: {"POSY": bound.Above(38.150001525878906), "SIZEX": bound.Above(1.4005000591278076)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("bounds mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []int{3, 4, 6, 7, 10, 11, 13, 14}, order)
}

func TestPathsLeafCoverage(t *testing.T) {
	tree := depthThreeTree()
	paths, err := Paths(tree, fiveFeatures, Options{})
	require.NoError(t, err)

	var leaves []int
	for id := 0; id < tree.NodeCount(); id++ {
		if tree.IsLeaf(id) {
			leaves = append(leaves, id)
		}
	}
	var got []int
	for _, p := range paths {
		got = append(got, p.ID)
	}
	require.ElementsMatch(t, leaves, got)
}

func TestPathsMonotonic(t *testing.T) {
	tree := depthThreeTree()
	// Walk each root-to-leaf path by hand and check that every refinement
	// only narrows.
	var check func(id int, bounds bound.Map)
	check = func(id int, bounds bound.Map) {
		if tree.IsLeaf(id) {
			return
		}
		name := fiveFeatures[tree.Feature[id]]
		prev := bounds[name]
		for _, side := range []struct {
			child int
			upper bool
		}{{tree.ChildrenLeft[id], true}, {tree.ChildrenRight[id], false}} {
			next, err := bound.Refine(prev, tree.Threshold[id], side.upper)
			require.NoError(t, err)
			if prev.HasMin {
				require.GreaterOrEqual(t, next.Min, prev.Min)
			}
			if prev.HasMax {
				require.LessOrEqual(t, next.Max, prev.Max)
			}
			check(side.child, bounds.With(name, next))
		}
	}
	check(0, bound.Map{})
}

func TestPathsIndependence(t *testing.T) {
	paths, err := Paths(depthThreeTree(), fiveFeatures, Options{})
	require.NoError(t, err)

	before := paths[1].Bounds.Clone()
	paths[0].Bounds["SIZEX"] = bound.Between(-1, -0.5)
	paths[0].Bounds["NEW"] = bound.AtMost(1)
	require.Equal(t, before, paths[1].Bounds)
}

// The depth-2 tree partitions SIZEX x POSX x POSY into four cells: every
// probe point must satisfy exactly one leaf's bounds.
func TestPathsPartitionDomain(t *testing.T) {
	tree := &Tree{
		ChildrenLeft:  []int{1, 2, Leaf, Leaf, 5, Leaf, Leaf},
		ChildrenRight: []int{4, 3, Leaf, Leaf, 6, Leaf, Leaf},
		Feature:       []int{3, 1, -2, -2, 2, -2, -2},
		Threshold:     []float64{1.4005, 179.4, -2, -2, 32.65, -2, -2},
	}
	paths, err := Paths(tree, fiveFeatures, Options{})
	require.NoError(t, err)
	require.Len(t, paths, 4)

	probes := []float64{-1e9, 0, 1.4005, 1.4006, 32.65, 32.66, 179.4, 179.5, 1e9}
	for _, sx := range probes {
		for _, px := range probes {
			for _, py := range probes {
				point := map[string]float64{"SIZEX": sx, "POSX": px, "POSY": py}
				hits := 0
				for _, p := range paths {
					ok := true
					for name, b := range p.Bounds {
						if !b.Contains(point[name]) {
							ok = false
						}
					}
					if ok {
						hits++
					}
				}
				require.Equal(t, 1, hits, "point %v", point)
			}
		}
	}
}

func TestValidateRejects(t *testing.T) {
	for name, tc := range map[string]struct {
		tree     Tree
		features int
		msg      string
	}{
		"empty": {
			tree: Tree{}, features: 1, msg: "tree has no nodes",
		},
		"no features": {
			tree: Tree{ChildrenLeft: []int{Leaf}, ChildrenRight: []int{Leaf}, Feature: []int{0}, Threshold: []float64{0}},
			msg:  "feature list is empty",
		},
		"length mismatch": {
			tree:     Tree{ChildrenLeft: []int{Leaf}, ChildrenRight: []int{Leaf, Leaf}, Feature: []int{0}, Threshold: []float64{0}},
			features: 1,
			msg:      "children_right has 2 entries, want 1",
		},
		"child out of range": {
			tree:     Tree{ChildrenLeft: []int{5}, ChildrenRight: []int{Leaf}, Feature: []int{0}, Threshold: []float64{0}},
			features: 1,
			msg:      "node 0: child 5 out of range",
		},
		"root as child": {
			tree:     Tree{ChildrenLeft: []int{1, 0}, ChildrenRight: []int{Leaf, Leaf}, Feature: []int{0, 0}, Threshold: []float64{0, 0}},
			features: 1,
			msg:      "node 1: child 0 out of range",
		},
		"feature out of range": {
			tree:     Tree{ChildrenLeft: []int{1, Leaf}, ChildrenRight: []int{Leaf, Leaf}, Feature: []int{3, -2}, Threshold: []float64{0, 0}},
			features: 2,
			msg:      "node 0: feature index 3 out of range",
		},
		"cycle": {
			tree:     Tree{ChildrenLeft: []int{Leaf, 2, 1}, ChildrenRight: []int{Leaf, Leaf, Leaf}, Feature: []int{0, 0, 0}, Threshold: []float64{0, 0, 0}},
			features: 1,
			msg:      "node 1 is not reachable from the root",
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := tc.tree.Validate(tc.features)
			require.True(t, errors.Is(err, ErrInvalidTree), "%v", err)
			require.EqualError(t, err, tc.msg)
		})
	}
}
