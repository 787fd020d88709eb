// Package dotparse reads the graphviz text export of a fitted decision tree
// and rebuilds leaf rules from it.
package dotparse

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMalformedDocument is the kind of error returned for any input that does
// not follow the exported tree layout.
var ErrMalformedDocument = errors.New("malformed document")

// statementSep ends every statement in the export.
const statementSep = ";\n"

// labelBreak separates the lines of a node label. It is the two characters
// backslash and n, not a newline.
const labelBreak = `\n`

// impurityKeywords are the criterion names a leaf label starts with.
var impurityKeywords = map[string]bool{
	"gini":           true,
	"entropy":        true,
	"log_loss":       true,
	"squared_error":  true,
	"friedman_mse":   true,
	"absolute_error": true,
	"poisson":        true,
	"mse":            true,
	"mae":            true,
}

// Criterion is the split test of an internal node, e.g. {"SIZEX", "<= 1.4005"}.
type Criterion struct {
	Feature    string
	Comparison string
}

// LeafStats is the per-leaf statistics copied from its label.
type LeafStats struct {
	ID       int
	Impurity float64
	Samples  int
	Count    []int
}

// Document is a parsed export: the criteria of internal nodes, the leaves in
// order of appearance, the single-parent map rebuilt from edges, and the
// children of each node in declaration order.
type Document struct {
	Nodes    map[int]Criterion
	Leaves   []LeafStats
	Parents  map[int]int
	Children map[int][]int
}

// Parse reads an exported tree. The text up to the opening brace and the
// text after the last statement separator (the closing brace) are dropped.
func Parse(src string) (*Document, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	parts := strings.Split(src, statementSep)
	if len(parts) < 2 {
		return nil, errors.Mark(errors.New("no statements between header and footer"), ErrMalformedDocument)
	}
	_, first, ok := strings.Cut(parts[0], "{")
	if !ok {
		return nil, errors.Mark(errors.New("missing graph header"), ErrMalformedDocument)
	}
	stmts := append([]string{first}, parts[1:len(parts)-1]...)

	doc := &Document{
		Nodes:    map[int]Criterion{},
		Parents:  map[int]int{},
		Children: map[int][]int{},
	}
	var edges []string
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		switch {
		case stmt == "" || isAttrStatement(stmt):
		case isEdgeStatement(stmt):
			edges = append(edges, stmt)
		default:
			if err := doc.addNode(stmt); err != nil {
				return nil, err
			}
		}
	}
	if len(doc.Nodes)+len(doc.Leaves) == 0 {
		return nil, errors.Mark(errors.New("no node statements"), ErrMalformedDocument)
	}
	for _, e := range edges {
		if err := doc.addEdge(e); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// isAttrStatement matches default-attribute statements such as
// `node [shape=box]`.
func isAttrStatement(stmt string) bool {
	for _, kw := range []string{"node", "edge", "graph"} {
		if rest, ok := strings.CutPrefix(stmt, kw); ok && strings.HasPrefix(strings.TrimSpace(rest), "[") {
			return true
		}
	}
	return false
}

func isEdgeStatement(stmt string) bool {
	f := strings.Fields(stmt)
	return len(f) >= 2 && f[1] == "->"
}

func malformed(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedDocument)
}

// addEdge records `<parent> -> <child> [attrs]`.
func (d *Document) addEdge(stmt string) error {
	f := strings.Fields(stmt)
	if len(f) < 3 || f[1] != "->" {
		return malformed("edge %q: want \"<parent> -> <child>\"", stmt)
	}
	parent, err := strconv.Atoi(f[0])
	if err != nil {
		return malformed("edge %q: bad parent id", stmt)
	}
	child, err := strconv.Atoi(f[2])
	if err != nil {
		return malformed("edge %q: bad child id", stmt)
	}
	if p, ok := d.Parents[child]; ok {
		return malformed("node %d has parents %d and %d", child, p, parent)
	}
	d.Parents[child] = parent
	d.Children[parent] = append(d.Children[parent], child)
	return nil
}

// addNode classifies `<id> [label="..."]` as a leaf or an internal node.
func (d *Document) addNode(stmt string) error {
	idText, rest, ok := strings.Cut(stmt, " ")
	if !ok {
		return malformed("node %q: missing label", stmt)
	}
	id, err := strconv.Atoi(idText)
	if err != nil {
		return malformed("node %q: bad id", stmt)
	}
	quoted := strings.Split(rest, `"`)
	if len(quoted) < 3 || !strings.Contains(quoted[0], "label=") {
		return malformed("node %d: missing label", id)
	}
	lines := strings.Split(quoted[1], labelBreak)
	key, val, ok := strings.Cut(lines[0], " ")
	if !ok {
		return malformed("node %d: label %q has no criterion", id, lines[0])
	}
	if impurityKeywords[key] {
		leaf, err := parseLeaf(id, val, lines[1:])
		if err != nil {
			return err
		}
		d.Leaves = append(d.Leaves, leaf)
		return nil
	}
	c, err := parseCriterion(lines[0])
	if err != nil {
		return errors.Wrapf(err, "node %d", id)
	}
	d.Nodes[id] = c
	return nil
}

// leReplacer maps the entity and the decoded sign that special-character
// exports print for "<=".
var leReplacer = strings.NewReplacer("&le;", "<=", "\u2264", "<=")

// parseCriterion splits "SIZEX <= 1.4005" at the comparison operator so that
// feature names may contain spaces.
func parseCriterion(text string) (Criterion, error) {
	text = leReplacer.Replace(text)
	i := strings.LastIndex(text, " <= ")
	if i < 0 {
		return Criterion{}, malformed("criterion %q: missing \"<=\"", text)
	}
	feature := strings.TrimSpace(text[:i])
	threshold := strings.TrimSpace(text[i+len(" <= "):])
	if feature == "" {
		return Criterion{}, malformed("criterion %q: missing feature", text)
	}
	if _, err := strconv.ParseFloat(threshold, 64); err != nil {
		return Criterion{}, malformed("criterion %q: threshold %q is not a number", text, threshold)
	}
	return Criterion{Feature: feature, Comparison: "<= " + threshold}, nil
}

// parseLeaf reads "gini = 0.0136" plus the "samples = N" and
// "value = [a, b, ...]" label lines.
func parseLeaf(id int, impurityText string, lines []string) (LeafStats, error) {
	leaf := LeafStats{ID: id}
	raw := strings.TrimSpace(strings.TrimPrefix(impurityText, "= "))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return leaf, malformed("leaf %d: impurity %q is not a number", id, raw)
	}
	leaf.Impurity = v

	var sawValue bool
	for i := 0; i < len(lines); i++ {
		key, val, ok := strings.Cut(lines[i], " = ")
		if !ok {
			continue
		}
		switch key {
		case "samples":
			// Exports with proportion=True print a percentage here.
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				leaf.Samples = n
			}
		case "value":
			// Long vectors wrap onto the following label lines.
			for i+1 < len(lines) && !strings.Contains(lines[i+1], " = ") {
				i++
				val += " " + lines[i]
			}
			counts, err := parseCounts(val)
			if err != nil {
				return leaf, errors.Wrapf(err, "leaf %d", id)
			}
			leaf.Count = counts
			sawValue = true
		}
	}
	if !sawValue {
		return leaf, malformed("leaf %d: label has no value line", id)
	}
	return leaf, nil
}

// parseCounts decodes "[0, 8, 0, 156]" into integers, truncating any
// fractional part.
func parseCounts(text string) ([]int, error) {
	trimmed := strings.NewReplacer("[", " ", "]", " ").Replace(text)
	var out []int
	for _, f := range strings.FieldsFunc(trimmed, func(r rune) bool { return r == ',' || r == ' ' }) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, malformed("count %q in %q is not a number", f, text)
		}
		out = append(out, int(v))
	}
	if len(out) == 0 {
		return nil, malformed("count list %q is empty", text)
	}
	return out, nil
}
