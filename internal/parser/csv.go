package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/treerule/internal/clftree"
	"github.com/dgallion1/treerule/internal/rules"
)

// csvColumns are the required header names, one row per node.
var csvColumns = []string{"id", "left", "right", "feature", "threshold", "impurity", "value"}

// CSVParser handles one-row-per-node dumps of a tree. The feature column
// holds the feature name, empty for leaves; value holds the count vector
// separated by spaces or commas.
type CSVParser struct {
	Walk clftree.Options
}

func (p *CSVParser) Parse(r io.Reader, filename string) (*rules.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("parse csv: %s has no node rows", filename)
	}

	col := map[string]int{}
	for i, h := range records[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range csvColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("parse csv: missing column %q", name)
		}
	}

	rows := records[1:]
	n := len(rows)
	m := &clftree.Model{Tree: clftree.Tree{
		ChildrenLeft:  make([]int, n),
		ChildrenRight: make([]int, n),
		Feature:       make([]int, n),
		Threshold:     make([]float64, n),
		Impurity:      make([]float64, n),
		Value:         make([][]float64, n),
	}}
	featureIndex := map[string]int{}
	filled := make([]bool, n)

	for line, row := range rows {
		get := func(name string) string { return strings.TrimSpace(row[col[name]]) }
		rowErr := func(err error) error { return fmt.Errorf("parse csv: row %d: %w", line+2, err) }

		id, err := strconv.Atoi(get("id"))
		if err != nil {
			return nil, rowErr(err)
		}
		if id < 0 || id >= n || filled[id] {
			return nil, rowErr(fmt.Errorf("node id %d duplicated or out of range", id))
		}
		filled[id] = true

		t := &m.Tree
		if t.ChildrenLeft[id], err = strconv.Atoi(get("left")); err != nil {
			return nil, rowErr(err)
		}
		if t.ChildrenRight[id], err = strconv.Atoi(get("right")); err != nil {
			return nil, rowErr(err)
		}
		if t.Impurity[id], err = strconv.ParseFloat(get("impurity"), 64); err != nil {
			return nil, rowErr(err)
		}
		if t.Value[id], err = parseVector(get("value")); err != nil {
			return nil, rowErr(err)
		}

		name := get("feature")
		if name == "" {
			t.Feature[id], t.Threshold[id] = -2, -2
			continue
		}
		idx, ok := featureIndex[name]
		if !ok {
			idx = len(m.Features)
			featureIndex[name] = idx
			m.Features = append(m.Features, name)
		}
		t.Feature[id] = idx
		if t.Threshold[id], err = strconv.ParseFloat(get("threshold"), 64); err != nil {
			return nil, rowErr(err)
		}
	}
	if len(m.Features) == 0 {
		// A single-leaf tree splits on nothing; give the walk a placeholder.
		m.Features = []string{"_"}
	}
	return m.Leaves(p.Walk)
}

func parseVector(s string) ([]float64, error) {
	s = strings.NewReplacer("[", " ", "]", " ", ",", " ").Replace(s)
	var out []float64
	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
