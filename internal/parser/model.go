package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/treerule/internal/clftree"
	"github.com/dgallion1/treerule/internal/rules"
)

// ModelFormat selects the encoding of a model document.
type ModelFormat int

const (
	FormatJSON ModelFormat = iota
	FormatYAML
)

// ModelParser handles feature names plus node arrays as JSON or YAML.
type ModelParser struct {
	Format ModelFormat
	Walk   clftree.Options
}

func (p *ModelParser) Parse(r io.Reader, filename string) (*rules.Table, error) {
	var (
		m   *clftree.Model
		err error
	)
	switch p.Format {
	case FormatJSON:
		m, err = clftree.DecodeJSON(r)
	case FormatYAML:
		m, err = clftree.DecodeYAML(r)
	default:
		return nil, fmt.Errorf("unknown model format %d", p.Format)
	}
	if err != nil {
		return nil, err
	}
	return m.Leaves(p.Walk)
}
