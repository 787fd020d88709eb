package parser

import (
	"io"
	"log/slog"

	"github.com/dgallion1/treerule/internal/dotparse"
	"github.com/dgallion1/treerule/internal/rules"
)

// DOTParser handles graphviz exports of a fitted tree.
type DOTParser struct {
	Logger *slog.Logger
}

func (p *DOTParser) Parse(r io.Reader, filename string) (*rules.Table, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return p.parseString(string(src), filename)
}

func (p *DOTParser) parseString(src, filename string) (*rules.Table, error) {
	opts := dotparse.Options{}
	if p.Logger != nil {
		opts.Logger = p.Logger.With("file", filename)
	}
	return dotparse.Extract(src, opts)
}
