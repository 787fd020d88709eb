package parser

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/dgallion1/treerule/internal/rules"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNoTreeSource is returned when an embedding document carries no graphviz
// tree.
var ErrNoTreeSource = errors.New("no graphviz tree found")

// MarkdownParser handles Markdown notes with the export in a fenced code
// block tagged dot or graphviz. An untagged block is used when it starts with
// "digraph".
type MarkdownParser struct {
	DOT DOTParser
}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*rules.Table, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var found string
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		body := codeText(block, src)
		lang := strings.ToLower(string(block.Language(src)))
		if lang == "dot" || lang == "graphviz" || (lang == "" && strings.HasPrefix(strings.TrimSpace(body), "digraph")) {
			found = body
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if found == "" {
		return nil, ErrNoTreeSource
	}
	return p.DOT.parseString(found, filename)
}

// codeText returns the raw lines of a code block.
func codeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}
