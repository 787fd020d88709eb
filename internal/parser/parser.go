package parser

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/treerule/internal/clftree"
	"github.com/dgallion1/treerule/internal/rules"
)

// Parser converts a serialized tree into its leaf rule table.
type Parser interface {
	Parse(r io.Reader, filename string) (*rules.Table, error)
}

// Options is shared by every parser.
type Options struct {
	// MaxDepth limits the structural walk; zero uses clftree.DefaultMaxDepth.
	MaxDepth int
	// Logger receives warnings from the graphviz extractor. May be nil.
	Logger *slog.Logger
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".dot":      true,
	".gv":       true,
	".txt":      true,
	".json":     true,
	".yaml":     true,
	".yml":      true,
	".csv":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	walk := clftree.Options{MaxDepth: opts.MaxDepth}
	switch ext {
	case ".dot", ".gv", ".txt":
		return &DOTParser{Logger: opts.Logger}, nil
	case ".json":
		return &ModelParser{Format: FormatJSON, Walk: walk}, nil
	case ".yaml", ".yml":
		return &ModelParser{Format: FormatYAML, Walk: walk}, nil
	case ".csv":
		return &CSVParser{Walk: walk}, nil
	case ".md", ".markdown":
		return &MarkdownParser{DOT: DOTParser{Logger: opts.Logger}}, nil
	case ".html", ".htm":
		return &HTMLParser{DOT: DOTParser{Logger: opts.Logger}}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
