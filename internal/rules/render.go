package rules

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

func formatImpurity(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatCount(c []int) string {
	parts := make([]string, len(c))
	for i, n := range c {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// WriteText renders t as a boxed text table with columns id, impurity, count
// and rule.
func WriteText(w io.Writer, t *Table) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"id", "impurity", "count", "rule"})
	tbl.SetAutoWrapText(false)
	for _, l := range t.Leaves {
		tbl.Append([]string{
			strconv.Itoa(l.ID),
			formatImpurity(l.Impurity),
			formatCount(l.Count),
			l.Conjunction(),
		})
	}
	tbl.Render()
}

// Markdown renders t as a GitHub-flavoured markdown table.
func Markdown(title string, t *Table) string {
	var sb strings.Builder
	if title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", title)
	}
	sb.WriteString("| id | impurity | count | rule |\n")
	sb.WriteString("|---:|---:|---|---|\n")
	for _, l := range t.Leaves {
		rule := l.Conjunction()
		if rule == "" {
			rule = "(always)"
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n",
			l.ID, formatImpurity(l.Impurity), formatCount(l.Count), escapeCell(rule))
	}
	return sb.String()
}

// HTML renders the markdown form of t to an HTML fragment.
func HTML(title string, t *Table) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(title, t)), &buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
