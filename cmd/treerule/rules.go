package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/dgallion1/treerule/internal/parser"
	"github.com/dgallion1/treerule/internal/rules"
	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	var (
		format   string
		sortBy   string
		maxDepth int
		title    string
	)
	cmd := &cobra.Command{
		Use:   "rules <file>",
		Short: "print the rule reaching each leaf of a tree",
		Long: `
Print one row per leaf: its id, impurity, class counts and the feature
bounds on the path from the root. The input format follows the file
extension: .dot/.gv/.txt graphviz exports, .json/.yaml model documents,
.csv node tables, or .md/.html files holding a graphviz block.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			log := logger(cmd)
			p, err := parser.ForFile(path, parser.Options{MaxDepth: maxDepth, Logger: log})
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := p.Parse(f, filepath.Base(path))
			if err != nil {
				return errors.Wrapf(err, "%s", path)
			}
			log.Debug("extracted rules", "file", path, "leaves", table.Len())

			switch sortBy {
			case "none":
			case "impurity":
				table = table.SortedByImpurity()
			default:
				return errors.Newf("unknown sort %q: want impurity or none", sortBy)
			}

			if title == "" {
				title = filepath.Base(path)
			}
			out := cmd.OutOrStdout()
			switch format {
			case "table":
				rules.WriteText(out, table)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(table)
			case "markdown", "md":
				_, err := out.Write([]byte(rules.Markdown(title, table)))
				return err
			case "html":
				body, err := rules.HTML(title, table)
				if err != nil {
					return err
				}
				_, err = out.Write(body)
				return err
			default:
				return errors.Newf("unknown format %q: want table, json, markdown or html", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(
		&format, "format", "f", "table", "output format: table, json, markdown or html")
	cmd.Flags().StringVar(
		&sortBy, "sort", "none", "row order: impurity or none (tree order)")
	cmd.Flags().IntVar(
		&maxDepth, "max-depth", 0, "refuse trees deeper than this (0 uses the default limit)")
	cmd.Flags().StringVar(
		&title, "title", "", "report title for markdown and html output")
	return cmd
}
