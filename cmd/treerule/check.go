package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dgallion1/treerule/internal/dotparse"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.dot>",
		Short: "check a graphviz export for positional leaf ordering problems",
		Long: `
Parse a graphviz export and report whether each leaf's position in the
file agrees with the branches declared by its edges. Leaf rules from
the graphviz extractor follow file position, so a disagreement means
some rules take the wrong side of a split. Exits non-zero when any leaf
disagrees or the rules cannot be rebuilt.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := dotparse.Parse(string(src))
			if err != nil {
				return errors.Wrapf(err, "%s", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "leaves: %d\n", len(doc.Leaves))
			fmt.Fprintf(out, "splits: %d\n", len(doc.Nodes))
			fmt.Fprintf(out, "features: %s\n", strings.Join(splitFeatures(doc), ", "))

			mismatches := doc.PositionalMismatches()
			if len(mismatches) == 0 {
				fmt.Fprintf(out, "positional mismatches: none\n")
			} else {
				fmt.Fprintf(out, "positional mismatches: %v\n", mismatches)
			}

			if _, err := doc.Rules(dotparse.Options{Logger: logger(cmd)}); err != nil {
				return errors.Wrapf(err, "%s", args[0])
			}
			if len(mismatches) > 0 {
				return errors.Newf("%d of %d leaves disagree with their declared branches", len(mismatches), len(doc.Leaves))
			}
			return nil
		},
	}
}

func splitFeatures(doc *dotparse.Document) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range doc.Nodes {
		if !seen[c.Feature] {
			seen[c.Feature] = true
			out = append(out, c.Feature)
		}
	}
	sort.Strings(out)
	return out
}
