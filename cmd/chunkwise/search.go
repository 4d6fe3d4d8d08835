package main

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/chunkwise/internal/document"
)

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <file> <pattern>",
		Short: "Find regular-expression matches with surrounding context",
		Long: `Search a document with a Go regular expression. Matches are listed in
document order with their byte offsets and up to 50 bytes of context on
each side.

Examples:
  chunkwise search contract.pdf "(?i)termination"
  chunkwise search log.txt "ERROR \w+" --limit 20`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			return runSearch(e, args[0], args[1], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum matches to show (0 for all)")

	return cmd
}

func runSearch(e *env, path, pattern string, limit int) error {
	_, doc, err := e.load(path)
	if err != nil {
		return err
	}
	matches, err := doc.SearchN(pattern, limit)
	if err != nil {
		return err
	}
	if e.json {
		if matches == nil {
			matches = []document.Match{}
		}
		return e.writeJSON(matches)
	}

	if len(matches) == 0 {
		e.printf("No matches for %q\n", pattern)
		return nil
	}
	for _, m := range matches {
		e.printf("[%d-%d] %s\n", m.Start, m.End, m.Text)
		e.printf("    ...%s...\n", collapse(m.Context))
	}
	e.printf("\n%d matches\n", len(matches))
	return nil
}
