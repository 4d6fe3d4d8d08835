package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dgallion1/chunkwise/internal/config"
	"github.com/dgallion1/chunkwise/internal/document"
	"github.com/dgallion1/chunkwise/internal/parser"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	json      bool
	verbose   bool
	plansFile string
}

// env is what every command needs after flags are parsed.
type env struct {
	cfg     config.Config
	log     *slog.Logger
	planner *pipeline.Planner
	out     io.Writer
	json    bool
}

// NewRootCmd creates the root command for the chunkwise CLI.
func NewRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:   "chunkwise",
		Short: "Work with documents too large for one context window",
		Long: `chunkwise loads a document (text, markdown, csv, html, pdf or docx),
reports its structure, searches it with regular expressions, splits it
into chunks and fans a question out to one Claude sub-agent per chunk.

Examples:
  chunkwise inspect report.pdf
  chunkwise search report.pdf "(?i)revenue"
  chunkwise chunk report.pdf --strategy semantic --size 30000
  chunkwise tasks report.pdf "What was revenue in Q4?" --archetype needle-search
  chunkwise query report.pdf "Summarize the risks" --archetype summarization`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")
	cmd.PersistentFlags().StringVar(&opts.plansFile, "plans", "", "YAML file overriding archetype plans (default: $PLANS_FILE)")

	cmd.AddCommand(newInspectCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newChunkCmd(&opts))
	cmd.AddCommand(newTasksCmd(&opts))
	cmd.AddCommand(newQueryCmd(&opts))

	return cmd
}

func newEnv(cmd *cobra.Command, opts *globalOptions) (*env, error) {
	cfg := config.Load()
	if opts.plansFile != "" {
		cfg.PlansFile = opts.plansFile
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(logHandler(cmd.ErrOrStderr(), level))

	planner, err := pipeline.LoadPlanner(cfg.PlansFile)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:     cfg,
		log:     log,
		planner: planner,
		out:     cmd.OutOrStdout(),
		json:    opts.json,
	}, nil
}

// logHandler writes text logs to a terminal and JSON lines anywhere else, so
// redirected stderr stays machine readable.
func logHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && !isTerminal(f) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// load parses path and wraps its text in a document context.
func (e *env) load(path string) (*parser.Document, *document.Context, error) {
	parsed, err := parser.ParseFile(path, parser.Options{PDFFallback: e.cfg.PDFFallbackPdftotext})
	if err != nil {
		return nil, nil, err
	}
	e.log.Info("document loaded",
		"path", path,
		"format", parsed.Format,
		"bytes", len(parsed.Text),
	)
	return parsed, document.New(parsed.Text), nil
}

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
