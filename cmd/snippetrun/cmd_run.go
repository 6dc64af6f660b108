package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonwraymond/snippetrun/config"
	"github.com/jonwraymond/snippetrun/page"
	"github.com/jonwraymond/snippetrun/termrender"
)

// errSnippetsFailed is returned when at least one snippet did not succeed.
var errSnippetsFailed = errors.New("snippets failed")

var (
	runArgs string
	runOnly int
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Run the snippets of a document on the executor",
	Long: `Runs every runnable block of FILE, or only the block at --only, and
prints each result. Arguments given with --args reach only blocks marked
",args". The command fails when any snippet fails.

Example:
  snippetrun run docs/pointers.md --args "3 4"
  snippetrun run docs/pointers.md --only 2`,
	Args: cobra.ExactArgs(1),
	RunE: runSnippets,
}

func init() {
	runCmd.Flags().StringVar(&runArgs, "args", "", "Arguments for blocks marked \",args\"")
	runCmd.Flags().IntVar(&runOnly, "only", -1, "Run only the snippet at this zero-based index")
}

func runSnippets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openPage(args[0], cfg, newClient(cfg))
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return executePage(ctx, cmd.OutOrStdout(), p, cfg, runOnly, runArgs)
}

// executePage runs the selected snippets of p and writes their results.
// only < 0 selects every snippet.
func executePage(ctx context.Context, w io.Writer, p *page.Page, cfg config.Config, only int, args string) error {
	selected := p.Snippets()
	if only >= 0 {
		s, ok := p.At(only)
		if !ok {
			return fmt.Errorf("%w: index %d (document has %d)", page.ErrSnippetNotFound, only, len(selected))
		}
		if _, err := p.Run(ctx, s.Controller.ID(), args); err != nil {
			return err
		}
		selected = selected[only : only+1]
	} else if err := p.RunAll(ctx, args); err != nil {
		return err
	}

	r := termrender.New(w, termrender.Options{ShowExitCode: cfg.ShowExitCode()})
	failed := 0
	for _, s := range selected {
		state := s.Controller.Snapshot()
		r.Render(state)
		if state.Result == nil || !state.Result.OK {
			failed++
		}
	}
	if logger != nil {
		logger.Debug("run finished", zap.String("page", p.Name()), zap.Int("ran", len(selected)), zap.Int("failed", failed))
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSnippetsFailed, failed, len(selected))
	}
	return nil
}
