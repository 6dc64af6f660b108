package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/snippetrun/config"
	"github.com/jonwraymond/snippetrun/page"
	"github.com/jonwraymond/snippetrun/snippet"
	"github.com/jonwraymond/snippetrun/termrender"
)

var viewExpand bool

var viewCmd = &cobra.Command{
	Use:   "view FILE",
	Short: "Show the runnable snippets of a document as a reader sees them",
	Long: `Prints every runnable block of FILE. Blocks with highlight markers show
only the highlighted region unless --expand is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().BoolVar(&viewExpand, "expand", false, "Show the full code of collapsible snippets")
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := openPage(args[0], cfg, newClient(cfg))
	if err != nil {
		return err
	}
	defer p.Close()

	return printPage(cmd.Context(), cmd.OutOrStdout(), p, cfg, viewExpand)
}

// openPage reads and parses the document at path.
func openPage(path string, cfg config.Config, runner snippet.Runner) (*page.Page, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return page.New(src, cfg, runner, page.Options{
		Name:   path,
		Logger: newLogAdapter(logger),
	})
}

// printPage writes the current state of every snippet, expanding the
// collapsible ones first when expand is set.
func printPage(ctx context.Context, w io.Writer, p *page.Page, cfg config.Config, expand bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r := termrender.New(w, termrender.Options{ShowExitCode: cfg.ShowExitCode()})
	for _, s := range p.Snippets() {
		if expand && s.Controller.ToggleAvailable() && !s.Controller.State().Expanded {
			if _, err := p.Toggle(ctx, s.Controller.ID()); err != nil {
				return err
			}
		}
		r.Render(s.Controller.Snapshot())
	}
	return nil
}
