package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonwraymond/snippetrun/config"
	"github.com/jonwraymond/snippetrun/snippet"
)

// watchDebounce batches the bursts of events editors emit for one save.
const watchDebounce = 200 * time.Millisecond

var watchRun bool

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Re-render the snippets of a document whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchRun, "run", false, "Also run the snippets after each change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	runner := newClient(cfg)
	out := cmd.OutOrStdout()
	refresh := func() {
		if err := renderFile(ctx, out, args[0], cfg, runner, watchRun); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}
	refresh()
	return watchFile(ctx, args[0], refresh)
}

// renderFile parses path and prints its snippets, running them first when
// run is set.
func renderFile(ctx context.Context, w io.Writer, path string, cfg config.Config, runner snippet.Runner, run bool) error {
	p, err := openPage(path, cfg, runner)
	if err != nil {
		return err
	}
	defer p.Close()

	if run {
		return executePage(ctx, w, p, cfg, -1, "")
	}
	return printPage(ctx, w, p, cfg, false)
}

// watchFile calls onChange after path is written or replaced, until ctx
// ends. The parent directory is watched so editors that save by rename are
// still seen.
func watchFile(ctx context.Context, path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			pending = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Warn("watch error", zap.String("path", path), zap.Error(err))
			}

		case <-pending:
			pending = nil
			onChange()
		}
	}
}
