package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jonwraymond/snippetrun/config"
	"github.com/jonwraymond/snippetrun/remote"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	configPath string
	endpoint   string
	timeout    time.Duration
	verbose    bool

	logger   *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

var rootCmd = &cobra.Command{
	Use:   "snippetrun",
	Short: "Run the code snippets of Markdown documents on a remote executor",
	Long: `snippetrun finds runnable code blocks in Markdown documents and sends
them to a remote execution service.

Blocks are fenced with an info string such as "c,runnable" or
"c,runnable,args". Lines between // START_HIGHLIGHT and // END_HIGHLIGHT
are the highlighted region; marker lines are never sent to the executor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			logLevel.SetLevel(zapcore.DebugLevel)
		}
		cfg.Level = logLevel
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Executor URL (overrides config and SNIPPETRUN_ENDPOINT)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-run timeout (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the configuration and applies the global flag
// overrides on top of it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Debug {
		logLevel.SetLevel(zapcore.DebugLevel)
	}
	if endpoint != "" {
		cfg.APIServer.URL = endpoint
	}
	if timeout > 0 {
		cfg.APIServer.TimeoutMs = int(timeout.Milliseconds())
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newClient(cfg config.Config) *remote.Client {
	return remote.New(cfg.Remote(newLogAdapter(logger)))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
