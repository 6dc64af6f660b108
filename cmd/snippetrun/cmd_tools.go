package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/snippetrun/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve run_snippet and view_snippet over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		log := newLogAdapter(logger)
		svc := tools.NewService(cfg, newClient(cfg), log)
		log.Info("serving MCP on stdio", "endpoint", cfg.APIServer.URL)
		return tools.Serve(ctx, svc, version)
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools exposed by the mcp command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc := tools.NewService(cfg, newClient(cfg), newLogAdapter(logger))
		printTools(cmd.OutOrStdout(), svc.ListTools())
		return nil
	},
}

func printTools(w io.Writer, list []model.Tool) {
	for _, t := range list {
		fmt.Fprintf(w, "%s:%s\t%s\t[%s]\n", t.Namespace, t.Name, t.Description, strings.Join(t.Tags, ", "))
	}
}
