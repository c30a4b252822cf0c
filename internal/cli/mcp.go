package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/config"
	redlinemcp "github.com/ppiankov/redline/internal/mcp"
)

var mcpDomains string

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpDomains, "domains", "", "Comma-separated domains to expose; empty exposes every policy")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs redline as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: rewrite, get_record, list_records, search_by_risk, review.\n" +
		"Calls without a domain use --domain.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("domains") {
		cfg.Domains = config.SplitList(mcpDomains)
	}

	// stdout carries the protocol; logs go to stderr only.
	log, err := newLogger()
	if err != nil {
		return err
	}
	alerts, err := newAlerts(log)
	if err != nil {
		return err
	}
	defer alerts.Wait()

	registry, _, err := openRegistry(cfg.Domains, log, nil, alerts)
	if err != nil {
		return fmt.Errorf("failed to open domains: %w", err)
	}
	defer registry.Close()

	srv := redlinemcp.New(registry, flagDomain, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("redline MCP server running on stdio", "domains", registry.Domains())
	return srv.Run(ctx)
}
