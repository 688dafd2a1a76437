package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/opsquery/sleuth-cli/internal/adapters/driving/mcp"
	"github.com/opsquery/sleuth-cli/internal/logger"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start an MCP server exposing sleuth's investigation engine to MCP clients.

By default the server speaks stdio, which is what most MCP clients expect.
Pass --port to serve over streamable HTTP instead.`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVar(&mcpPort, "port", 0, "serve over HTTP on this port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcpserver.NewServer(&mcpserver.Ports{
		Investigator: investigator,
		Catalog:      catalog,
		Evidence:     evidenceStore,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		logger.Info("Starting MCP server on %s", addr)
		return server.RunHTTP(ctx, addr)
	}

	// Stdio transport: the protocol owns stdout, so any logging must
	// stay on stderr.
	logger.Info("Starting MCP server on stdio")
	return server.Run(ctx)
}
