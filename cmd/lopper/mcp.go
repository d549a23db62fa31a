package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jward/lopper/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the scaffolding tools over MCP on stdio",
	Long:  "Exposes provision_repo, list_modules, excise_module and operation_log as Model Context Protocol tools, speaking the protocol on stdin/stdout.",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	s := server.NewMCPServer("lopper", version, server.WithToolCapabilities(true))
	mcptools.RegisterTools(s, svc)
	return server.ServeStdio(s)
}
