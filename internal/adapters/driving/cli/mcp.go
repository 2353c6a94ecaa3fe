package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/threatdocs/internal/adapters/driving/mcp"
)

var (
	mcpHTTP bool
	mcpAddr string
)

var mcpCmd = withServices(&cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants.

Use --http to serve over streamable HTTP instead, for the MCP Inspector or
remote access.

Examples:
  # Stdio mode (default, for Claude Desktop)
  threatdocs mcp

  # HTTP mode
  threatdocs mcp --http --addr 127.0.0.1:8081

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "threatdocs": {
        "command": "/path/to/threatdocs",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
})

func init() {
	mcpCmd.Flags().BoolVar(&mcpHTTP, "http", false, "serve over HTTP instead of stdio")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", "", "HTTP listen address (default from config)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ports := &mcp.Ports{
		Search:    searchService,
		Documents: documentService,
		Ingest:    ingestService,
	}

	server, err := mcp.NewServer(ports, version)
	if err != nil {
		return err
	}

	if mcpHTTP {
		addr := mcpAddr
		if addr == "" {
			addr = appConfig.MCP.Addr
		}
		cmd.Printf("MCP server listening on http://%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
