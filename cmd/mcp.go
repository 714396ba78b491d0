package cmd

import (
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/Cooksey99/nucleus/internal/plugin"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose Nucleus plugins as an MCP server",
	Long: `Starts Nucleus's plugin registry as a Model Context Protocol (MCP)
server, so an external MCP client (Claude Desktop, Cursor, Amp) can invoke
the same tools the in-process provider tool-call loop does.

Transports:
  stdio (default) - for local desktop apps
  http            - for remote/cloud deployments

Example:
  nucleus mcp
  nucleus mcp --transport http --port 8081

Configure in an MCP client's config:
  {
    "mcpServers": {
      "nucleus": {
        "command": "nucleus",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport type: stdio or http")
	mcpCmd.Flags().Int("port", 8081, "HTTP server port (for http transport)")
	mcpCmd.Flags().String("host", "0.0.0.0", "HTTP server host (for http transport)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := loadConfigForCommand()
	if err != nil {
		return err
	}

	registry := buildPluginRegistry(cfg)

	s := server.NewMCPServer(
		"nucleus",
		"0.2.0",
		server.WithToolCapabilities(true),
	)

	if err := plugin.RegisterMCPTools(registry, s); err != nil {
		return fmt.Errorf("register mcp tools: %w", err)
	}

	switch transport {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("mcp server error: %w", err)
		}
		return nil

	case "http":
		addr := fmt.Sprintf("%s:%d", host, port)
		fmt.Printf("Nucleus MCP server starting on http://%s\n", addr)
		fmt.Printf("  Endpoint: http://%s/mcp\n", addr)

		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","server":"nucleus-mcp"}`))
		})
		mux.Handle("/mcp", server.NewStreamableHTTPServer(s, server.WithStateful(true)))

		httpServer := &http.Server{Addr: addr, Handler: mux}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or http)", transport)
	}
}
