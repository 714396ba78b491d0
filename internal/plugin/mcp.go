package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools exposes every plugin in r as an MCP tool on s, so an
// external MCP client (Claude Desktop, Cursor, Amp) can invoke the same
// plugins the in-process provider tool-call loop does. Each tool's input
// schema is the plugin's own ParameterSchema verbatim.
func RegisterMCPTools(r *Registry, s *server.MCPServer) error {
	for _, p := range r.All() {
		schema, err := json.Marshal(p.ParameterSchema())
		if err != nil {
			return fmt.Errorf("plugin mcp: marshal schema for %q: %w", p.Name(), err)
		}

		tool := mcp.NewToolWithRawSchema(p.Name(), p.Description(), schema)
		s.AddTool(tool, mcpHandler(r, p.Name()))
	}
	return nil
}

// mcpHandler bridges an mcp.CallToolRequest into a Registry.Execute call,
// so permission gating and error-kind mapping happen in one place
// regardless of which transport (IPC, MCP) invoked the plugin.
func mcpHandler(r *Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		out, err := r.Execute(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}
