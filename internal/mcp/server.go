// Package mcp exposes rewrite, lookup, and review operations as MCP tools
// over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/redline/internal/service"
)

// Server wraps the MCP SDK server around the domain registry.
type Server struct {
	mcpServer *mcpsdk.Server
	registry  *service.Registry
	// defaultDomain is used when a tool call names no domain.
	defaultDomain string
}

// New creates an MCP server with all tools registered. defaultDomain may
// be empty when every call must name its domain.
func New(registry *service.Registry, defaultDomain, version string) *Server {
	s := &Server{registry: registry, defaultDomain: defaultDomain}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "redline",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all redline tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "redline_rewrite",
		Description: "Rewrite a message for compliance under a domain policy. Returns the rewritten text, risk level, flagged phrases and a trace_id for review.",
	}, s.handleRewrite)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "redline_get_record",
		Description: "Fetch the current audit record for a trace_id.",
	}, s.handleGetRecord)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "redline_list_records",
		Description: "List the most recent audit records, newest last.",
	}, s.handleListRecords)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "redline_search_by_risk",
		Description: "List current audit records at a risk level (low, medium or high).",
	}, s.handleSearchByRisk)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "redline_review",
		Description: "Approve, reject or edit a rewrite. Edit requires edited_email, which replaces the rewritten text.",
	}, s.handleReview)
}
