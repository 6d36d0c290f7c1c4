package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/foliodev/folio/internal/service"
)

// MCPServer wraps the mcp-go server with folio's tool and resource
// registrations. It exposes the public content buckets to agents. Nothing
// registered here can write; edits go through the authenticated HTTP API.
type MCPServer struct {
	content *service.ContentService
	logger  *slog.Logger
	server  *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with the content tools and
// resources. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(content *service.ContentService, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if version == "" {
		version = "dev"
	}
	s := &MCPServer{
		content: content,
		logger:  logger,
	}

	mcpServer := server.NewMCPServer(
		"Folio Portfolio Content",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// folio as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:   boolPtr(true),
		IdempotentHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
