package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dmarsh/racode/internal/formatter"
	"github.com/dmarsh/racode/internal/indexer"
	"github.com/dmarsh/racode/internal/lsp"
	"github.com/dmarsh/racode/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "racode"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp          *server.MCPServer
	store        storage.Store
	indexer      *indexer.Indexer
	bridge       *lsp.Bridge
	logger       *slog.Logger
	contextLines int
}

// NewServer creates a new MCP server instance over already-constructed
// dependencies. The caller owns the store's lifetime.
func NewServer(store storage.Store, ix *indexer.Indexer, bridge *lsp.Bridge, logger *slog.Logger, contextLines int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if contextLines <= 0 {
		contextLines = formatter.DefaultContextLines
	}

	s := &Server{
		mcp:          server.NewMCPServer(ServerName, ServerVersion),
		store:        store,
		indexer:      ix,
		bridge:       bridge,
		logger:       logger,
		contextLines: contextLines,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("name", ServerName), slog.String("version", ServerVersion))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(getReferencesTool(), s.handleGetReferences)
	s.mcp.AddTool(getDefinitionTool(), s.handleGetDefinition)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
}
