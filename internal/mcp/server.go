package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/indexer"
	"github.com/dshills/entityres/internal/resolver"
	"github.com/dshills/entityres/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "entityres"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	registry storage.Registry
	resolver *resolver.Resolver
	indexer  *indexer.Indexer
	logger   *zap.Logger
}

// NewServer creates an MCP server over an already wired registry, resolver
// and indexer. The caller keeps ownership of the registry.
func NewServer(registry storage.Registry, res *resolver.Resolver, idx *indexer.Indexer, logger *zap.Logger) (*Server, error) {
	if registry == nil || res == nil || idx == nil {
		return nil, errors.New("registry, resolver and indexer are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
		),
		registry: registry,
		resolver: res,
		indexer:  idx,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until the client
// disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", zap.String("version", ServerVersion))
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(resolveEntityTool(), s.handleResolveEntity)
	s.mcp.AddTool(reembedRegistryTool(), s.handleReembedRegistry)
	s.mcp.AddTool(registryStatusTool(), s.handleRegistryStatus)
}
