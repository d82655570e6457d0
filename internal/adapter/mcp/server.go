// Package mcp serves read-only views of stored projects and graphs over the
// Model Context Protocol (streamable HTTP transport).
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/agentgraph/internal/domain/agentgraph"
	"github.com/Strob0t/agentgraph/internal/domain/project"
	"github.com/Strob0t/agentgraph/internal/domain/scope"
	"github.com/Strob0t/agentgraph/internal/port/database"
)

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	// APIKey, when set, is required as a bearer token on every request.
	APIKey string
}

// ProjectReader lists and materializes projects.
type ProjectReader interface {
	ListProjects(ctx context.Context, tenantID string, opts database.ListOptions) (database.Page[project.Project], error)
	GetFullProject(ctx context.Context, sc scope.Scope) (*project.FullProjectDefinition, error)
}

// GraphReader materializes single graphs.
type GraphReader interface {
	MaterializeGraph(ctx context.Context, sc scope.Scope) (*agentgraph.FullGraphDefinition, error)
}

// ServerDeps holds the readers backing the tools. Nil readers make their
// tools report an error.
type ServerDeps struct {
	Projects ProjectReader
	Graphs   GraphReader
}

// Server wraps an mcp-go server and its HTTP listener.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates a server with every tool registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the authenticated streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
}

// Start listens on cfg.Addr and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	slog.Info("mcp server listening", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
