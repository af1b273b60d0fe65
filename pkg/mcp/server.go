// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes operator controls over hosted agents as MCP tools.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/kairos-bdi/pkg/bdi"
	"github.com/jllopis/kairos-bdi/pkg/governance"
	"github.com/jllopis/kairos-bdi/pkg/runtime"
)

// Agents is the view of hosted agents the tools operate on.
// *runtime.Runtime implements it.
type Agents interface {
	Statuses() []runtime.AgentStatus
	Bridge(name string) (*bdi.Bridge, bool)
}

// Server wraps the mcp-go server with the bdiagent tool set.
type Server struct {
	mcpServer *server.MCPServer
	agents    Agents
	filter    *governance.ToolFilter
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithToolFilter hides the tools the filter rejects.
func WithToolFilter(filter *governance.ToolFilter) ServerOption {
	return func(s *Server) { s.filter = filter }
}

// NewServer creates a server and registers every tool the filter allows.
func NewServer(name, version string, agents Agents, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		agents:    agents,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves the stdio transport on in and out until EOF or until ctx
// is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler serves the streamable HTTP transport, for mounting on the
// admin router.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}
