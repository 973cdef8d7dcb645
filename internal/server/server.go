// Package server exposes the tool registry over the Model Context Protocol,
// on stdio for local clients and optionally over streamable HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"toolbridge/internal/domain"
	"toolbridge/internal/tool"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const instructions = `toolbridge provides small, focused tools for Notion notes, GitHub issues,
current weather, and files under a managed data directory. External integrations
need credentials from the environment; call get_server_info to see which ones
are configured before relying on them.`

// shutdownGrace bounds how long an HTTP shutdown may drain in-flight requests.
const shutdownGrace = 10 * time.Second

// Config wires the MCP server.
type Config struct {
	Registry *tool.Registry
	Name     string
	Version  string
	Logger   *slog.Logger
}

// Server adapts the registry to MCP transports. All dispatch semantics live
// in the registry; this layer only translates requests and results.
type Server struct {
	mcp      *mcpserver.MCPServer
	registry *tool.Registry
	logger   *slog.Logger
}

// New builds the MCP server and exposes every registered tool on it.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(instructions),
	)

	s := &Server{mcp: m, registry: cfg.Registry, logger: logger}

	descs := cfg.Registry.Descriptors()
	for _, desc := range descs {
		m.AddTool(toMCPTool(desc), s.handlerFor(desc.Name))
	}
	logger.Info("mcp server ready", "name", cfg.Name, "version", cfg.Version, "tools", len(descs))

	return s
}

// ServeStdio serves MCP on stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("serving on stdio")
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeHTTP serves MCP over streamable HTTP on addr until ctx is cancelled,
// then drains in-flight requests within the shutdown grace period.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(addr)
	}()
	s.logger.Info("serving on http", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// handlerFor adapts one tool to the MCP handler contract. Tool failures are
// reported as error results inside the protocol, never as protocol errors.
func (s *Server) handlerFor(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := s.registry.Dispatch(ctx, domain.Request{
			Name:      name,
			Arguments: request.GetArguments(),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(payload), nil
	}
}

func toMCPTool(desc domain.ToolDescriptor) mcp.Tool {
	props := make(map[string]any, len(desc.Schema.Properties))
	for name, p := range desc.Schema.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[name] = prop
	}
	return mcp.Tool{
		Name:        desc.Name,
		Description: desc.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   desc.Schema.Required,
		},
	}
}
