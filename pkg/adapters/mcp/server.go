// Package mcp exposes the command set as Model Context Protocol tools, so an
// LLM client can drive the same sessions the backend does.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const methodsURI = "tendril://methods"

// Dispatcher executes requests and describes the available commands.
type Dispatcher interface {
	Do(ctx context.Context, req domain.Request) domain.Response
	Describe() []domain.MethodInfo
}

// Server wraps a Dispatcher and exposes it as an MCP Server.
type Server struct {
	dispatcher Dispatcher
	mcpServer  *server.MCPServer
	tools      []mcp.Tool
	logger     *slog.Logger
}

// NewServer creates a new MCP Server instance with one tool per command.
func NewServer(d Dispatcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		dispatcher: d,
		mcpServer:  server.NewMCPServer("tendril-mcp", version),
		logger:     logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Tools returns the registered tool definitions.
func (s *Server) Tools() []mcp.Tool {
	return s.tools
}

func (s *Server) registerTools() {
	for _, m := range s.dispatcher.Describe() {
		if m.Name == domain.IntrospectionFunction {
			// Tool listing already serves this purpose.
			continue
		}
		opts := []mcp.ToolOption{mcp.WithDescription(m.Doc)}
		for _, arg := range m.Args {
			opts = append(opts, mcp.WithString(arg, mcp.Description(fmt.Sprintf("%s argument of %s", arg, m.Name))))
		}
		opts = append(opts, mcp.WithString(domain.SessionParam,
			mcp.Description(fmt.Sprintf("Session id (default %q)", domain.DefaultSessionID))))

		tool := mcp.NewTool(m.Name, opts...)
		name := m.Name
		s.tools = append(s.tools, tool)
		s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.CallTool(ctx, name, request.GetArguments())
		})
	}
}

// CallTool runs command name with args as keyword arguments.
// Command failures are reported as tool errors, never as protocol errors.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	kwargs := make(map[string]any, len(args))
	for k, v := range args {
		if v == nil || v == "" {
			// Absent optional arguments keep their defaults.
			continue
		}
		kwargs[k] = v
	}

	resp := s.dispatcher.Do(ctx, domain.Request{Function: name, Kwargs: kwargs})
	if !resp.OK() {
		s.logger.Debug("mcp tool failed", "tool", name, "error", resp.Error)
		return mcp.NewToolResultError(resp.Error), nil
	}
	if text, ok := resp.Result.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(methodsURI, "Available Methods",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.dispatcher.Describe())
		if err != nil {
			return nil, fmt.Errorf("failed to describe methods: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      methodsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
