// Package mcp provides an MCP (Model Context Protocol) server for decoding
// copilot streams and inspecting recorded ones.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/sse"
	"github.com/wso2/copilotsse/pkg/storage"
	"github.com/wso2/copilotsse/pkg/utils"
)

type Config struct {
	// Driver loads recorded streams
	Driver storage.Driver

	// Registry decodes event payloads. A default registry is built when nil.
	Registry *copilot.Registry

	// DecoderOptions are the defaults for the decode_stream tool
	DecoderOptions []sse.Option

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	registry  *copilot.Registry
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the stream tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "copilotsse",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s.registry = c.Registry
	if s.registry == nil {
		reg, err := copilot.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("could not create event registry: %w", err)
		}
		s.registry = reg
	}

	// Add tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        decodeToolName,
		Description: decodeDescription,
	}, s.handleDecode)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        transcriptToolName,
		Description: transcriptDescription,
	}, s.handleTranscript)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listStreamsToolName,
		Description: listStreamsDescription,
	}, s.handleListStreams)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server, or nil for a noop
// server.
func (s *Server) Handler() http.Handler {
	if s.handler == nil {
		return nil
	}
	return s.handler
}

// MCPServer returns the underlying MCP server, for serving it over
// transports other than HTTP.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// toolError builds the result for a tool call that failed on its input or on
// a backend.
func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// toolResult serializes the structured output as JSON for the text field.
// Per MCP spec: tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility
func toolResult(output any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, nil
}
