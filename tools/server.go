package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the MCP implementation name.
const ServerName = "snippetrun"

// NewServer returns an MCP server exposing the service's tools.
func NewServer(svc *Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)
	svc.Register(server)
	return server
}

// Register adds the service's tools to server.
func (s *Service) Register(server *mcp.Server) {
	for _, tool := range s.ListTools() {
		def := tool.Tool
		switch def.Name {
		case RunToolName:
			mcp.AddTool(server, &def, s.handleRun)
		case ViewToolName:
			mcp.AddTool(server, &def, s.handleView)
		}
	}
}

func (s *Service) handleRun(ctx context.Context, _ *mcp.CallToolRequest, in RunInput) (*mcp.CallToolResult, RunOutput, error) {
	out, err := s.RunSnippet(ctx, in)
	if err != nil {
		return nil, RunOutput{}, err
	}
	return &mcp.CallToolResult{
		IsError: !out.OK,
		Content: []mcp.Content{&mcp.TextContent{Text: out.DisplayText}},
	}, out, nil
}

func (s *Service) handleView(ctx context.Context, _ *mcp.CallToolRequest, in ViewInput) (*mcp.CallToolResult, ViewOutput, error) {
	out, err := s.ViewSnippet(ctx, in)
	if err != nil {
		return nil, ViewOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.DisplayedCode}},
	}, out, nil
}

// Serve runs the MCP server over stdio until ctx is done or the client
// disconnects.
func Serve(ctx context.Context, svc *Service, version string) error {
	return NewServer(svc, version).Run(ctx, &mcp.StdioTransport{})
}
