// Package holonmcp exposes an agent's action registry to external
// MCP-speaking clients (editors, other agent frameworks), giving them the
// same dispatch surface an AI heartbeat reply would use without touching
// the scheduler.
package holonmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/nullcoward/holonic-engine/pkg/holonagent"
)

// Server wraps an *mcp.Server bound to a single agent's action registry.
// Tools are snapshotted from the registry once, at construction: actions
// registered afterward are not picked up without a new Server.
type Server struct {
	agent *holonagent.Agent
	mcp   *mcp.Server
	log   zerolog.Logger
}

// New builds a Server exposing every currently-registered action of agent
// as an MCP tool.
func New(agent *holonagent.Agent, log zerolog.Logger) *Server {
	s := &Server{
		agent: agent,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "holonic-engine",
			Version: "1.0.0",
		}, nil),
		log: log.With().Str("component", "holonmcp").Logger(),
	}
	s.registerActions()
	return s
}

func (s *Server) registerActions() {
	names := s.agent.Actions().Names()
	for _, name := range names {
		action, ok := s.agent.Actions().Get(name)
		if !ok {
			continue
		}
		tool := &mcp.Tool{
			Name:        action.Name,
			Description: action.Purpose,
			InputSchema: inputSchema(action.Signature),
		}
		mcp.AddTool(s.mcp, tool, s.makeHandler(action.Name))
	}
	s.log.Debug().Int("tool_count", len(names)).Msg("registered MCP tools")
}

func (s *Server) makeHandler(name string) mcp.ToolHandlerFor[map[string]any, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		result, err := s.agent.Dispatch(ctx, name, args)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: resultText(result)}},
		}, nil, nil
	}
}

// resultText renders an action's return value for the tool response's
// text content block: JSON for anything that encodes cleanly, otherwise
// its default Go formatting.
func resultText(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(encoded)
}

// ServeStdio runs the MCP server over stdio until ctx is canceled or the
// transport closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns an http.Handler serving this Server over the streamable
// HTTP transport, for callers that want MCP-over-SSE instead of stdio.
func (s *Server) Handler() *mcp.StreamableHTTPHandler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}
