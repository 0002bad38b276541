package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/hookah/internal/ops"
)

// Service is the operation layer behind the MCP tools.
type Service interface {
	Suggest(ctx context.Context, input ops.SuggestInput) (*ops.SuggestOutput, error)
	History(ctx context.Context, input ops.HistoryInput) (*ops.HistoryOutput, error)
}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var suggestToolDef = mcp.NewTool("hookah_suggest",
	mcp.WithDescription("Suggest three hookah flavor mixes for the given preferences. At least one of tastes, zodiacSign, moods, intensity or occasion is required."),
	mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token identifying the user")),
	mcp.WithString("name", mcp.Description("Display name echoed back as userName")),
	mcp.WithArray("tastes", mcp.WithStringItems(), mcp.Description("Flavor tastes, e.g. citrus, mint")),
	mcp.WithString("zodiacSign", mcp.Description("Zodiac sign")),
	mcp.WithArray("moods", mcp.WithStringItems(), mcp.Description("Moods, e.g. chill, social")),
	mcp.WithString("intensity", mcp.Description("Desired intensity")),
	mcp.WithString("occasion", mcp.Description("Occasion for the session")),
)

var historyToolDef = mcp.NewTool("hookah_history",
	mcp.WithDescription("List the user's past suggestions, newest first."),
	mcp.WithString("token", mcp.Required(), mcp.Description("Bearer token identifying the user")),
)

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"hookah_suggest": {
		def:     suggestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggest },
	},
	"hookah_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
}

// AllToolNames returns the registered tool names in sorted order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates an MCP server with the hookah tools registered.
func NewServer(svc Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"hookah",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(svc)
	for _, name := range AllToolNames() {
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(svc Service, version string) error {
	return server.ServeStdio(NewServer(svc, version))
}
