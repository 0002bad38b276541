package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// SuggestRequest represents the arguments for hookah_suggest.
type SuggestRequest struct {
	Token string `json:"token"`
	hookah.Preferences
}

// HistoryRequest represents the arguments for hookah_history.
type HistoryRequest struct {
	Token string `json:"token"`
}

// HandleSuggest handles the hookah_suggest tool call.
func (h *Handlers) HandleSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := ops.SuggestInput{}
	input, err := decode[SuggestRequest](req)
	if err != nil {
		// Authenticate and admit first; the service reports the bad arguments.
		in.Token = req.GetString("token", "")
		in.BodyErr = err
	} else {
		in.Token = input.Token
		in.Preferences = input.Preferences
	}

	result, err := h.svc.Suggest(ctx, in)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the hookah_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.svc.History(ctx, ops.HistoryInput{Token: input.Token})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Causes and the details of unexposed errors are never included.
func errorResult(err error) *mcp.CallToolResult {
	hErr := errors.As(err)

	errorObj := map[string]any{
		"code":    hErr.Code,
		"message": hErr.Message,
		"status":  hErr.Status,
	}
	if !hErr.Exposed() {
		errorObj["message"] = "an internal error occurred"
	} else if hErr.Details != nil {
		errorObj["details"] = hErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
