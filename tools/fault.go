package tools

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/slighter12/appservice-mcp-go/mcp"
)

// Fault codes carried by error envelopes. They are self-describing so a
// client (or an LLM driving it) can act without a lookup table.
const (
	CodeUnknownTool  = "unknown_tool"
	CodeMissingParam = "missing_param"
	CodeInvalidParam = "invalid_param"
	CodeToolFailed   = "tool_failed"
	CodeNotAvailable = "not_available"
)

// SemanticError lets a handler choose the fault code surfaced to the
// client instead of the generic tool_failed.
type SemanticError struct {
	Kind    string
	Message string
	Data    map[string]any
}

func (e *SemanticError) Error() string {
	if e == nil {
		return "tool semantic error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != "" {
		return fmt.Sprintf("tool semantic error: %s", e.Kind)
	}
	return "tool semantic error"
}

// NewSemanticError builds a SemanticError.
func NewSemanticError(kind, message string, data map[string]any) *SemanticError {
	return &SemanticError{Kind: kind, Message: message, Data: data}
}

// NewNotAvailableError reports a tool that cannot serve the call right now.
func NewNotAvailableError(message string, data map[string]any) *SemanticError {
	if message == "" {
		message = "Tool is temporarily unavailable"
	}
	return NewSemanticError(CodeNotAvailable, message, data)
}

// AsSemanticError unwraps a SemanticError from err.
func AsSemanticError(err error) (*SemanticError, bool) {
	var semanticErr *SemanticError
	if errors.As(err, &semanticErr) && semanticErr != nil {
		return semanticErr, true
	}
	return nil, false
}

// ErrorResult builds an isError envelope. The text starts with the code so
// it survives clients that only display the first line.
func ErrorResult(code, message string, details map[string]any) mcp.ToolResult {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s: %s", code, message)
	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %v", k, details[k])
		}
	}
	return mcp.ToolResult{
		Content: []mcp.Content{mcp.TextContent(b.String())},
		IsError: true,
	}
}
