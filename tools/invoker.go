package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/slighter12/appservice-mcp-go/logger"
	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/schema"
	"github.com/slighter12/appservice-mcp-go/session"
)

// Invoker runs tool calls against a registry. It holds no per-call state:
// every invocation is independent, never retried and never cached.
type Invoker struct {
	registry *Registry
}

// NewInvoker creates an invoker over r.
func NewInvoker(r *Registry) *Invoker {
	return &Invoker{registry: r}
}

// Registry returns the registry the invoker dispatches into.
func (inv *Invoker) Registry() *Registry {
	return inv.registry
}

// Invoke looks up, validates and runs one tool call. Unknown tools,
// invalid arguments and handler failures all come back as isError
// envelopes. The returned error is non-nil only for a handler that broke
// the output contract (*MalformedHandlerOutputError).
func (inv *Invoker) Invoke(ctx context.Context, sess *session.Session, name string, raw map[string]any) (mcp.ToolResult, error) {
	sessionID := ""
	if sess != nil {
		sessionID = sess.ID
		ctx = session.NewContext(ctx, sess)
	}

	tool, err := inv.registry.Lookup(name)
	if err != nil {
		logger.InfoContext(ctx, "Tool call rejected", "tool", name, "session_id", sessionID, "reason", CodeUnknownTool)
		return ErrorResult(CodeUnknownTool, fmt.Sprintf("tool %q is not registered", name), nil), nil
	}

	args, err := schema.Validate(tool.schema, raw)
	if err != nil {
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			return mcp.ToolResult{}, fmt.Errorf("validate %s: %w", name, err)
		}
		verr.Tool = name
		code := CodeInvalidParam
		if verr.Reason == schema.ReasonMissing {
			code = CodeMissingParam
		}
		logger.InfoContext(ctx, "Tool call rejected", "tool", name, "session_id", sessionID, "reason", code, "param", verr.Param)
		return ErrorResult(code, verr.Error(), map[string]any{"param": verr.Param, "reason": string(verr.Reason)}), nil
	}

	logger.DebugContext(ctx, "Executing tool", "tool", name, "session_id", sessionID, "args", args.Len())
	content, err := inv.call(ctx, tool, args)
	if err != nil {
		if semanticErr, ok := AsSemanticError(err); ok {
			return ErrorResult(semanticErr.Kind, semanticErr.Error(), semanticErr.Data), nil
		}
		logger.WarnContext(ctx, "Tool handler failed", "tool", name, "session_id", sessionID, "error", err)
		return ErrorResult(CodeToolFailed, err.Error(), nil), nil
	}

	result, err := normalize(name, content)
	if err != nil {
		logger.ErrorContext(ctx, "Tool handler broke output contract", "tool", name, "error", err)
		return mcp.ToolResult{}, err
	}
	return result, nil
}

func (inv *Invoker) call(ctx context.Context, tool *Tool, args schema.Args) (content []mcp.Content, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "Tool handler panicked", "tool", tool.name, "panic", rec, "stack", string(debug.Stack()))
			content = nil
			err = &HandlerError{Tool: tool.name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	content, err = tool.handler(ctx, args)
	if err != nil {
		return nil, &HandlerError{Tool: tool.name, Err: err}
	}
	return content, nil
}

func normalize(name string, content []mcp.Content) (mcp.ToolResult, error) {
	if len(content) == 0 {
		return mcp.ToolResult{}, &MalformedHandlerOutputError{Tool: name, Reason: "no content blocks"}
	}
	blocks := make([]mcp.Content, len(content))
	for i, block := range content {
		if block.Type == "" {
			return mcp.ToolResult{}, &MalformedHandlerOutputError{Tool: name, Reason: fmt.Sprintf("content block %d has no type", i)}
		}
		blocks[i] = block
	}
	return mcp.ToolResult{Content: blocks}, nil
}
