// Package shared holds the JSON-RPC handling common to both HTTP transport
// adapters, so tool semantics cannot drift between them.
package shared

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/slighter12/appservice-mcp-go/logger"
	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/appservice-mcp-go/session"
	"github.com/slighter12/appservice-mcp-go/tools"
)

const pageSize = 50

// Dispatcher answers MCP methods for a session.
type Dispatcher struct {
	invoker      *tools.Invoker
	serverInfo   mcp.Implementation
	instructions string
}

// NewDispatcher creates a dispatcher over invoker. serverInfo is reported
// during initialize.
func NewDispatcher(invoker *tools.Invoker, serverInfo mcp.Implementation, instructions string) *Dispatcher {
	return &Dispatcher{
		invoker:      invoker,
		serverInfo:   serverInfo,
		instructions: instructions,
	}
}

// ServerInfo returns the implementation reported during initialize.
func (d *Dispatcher) ServerInfo() mcp.Implementation {
	return d.serverInfo
}

// Dispatch handles one request for sess. It returns nil for notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, msg jsonrpc.Request) *jsonrpc.Response {
	logger.DebugContext(ctx, "Dispatching JSON-RPC message", "method", msg.Method, "id", msg.ID, "session_id", sessionID(sess))

	switch msg.Method {
	case mcp.MethodInitialize:
		return d.initialize(msg, sess)
	case mcp.MethodInitialized, "initialized":
		if !msg.IsNotification() {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)
		}
		if sess != nil {
			sess.MarkInitialized()
		}
		return nil
	case mcp.MethodPing:
		return respond(msg, map[string]any{})
	case mcp.MethodToolsList:
		return d.toolsList(msg)
	case mcp.MethodToolsCall:
		return d.toolsCall(ctx, msg, sess)
	default:
		if msg.IsNotification() {
			return nil
		}
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrMethodNotFound, "Method not found", map[string]any{
			"method": msg.Method,
		})
	}
}

func (d *Dispatcher) initialize(msg jsonrpc.Request, sess *session.Session) *jsonrpc.Response {
	var params mcp.InitializeParams
	if err := decodeParams(msg.Params, &params); err != nil {
		logger.Debug("Ignoring malformed initialize params", "error", err)
	}

	negotiated := NegotiateProtocolVersion(params.ProtocolVersion)
	if sess != nil {
		sess.SetProtocolVersion(negotiated)
		sess.SetClientName(params.ClientInfo.Name)
	}
	logger.Info("Client initialized",
		"session_id", sessionID(sess),
		"client", params.ClientInfo.Name,
		"requested_version", params.ProtocolVersion,
		"protocol_version", negotiated,
	)

	return jsonrpc.NewResponse(msg.ID, mcp.InitializeResult{
		ProtocolVersion: negotiated,
		Capabilities:    ServerCapabilities(),
		ServerInfo:      d.serverInfo,
		Instructions:    d.instructions,
	})
}

func (d *Dispatcher) toolsList(msg jsonrpc.Request) *jsonrpc.Response {
	if msg.IsNotification() {
		return nil
	}
	all := d.invoker.Registry().Tools()

	start, err := ParseCursor(msg.Params, len(all))
	if err != nil {
		return errorResponse(msg.ID, err)
	}
	end := min(start+pageSize, len(all))

	result := mcp.ListToolsResult{Tools: all[start:end]}
	if end < len(all) {
		result.NextCursor = strconv.Itoa(end)
	}
	return jsonrpc.NewResponse(msg.ID, result)
}

func (d *Dispatcher) toolsCall(ctx context.Context, msg jsonrpc.Request, sess *session.Session) *jsonrpc.Response {
	var params mcp.CallToolParams
	if err := decodeParams(msg.Params, &params); err != nil {
		return errorResponse(msg.ID, jsonrpc.NewJSONRPCError(jsonrpc.ErrInvalidParams, "Invalid tool call payload", nil))
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return errorResponse(msg.ID, jsonrpc.NewJSONRPCError(jsonrpc.ErrInvalidParams, "Tool name is required", nil))
	}

	result, err := d.invoker.Invoke(ctx, sess, name, params.Arguments)
	if err != nil {
		logger.ErrorContext(ctx, "Tool call failed", "tool", name, "error", err)
		return errorResponse(msg.ID, invokeError(err))
	}
	return respond(msg, result)
}

// invokeError maps an invoker failure onto its JSON-RPC error.
func invokeError(err error) *jsonrpc.JSONRPCError {
	var malformed *tools.MalformedHandlerOutputError
	if errors.As(err, &malformed) {
		return jsonrpc.NewJSONRPCError(jsonrpc.ErrInternalError, "Internal error", map[string]any{
			"tool": malformed.Tool,
		})
	}
	return jsonrpc.NewJSONRPCError(jsonrpc.ErrInternalError, "Internal error", nil)
}

// errorResponse renders err for id. Errors that carry no JSON-RPC code are
// reported as internal errors.
func errorResponse(id any, err error) *jsonrpc.Response {
	var rpcErr *jsonrpc.JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Response(id)
	}
	return jsonrpc.NewErrorResponse(id, jsonrpc.ErrInternalError, "Internal error", nil)
}

func respond(msg jsonrpc.Request, result any) *jsonrpc.Response {
	if msg.IsNotification() {
		return nil
	}
	return jsonrpc.NewResponse(msg.ID, result)
}

// ServerCapabilities advertises the features of this server.
func ServerCapabilities() map[string]any {
	return map[string]any{
		"tools": map[string]any{},
	}
}

// NegotiateProtocolVersion echoes a supported requested version and falls
// back to the newest one otherwise.
func NegotiateProtocolVersion(requested string) string {
	requested = strings.TrimSpace(requested)
	if mcp.IsSupportedProtocolVersion(requested) {
		return requested
	}
	return mcp.ProtocolVersion
}

// ParseCursor decodes the pagination cursor of a list request. Failures are
// invalid-params JSON-RPC errors.
func ParseCursor(paramsRaw json.RawMessage, total int) (int, error) {
	var params struct {
		Cursor string `json:"cursor"`
	}
	if err := decodeParams(paramsRaw, &params); err != nil {
		return 0, jsonrpc.NewJSONRPCError(jsonrpc.ErrInvalidParams, "invalid params payload", nil)
	}
	if strings.TrimSpace(params.Cursor) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(params.Cursor)
	if err != nil || offset < 0 || offset > total {
		return 0, jsonrpc.NewJSONRPCError(jsonrpc.ErrInvalidParams, "invalid cursor value", map[string]any{
			"cursor": params.Cursor,
		})
	}
	return offset, nil
}

func sessionID(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.ID
}
