package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/appservice-mcp-go/schema"
	"github.com/slighter12/appservice-mcp-go/session"
	"github.com/slighter12/appservice-mcp-go/tools"
)

var testServerInfo = mcp.Implementation{Name: "test-server", Version: "0.0.1"}

func echoHandler(_ context.Context, args schema.Args) ([]mcp.Content, error) {
	return []mcp.Content{mcp.TextContent(args.String("msg"))}, nil
}

func newTestDispatcher(t *testing.T, extra ...tools.Definition) *Dispatcher {
	t.Helper()
	r := tools.NewRegistry()
	require.NoError(t, r.Register("echo", "Echoes msg", schema.MustNew(schema.String("msg")), echoHandler))
	require.NoError(t, r.Add(extra...))
	r.Seal()
	return NewDispatcher(tools.NewInvoker(r), testServerInfo, "")
}

func parseRequest(t *testing.T, raw string) jsonrpc.Request {
	t.Helper()
	frame, err := ParseJSONRPCFrame([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, frame.Request, raw)
	return *frame.Request
}

func roundTrip(t *testing.T, resp *jsonrpc.Response) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestDispatch_Initialize(t *testing.T) {
	d := newTestDispatcher(t)
	sess := session.NewManager().Ephemeral(session.TransportStreamable)
	defer sess.Close()

	req := parseRequest(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"inspector","version":"1"}}}`)
	out := roundTrip(t, d.Dispatch(context.Background(), sess, req))

	assert.Equal(t, float64(1), out["id"])
	result := out["result"].(map[string]any)
	assert.Equal(t, "2025-03-26", result["protocolVersion"])
	assert.Equal(t, map[string]any{"tools": map[string]any{}}, result["capabilities"])
	assert.Equal(t, map[string]any{"name": "test-server", "version": "0.0.1"}, result["serverInfo"])

	assert.Equal(t, "2025-03-26", sess.ProtocolVersion())
	assert.Equal(t, "inspector", sess.ClientName())
	assert.False(t, sess.Initialized())

	initialized := parseRequest(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Nil(t, d.Dispatch(context.Background(), sess, initialized))
	assert.True(t, sess.Initialized())
}

func TestDispatch_InitializeUnsupportedVersion(t *testing.T) {
	d := newTestDispatcher(t)
	req := parseRequest(t, `{"jsonrpc":"2.0","id":"a","method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)
	out := roundTrip(t, d.Dispatch(context.Background(), nil, req))

	assert.Equal(t, "a", out["id"])
	assert.Equal(t, mcp.ProtocolVersion, out["result"].(map[string]any)["protocolVersion"])
}

func TestDispatch_Ping(t *testing.T) {
	d := newTestDispatcher(t)
	out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)))
	assert.Equal(t, map[string]any{}, out["result"])
}

func TestDispatch_ToolsList(t *testing.T) {
	d := newTestDispatcher(t)
	out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))

	result := out["result"].(map[string]any)
	listed := result["tools"].([]any)
	require.Len(t, listed, 1)
	tool := listed[0].(map[string]any)
	assert.Equal(t, "echo", tool["name"])
	assert.Equal(t, "Echoes msg", tool["description"])
	input := tool["inputSchema"].(map[string]any)
	assert.Equal(t, "object", input["type"])
	assert.Equal(t, []any{"msg"}, input["required"])
	assert.NotContains(t, result, "nextCursor")
}

func TestDispatch_ToolsListPagination(t *testing.T) {
	var defs []tools.Definition
	for i := range 60 {
		defs = append(defs, tools.Definition{Name: fmt.Sprintf("tool-%02d", i), Handler: echoHandler})
	}
	d := newTestDispatcher(t, defs...)

	first := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)))
	page := first["result"].(map[string]any)
	assert.Len(t, page["tools"], pageSize)
	assert.Equal(t, "echo", page["tools"].([]any)[0].(map[string]any)["name"])
	assert.Equal(t, "50", page["nextCursor"])

	second := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{"cursor":"50"}}`)))
	page = second["result"].(map[string]any)
	assert.Len(t, page["tools"], 11)
	assert.NotContains(t, page, "nextCursor")

	bad := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","id":3,"method":"tools/list","params":{"cursor":"999"}}`)))
	assert.Equal(t, float64(jsonrpc.ErrInvalidParams), bad["error"].(map[string]any)["code"])
}

func TestDispatch_ToolsCall(t *testing.T) {
	d := newTestDispatcher(t)

	out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"msg":"hi"}}}`)))
	result := out["result"].(map[string]any)
	assert.Equal(t, []any{map[string]any{"type": "text", "text": "hi"}}, result["content"])
	assert.NotContains(t, result, "isError")

	out = roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)))
	result = out["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	text := result["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, tools.CodeMissingParam)
	assert.Contains(t, text, "msg")

	out = roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope"}}`)))
	result = out["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	assert.NotContains(t, out, "error")
}

func TestDispatch_ToolsCallNumberArguments(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register("double", "", schema.MustNew(schema.Number("n")), func(_ context.Context, args schema.Args) ([]mcp.Content, error) {
		return []mcp.Content{mcp.TextContent(fmt.Sprint(args.Number("n") * 2))}, nil
	}))
	d := NewDispatcher(tools.NewInvoker(r), testServerInfo, "")

	out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"double","arguments":{"n":21}}}`)))
	result := out["result"].(map[string]any)
	assert.Equal(t, "42", result["content"].([]any)[0].(map[string]any)["text"])
}

func TestDispatch_ToolsCallInvalidParams(t *testing.T) {
	d := newTestDispatcher(t)

	for _, raw := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"arguments":{}}}`,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":"oops"}}`,
	} {
		out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, raw)))
		assert.Equal(t, float64(jsonrpc.ErrInvalidParams), out["error"].(map[string]any)["code"], raw)
	}
}

func TestDispatch_MalformedHandlerOutput(t *testing.T) {
	d := newTestDispatcher(t, tools.Definition{Name: "broken", Handler: func(context.Context, schema.Args) ([]mcp.Content, error) {
		return nil, nil
	}})

	out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t,
		`{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"broken"}}`)))
	errObj := out["error"].(map[string]any)
	assert.Equal(t, float64(jsonrpc.ErrInternalError), errObj["code"])
	assert.Equal(t, map[string]any{"tool": "broken"}, errObj["data"])
}

func TestInvokeError(t *testing.T) {
	err := invokeError(&tools.MalformedHandlerOutputError{Tool: "broken"})
	assert.True(t, jsonrpc.IsInternalError(err))
	assert.Equal(t, map[string]any{"tool": "broken"}, err.Data)

	err = invokeError(errors.New("boom"))
	assert.True(t, jsonrpc.IsInternalError(err))
	assert.Nil(t, err.Data)
}

func TestErrorResponse(t *testing.T) {
	resp := errorResponse(7, jsonrpc.NewJSONRPCError(jsonrpc.ErrInvalidParams, "bad cursor", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(jsonrpc.ErrInvalidParams), resp.Error.Code)
	assert.Equal(t, "bad cursor", resp.Error.Message)

	resp = errorResponse(7, errors.New("plain"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(jsonrpc.ErrInternalError), resp.Error.Code)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	d := newTestDispatcher(t)

	out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)))
	assert.Equal(t, float64(jsonrpc.ErrMethodNotFound), out["error"].(map[string]any)["code"])

	assert.Nil(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","method":"notifications/cancelled"}`)))
	assert.Nil(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo","arguments":{"msg":"x"}}}`)))
}

func TestDispatch_InitializedWithIDIsInvalid(t *testing.T) {
	d := newTestDispatcher(t)
	out := roundTrip(t, d.Dispatch(context.Background(), nil, parseRequest(t, `{"jsonrpc":"2.0","id":1,"method":"notifications/initialized"}`)))
	assert.Equal(t, float64(jsonrpc.ErrInvalidRequest), out["error"].(map[string]any)["code"])
}

func TestNegotiateProtocolVersion(t *testing.T) {
	for _, v := range mcp.SupportedProtocolVersions {
		assert.Equal(t, v, NegotiateProtocolVersion(v))
	}
	assert.Equal(t, mcp.ProtocolVersion, NegotiateProtocolVersion(""))
	assert.Equal(t, mcp.ProtocolVersion, NegotiateProtocolVersion("2025-06-14"))
}
