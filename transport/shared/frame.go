package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/mcp/jsonrpc"
)

// ErrEmptyFrame is returned for a blank message body.
var ErrEmptyFrame = errors.New("empty message")

// Frame is one decoded wire message. Exactly one of Request, Reject and
// OneWay is set.
type Frame struct {
	// Request is a request or notification to dispatch.
	Request *jsonrpc.Request
	// Reject is the error response for a frame that cannot be dispatched.
	Reject *jsonrpc.Response
	// OneWay marks a client response to a server request; it is accepted
	// and gets no reply.
	OneWay bool
}

// ParseJSONRPCFrame validates and parses one JSON-RPC message frame. Both
// transports require a single message per frame; batches are rejected.
// Request ids keep their wire form (string or json.Number).
func ParseJSONRPCFrame(frame []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	if trimmed[0] == '[' {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Batch requests are not supported"), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return reject(nil, jsonrpc.ErrParseError, "Parse error"), nil
	}

	requestID, hasID, validID := parseIDFromEnvelope(envelope)
	if !validID {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}

	var msg jsonrpc.Request
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return reject(requestID, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}
	msg.ID = requestID

	if msg.Method == "" {
		_, hasResult := envelope["result"]
		_, hasErr := envelope["error"]
		if hasResult || hasErr {
			if msg.JSONRPC != jsonrpc.Version || !hasID || (hasResult && hasErr) {
				return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
			}
			return Frame{OneWay: true}, nil
		}
		return reject(requestID, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}

	if msg.JSONRPC != jsonrpc.Version {
		return reject(requestID, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}

	if rawParams, ok := envelope["params"]; ok && !isValidParamsValue(rawParams) {
		return reject(requestID, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}

	if msg.Method == mcp.MethodInitialize && msg.ID == nil {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request"), nil
	}

	return Frame{Request: &msg}, nil
}

func reject(id any, code jsonrpc.ErrorCode, message string) Frame {
	return Frame{Reject: jsonrpc.NewErrorResponse(id, code, message, nil)}
}

func parseIDFromEnvelope(envelope map[string]json.RawMessage) (any, bool, bool) {
	rawID, exists := envelope["id"]
	if !exists {
		return nil, false, true
	}
	trimmed := bytes.TrimSpace(rawID)
	if len(trimmed) == 0 {
		return nil, true, false
	}

	var id any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&id); err != nil {
		return nil, true, false
	}
	if !isValidJSONRPCID(id) {
		return nil, true, false
	}
	return id, true, true
}

func isValidJSONRPCID(id any) bool {
	switch v := id.(type) {
	case string:
		return true
	case json.Number:
		return isJSONInteger(v.String())
	default:
		return false
	}
}

func isValidParamsValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{'
}

func isJSONInteger(value string) bool {
	if value == "" || strings.ContainsAny(value, ".eE") {
		return false
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	if strings.HasPrefix(value, "-") {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}

// decodeParams decodes params keeping numbers as json.Number.
func decodeParams(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	return decoder.Decode(v)
}
