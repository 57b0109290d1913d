package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slighter12/appservice-mcp-go/logger"
	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/appservice-mcp-go/session"
	"github.com/slighter12/appservice-mcp-go/transport/shared"
)

const maxJSONRPCBodyBytes = 1 << 20

const (
	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
)

// streamableAdapter is the single-request transport: one POST carries one
// JSON-RPC message and the response comes back in the HTTP body.
type streamableAdapter struct {
	keepAlive  time.Duration
	sessions   *session.Manager
	dispatcher *shared.Dispatcher
}

func newStreamableAdapter(keepAlive time.Duration, sessions *session.Manager, dispatcher *shared.Dispatcher) *streamableAdapter {
	return &streamableAdapter{
		keepAlive:  keepAlive,
		sessions:   sessions,
		dispatcher: dispatcher,
	}
}

func (a *streamableAdapter) Handle(c echo.Context) error {
	switch c.Request().Method {
	case http.MethodPost:
		return a.handlePost(c)
	case http.MethodGet:
		return a.handleGet(c)
	case http.MethodDelete:
		return a.handleDelete(c)
	default:
		c.Response().Header().Set(echo.HeaderAllow, "GET, POST, DELETE")
		return c.String(http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *streamableAdapter) handlePost(c echo.Context) error {
	body, status, resp := readBody(c)
	if resp != nil {
		return c.JSON(status, resp)
	}

	frame, err := shared.ParseJSONRPCFrame(body)
	if err != nil {
		logger.Debug("Failed to parse JSON-RPC request", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil))
	}
	if frame.Reject != nil {
		return c.JSON(http.StatusBadRequest, frame.Reject)
	}

	requestedVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if requestedVersion != "" && !mcp.IsSupportedProtocolVersion(requestedVersion) {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unsupported MCP-Protocol-Version header", nil))
	}

	sessionID := strings.TrimSpace(c.Request().Header.Get(headerSessionID))
	isInitialize := frame.Request != nil && frame.Request.Method == mcp.MethodInitialize

	var sess *session.Session
	switch {
	case sessionID != "":
		existing, ok := a.lookup(sessionID)
		if !ok {
			return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil))
		}
		if !isInitialize && !versionMatches(existing, requestedVersion) {
			return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid MCP-Protocol-Version header", nil))
		}
		sess = existing
	case isInitialize:
		created, err := a.sessions.Create(session.TransportStreamable)
		if err != nil {
			logger.Error("Failed to create session", "error", err)
			return c.JSON(http.StatusInternalServerError, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInternalError, "Internal error", nil))
		}
		sess = created
		logger.Debug("Created MCP session", "session_id", sess.ID)
	default:
		sess = a.sessions.Ephemeral(session.TransportStreamable)
		defer sess.Close()
	}

	if !sess.Ephemeral {
		c.Response().Header().Set(headerSessionID, sess.ID)
	}

	if frame.OneWay {
		return c.NoContent(http.StatusAccepted)
	}

	request := *frame.Request
	logger.Debug("Streamable HTTP request received", "method", request.Method, "id", request.ID, "session_id", sess.ID)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	stop := context.AfterFunc(sess.Context(), cancel)
	defer stop()

	response := a.dispatcher.Dispatch(ctx, sess, request)
	if response == nil {
		return c.NoContent(http.StatusAccepted)
	}
	return c.JSON(http.StatusOK, response)
}

// handleGet opens the optional server-to-client event stream of a session.
func (a *streamableAdapter) handleGet(c echo.Context) error {
	sess, errStatus, errResp := a.requireSession(c)
	if errResp != nil {
		return c.JSON(errStatus, errResp)
	}

	if !acceptsEventStream(c.Request().Header.Get(echo.HeaderAccept)) {
		return c.JSON(http.StatusNotAcceptable, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Accept header must include text/event-stream", nil))
	}

	flusher, ok := openEventStream(c.Response())
	if !ok {
		return c.JSON(http.StatusMethodNotAllowed, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "SSE stream is not available", nil))
	}
	c.Response().Header().Set(headerSessionID, sess.ID)
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	streamCtx, stopStream := context.WithCancel(c.Request().Context())
	defer stopStream()

	// Bind only after the headers are out so concurrent sends cannot race
	// stream setup.
	stream := newEventStream(c.Response(), flusher, stopStream)
	sess.BindStream(stream)
	defer sess.UnbindStream(stream)
	defer stream.Close()

	var keepAlive <-chan time.Time
	if a.keepAlive > 0 {
		ticker := time.NewTicker(a.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-streamCtx.Done():
			return nil
		case <-sess.Done():
			return nil
		case <-keepAlive:
			if err := stream.SendComment("keepalive"); err != nil {
				return nil
			}
			sess.Touch()
		}
	}
}

func (a *streamableAdapter) handleDelete(c echo.Context) error {
	sess, errStatus, errResp := a.requireSession(c)
	if errResp != nil {
		return c.JSON(errStatus, errResp)
	}
	a.sessions.Remove(sess.ID)
	logger.Info("MCP session terminated by client", "session_id", sess.ID)
	return c.NoContent(http.StatusNoContent)
}

func (a *streamableAdapter) lookup(id string) (*session.Session, bool) {
	sess, ok := a.sessions.Get(id)
	if !ok || sess.Transport != session.TransportStreamable {
		return nil, false
	}
	return sess, true
}

func (a *streamableAdapter) requireSession(c echo.Context) (*session.Session, int, *jsonrpc.Response) {
	sessionID := strings.TrimSpace(c.Request().Header.Get(headerSessionID))
	if sessionID == "" {
		return nil, http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing Mcp-Session-Id header", nil)
	}
	sess, ok := a.lookup(sessionID)
	if !ok {
		return nil, http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown MCP session", nil)
	}
	requestedVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if requestedVersion != "" && !mcp.IsSupportedProtocolVersion(requestedVersion) {
		return nil, http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unsupported MCP-Protocol-Version header", nil)
	}
	if !versionMatches(sess, requestedVersion) {
		return nil, http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid MCP-Protocol-Version header", nil)
	}
	return sess, 0, nil
}

// versionMatches reports whether an optional protocol header agrees with
// the version negotiated on the session.
func versionMatches(sess *session.Session, requested string) bool {
	if requested == "" {
		return true
	}
	negotiated := sess.ProtocolVersion()
	return negotiated == "" || negotiated == requested
}

// readBody reads a size-limited request body. On failure it returns the
// status and error response to send.
func readBody(c echo.Context) ([]byte, int, *jsonrpc.Response) {
	limitedBody := http.MaxBytesReader(c.Response(), c.Request().Body, maxJSONRPCBodyBytes)
	defer limitedBody.Close()

	body, err := io.ReadAll(limitedBody)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("Request body too large", "limit_bytes", maxJSONRPCBodyBytes, "remote_addr", c.RealIP())
			return nil, http.StatusRequestEntityTooLarge, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Request body too large", nil)
		}
		logger.Error("Failed to read request body", "error", err)
		return nil, http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil)
	}
	return body, 0, nil
}

func acceptsEventStream(acceptHeader string) bool {
	for _, part := range strings.Split(acceptHeader, ",") {
		mime := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mime, "text/event-stream") || mime == "*/*" {
			return true
		}
	}
	return false
}
