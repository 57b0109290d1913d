package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slighter12/appservice-mcp-go/logger"
	"github.com/slighter12/appservice-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/appservice-mcp-go/session"
	"github.com/slighter12/appservice-mcp-go/transport/shared"
)

const (
	sseEventEndpoint = "endpoint"
	sseEventMessage  = "message"
	querySessionID   = "sessionId"
)

// sseAdapter is the persistent-stream transport. GET on the stream path
// opens the event stream and announces the message endpoint; POST on the
// message path carries one JSON-RPC frame whose response is pushed back on
// the stream. Calls run concurrently and may complete out of order.
type sseAdapter struct {
	streamPath  string
	messagePath string
	keepAlive   time.Duration
	sessions    *session.Manager
	dispatcher  *shared.Dispatcher
	inflight    sync.WaitGroup
}

func newSSEAdapter(streamPath, messagePath string, keepAlive time.Duration, sessions *session.Manager, dispatcher *shared.Dispatcher) *sseAdapter {
	return &sseAdapter{
		streamPath:  streamPath,
		messagePath: messagePath,
		keepAlive:   keepAlive,
		sessions:    sessions,
		dispatcher:  dispatcher,
	}
}

func (a *sseAdapter) Handle(c echo.Context) error {
	method := c.Request().Method
	path := c.Request().URL.Path
	switch {
	case method == http.MethodGet && path == a.streamPath:
		return a.openStream(c)
	case method == http.MethodPost && path == a.messagePath:
		return a.postMessage(c)
	case path == a.streamPath:
		c.Response().Header().Set(echo.HeaderAllow, http.MethodGet)
	default:
		c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
	}
	return c.String(http.StatusMethodNotAllowed, "Method not allowed")
}

func (a *sseAdapter) openStream(c echo.Context) error {
	flusher, ok := openEventStream(c.Response())
	if !ok {
		return c.String(http.StatusInternalServerError, "Streaming unsupported")
	}

	sess, err := a.sessions.Create(session.TransportSSE)
	if err != nil {
		logger.Error("Failed to create SSE session", "error", err)
		return c.String(http.StatusInternalServerError, "Internal error")
	}
	defer a.sessions.Remove(sess.ID)

	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	streamCtx, stopStream := context.WithCancel(c.Request().Context())
	defer stopStream()

	// Bind before announcing so a POST racing the endpoint event always
	// finds the stream.
	stream := newEventStream(c.Response(), flusher, stopStream)
	sess.BindStream(stream)
	endpoint := fmt.Sprintf("%s?%s=%s", a.messagePath, querySessionID, url.QueryEscape(sess.ID))
	if err := stream.Send(sseEventEndpoint, endpoint); err != nil {
		logger.Warn("Failed to announce SSE endpoint", "session_id", sess.ID, "error", err)
		return nil
	}
	logger.Info("SSE stream opened", "session_id", sess.ID, "remote_addr", c.RealIP())

	var keepAlive <-chan time.Time
	if a.keepAlive > 0 {
		ticker := time.NewTicker(a.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-streamCtx.Done():
			logger.Info("SSE stream closed", "session_id", sess.ID)
			return nil
		case <-sess.Done():
			logger.Info("SSE session ended", "session_id", sess.ID)
			return nil
		case <-keepAlive:
			if err := stream.SendComment("keepalive"); err != nil {
				logger.Debug("SSE keepalive failed", "session_id", sess.ID, "error", err)
				return nil
			}
			sess.Touch()
		}
	}
}

func (a *sseAdapter) postMessage(c echo.Context) error {
	sessionID := c.QueryParam(querySessionID)
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Missing sessionId query parameter", nil))
	}
	sess, ok := a.sessions.Get(sessionID)
	if !ok || sess.Transport != session.TransportSSE {
		return c.JSON(http.StatusNotFound, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Unknown session", nil))
	}

	body, status, resp := readBody(c)
	if resp != nil {
		return c.JSON(status, resp)
	}
	frame, err := shared.ParseJSONRPCFrame(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil))
	}
	if frame.Reject != nil {
		return c.JSON(http.StatusBadRequest, frame.Reject)
	}
	if frame.OneWay {
		return c.NoContent(http.StatusAccepted)
	}

	request := *frame.Request
	logger.Debug("SSE message received", "session_id", sess.ID, "method", request.Method, "id", request.ID)

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.dispatch(sess, request)
	}()
	return c.NoContent(http.StatusAccepted)
}

func (a *sseAdapter) dispatch(sess *session.Session, request jsonrpc.Request) {
	response := a.dispatcher.Dispatch(sess.Context(), sess, request)
	if response == nil {
		return
	}
	if err := sess.Send(sseEventMessage, response); err != nil {
		logger.Warn("Dropped SSE response", "session_id", sess.ID, "method", request.Method, "id", request.ID, "error", err)
	}
}

// wait blocks until every dispatched call has written its response.
func (a *sseAdapter) wait() {
	a.inflight.Wait()
}
