package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/slighter12/appservice-mcp-go/config"
	"github.com/slighter12/appservice-mcp-go/logger"
	"github.com/slighter12/appservice-mcp-go/mcp"
	"github.com/slighter12/appservice-mcp-go/session"
	"github.com/slighter12/appservice-mcp-go/tools"
	"github.com/slighter12/appservice-mcp-go/transport"
	"github.com/slighter12/appservice-mcp-go/transport/shared"
)

type Server struct {
	config         *config.Config
	echo           *echo.Echo
	router         *transport.Router
	dispatcher     *shared.Dispatcher
	sessionManager *session.Manager
	janitor        *session.Janitor
	sse            *sseAdapter
	streamable     *streamableAdapter
}

// NewServer wires both transport adapters over invoker. The invoker's
// registry should be sealed before the server starts serving.
func NewServer(cfg *config.Config, invoker *tools.Invoker) (*Server, error) {
	router, err := transport.NewRouterFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build transport router: %w", err)
	}

	sessions := session.NewManager()
	idle := time.Duration(cfg.Session.IdleTimeoutSeconds) * time.Second
	janitor, err := session.NewJanitor(sessions, cfg.Session.CleanupSchedule, idle)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         cfg,
		echo:           echo.New(),
		router:         router,
		dispatcher:     shared.NewDispatcher(invoker, mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, cfg.Description),
		sessionManager: sessions,
		janitor:        janitor,
	}

	keepAlive := time.Duration(cfg.Session.KeepAliveSeconds) * time.Second
	if t, ok := cfg.Transport(config.TransportSSE); ok {
		s.sse = newSSEAdapter(t.Path, t.MessagePath, keepAlive, sessions, s.dispatcher)
		router.Bind(transport.KindSSE, s.sse.Handle)
	}
	if _, ok := cfg.Transport(config.TransportStreamable); ok {
		s.streamable = newStreamableAdapter(keepAlive, sessions, s.dispatcher)
		router.Bind(transport.KindStreamable, s.streamable.Handle)
	}

	s.setupEcho()
	return s, nil
}

func (s *Server) setupEcho() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = s.config.Server.Debug

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				logger.Warn("HTTP request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("HTTP request", attrs...)
			return nil
		},
	}))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerSessionID, headerProtocolVersion, "Last-Event-ID"},
		ExposeHeaders: []string{headerSessionID},
	}))

	s.echo.Any("/*", s.router.Handle)
}

// Handler returns the HTTP handler serving every transport.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr is the listen address derived from the server config.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	return s.serve(ctx, func() error { return s.echo.Start(s.Addr()) })
}

// RunListener is like Run on an existing listener.
func (s *Server) RunListener(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	return s.serve(ctx, func() error { return s.echo.Start("") })
}

func (s *Server) serve(ctx context.Context, start func() error) error {
	s.janitor.Start()
	defer s.janitor.Stop()

	logger.Info("MCP server starting",
		"address", s.Addr(),
		"paths", s.router.Paths(),
		"server", s.dispatcher.ServerInfo().Name,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := time.Duration(s.config.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown ends every session, so open streams return, then stops the HTTP
// server and waits for in-flight stream calls.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("MCP server shutting down", "sessions", s.sessionManager.Len())
	s.sessionManager.CloseAll()

	err := s.echo.Shutdown(ctx)
	if s.sse != nil {
		done := make(chan struct{})
		go func() {
			s.sse.wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warn("Shutdown timed out waiting for in-flight calls")
		}
	}
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) Router() *transport.Router {
	return s.router
}

func (s *Server) SessionManager() *session.Manager {
	return s.sessionManager
}

func (s *Server) Config() *config.Config {
	return s.config
}
