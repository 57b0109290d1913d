// Package transport maps request paths onto the transport adapters.
package transport

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/slighter12/appservice-mcp-go/config"
	"github.com/slighter12/appservice-mcp-go/logger"
)

// Kind selects a transport adapter.
type Kind string

const (
	// KindSSE is the persistent-stream adapter.
	KindSSE Kind = config.TransportSSE
	// KindStreamable is the single-request adapter.
	KindStreamable Kind = config.TransportStreamable
)

// NotFoundBody is the response body for unrouted paths.
const NotFoundBody = "Not found"

// Router is an exact-match path table. It is built once at startup and is
// read-only afterwards.
type Router struct {
	table    map[string]Kind
	adapters map[Kind]echo.HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		table:    make(map[string]Kind),
		adapters: make(map[Kind]echo.HandlerFunc),
	}
}

// NewRouterFromConfig builds the path table of every enabled transport.
func NewRouterFromConfig(cfg *config.Config) (*Router, error) {
	r := NewRouter()
	for _, t := range cfg.EnabledTransports() {
		kind := Kind(t.Type)
		if err := r.Add(t.Path, kind); err != nil {
			return nil, err
		}
		if kind == KindSSE && t.MessagePath != "" {
			if err := r.Add(t.MessagePath, kind); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Add maps path to kind. A path can be mapped only once.
func (r *Router) Add(path string, kind Kind) error {
	if path == "" {
		return fmt.Errorf("transport %s: empty path", kind)
	}
	if existing, ok := r.table[path]; ok {
		return fmt.Errorf("path %s already routed to %s", path, existing)
	}
	r.table[path] = kind
	return nil
}

// Bind sets the handler serving kind.
func (r *Router) Bind(kind Kind, h echo.HandlerFunc) {
	r.adapters[kind] = h
}

// Route returns the adapter kind for path. Matching is exact: no prefixes,
// no wildcards, no trailing-slash folding.
func (r *Router) Route(path string) (Kind, bool) {
	kind, ok := r.table[path]
	return kind, ok
}

// Paths returns the routed paths, sorted.
func (r *Router) Paths() []string {
	out := make([]string, 0, len(r.table))
	for p := range r.table {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Handle is the catch-all echo handler that dispatches to the bound adapter.
func (r *Router) Handle(c echo.Context) error {
	path := c.Request().URL.Path
	kind, ok := r.Route(path)
	if !ok {
		logger.Debug("No transport for path", "path", path, "method", c.Request().Method)
		return c.String(http.StatusNotFound, NotFoundBody)
	}
	h, ok := r.adapters[kind]
	if !ok {
		logger.Warn("Transport routed but not bound", "path", path, "transport", kind)
		return c.String(http.StatusNotFound, NotFoundBody)
	}
	return h(c)
}
