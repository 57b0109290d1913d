package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slighter12/appservice-mcp-go/config"
)

func TestRoute_DefaultTable(t *testing.T) {
	r, err := NewRouterFromConfig(config.NewConfig())
	require.NoError(t, err)

	tests := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{"/mcp", KindStreamable, true},
		{"/sse", KindSSE, true},
		{"/sse/message", KindSSE, true},
		{"/health", "", false},
		{"/", "", false},
		{"/mcp/", "", false},
		{"/MCP", "", false},
		{"/sse/message/extra", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		kind, ok := r.Route(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.kind, kind, tt.path)
	}

	assert.Equal(t, []string{"/mcp", "/sse", "/sse/message"}, r.Paths())
}

func TestRoute_DisabledTransportIsAbsent(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transports[0].Enabled = false

	r, err := NewRouterFromConfig(cfg)
	require.NoError(t, err)

	_, ok := r.Route("/sse")
	assert.False(t, ok)
	_, ok = r.Route("/sse/message")
	assert.False(t, ok)
	kind, ok := r.Route("/mcp")
	assert.True(t, ok)
	assert.Equal(t, KindStreamable, kind)
}

func TestRouter_AddRejectsDuplicates(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Add("/mcp", KindStreamable))
	assert.Error(t, r.Add("/mcp", KindSSE))
	assert.Error(t, r.Add("", KindSSE))

	kind, _ := r.Route("/mcp")
	assert.Equal(t, KindStreamable, kind)
}

func TestRouter_Handle(t *testing.T) {
	r, err := NewRouterFromConfig(config.NewConfig())
	require.NoError(t, err)

	var hits []Kind
	r.Bind(KindSSE, func(c echo.Context) error {
		hits = append(hits, KindSSE)
		return c.NoContent(http.StatusAccepted)
	})
	r.Bind(KindStreamable, func(c echo.Context) error {
		hits = append(hits, KindStreamable)
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	e.Any("/*", r.Handle)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/mcp", http.StatusOK},
		{http.MethodPost, "/sse/message", http.StatusAccepted},
		{http.MethodGet, "/health", http.StatusNotFound},
		{http.MethodGet, "/", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, tt.path)
		if tt.status == http.StatusNotFound {
			assert.Equal(t, NotFoundBody, rec.Body.String())
		}
	}
	assert.Equal(t, []Kind{KindStreamable, KindSSE}, hits)
}

func TestRouter_HandleUnboundKind(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Add("/mcp", KindStreamable))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, r.Handle(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
