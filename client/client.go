// Package client talks to a running server over either HTTP transport
// using the official MCP Go SDK.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slighter12/appservice-mcp-go/transport"
)

// Client is a connected MCP client session.
type Client struct {
	client  *mcp.Client
	session *mcp.ClientSession
}

// Options tune Connect.
type Options struct {
	// Name and Version identify the client during initialize.
	Name    string
	Version string
	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client
}

// Result is the outcome of a tool call.
type Result struct {
	Text    string
	IsError bool
}

// Connect opens a session with the server at endpoint. endpoint is the full
// URL of the transport path, for example http://localhost:8787/mcp.
// Initialization is done by the SDK during Connect.
func Connect(ctx context.Context, endpoint string, kind transport.Kind, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}

	var t mcp.Transport
	switch kind {
	case transport.KindSSE:
		t = &mcp.SSEClientTransport{Endpoint: endpoint, HTTPClient: opts.HTTPClient}
	case transport.KindStreamable:
		t = &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: opts.HTTPClient}
	default:
		return nil, fmt.Errorf("client: unknown transport %q", kind)
	}
	return newFromTransport(ctx, t, opts)
}

func newFromTransport(ctx context.Context, t mcp.Transport, opts *Options) (*Client, error) {
	name, version := opts.Name, opts.Version
	if name == "" {
		name = "appservice-mcp-client"
	}
	if version == "" {
		version = "0.1.0"
	}

	c := mcp.NewClient(&mcp.Implementation{Name: name, Version: version}, nil)
	session, err := c.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return &Client{client: c, session: session}, nil
}

// ServerInfo returns the implementation the server reported.
func (c *Client) ServerInfo() *mcp.Implementation {
	if res := c.session.InitializeResult(); res != nil {
		return res.ServerInfo
	}
	return nil
}

// ListTools fetches every tool, following pagination cursors.
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	var out []*mcp.Tool
	params := &mcp.ListToolsParams{}
	for {
		res, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("client: list tools: %w", err)
		}
		out = append(out, res.Tools...)
		if res.NextCursor == "" {
			return out, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

// CallTool calls name with args. A tool-level failure is reported through
// Result.IsError, not err.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("client: call tool %s: %w", name, err)
	}
	return &Result{Text: extractText(res), IsError: res.IsError}, nil
}

// Ping checks the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.session.Ping(ctx, nil); err != nil {
		return fmt.Errorf("client: ping: %w", err)
	}
	return nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
