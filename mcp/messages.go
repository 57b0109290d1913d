package mcp

// Implementation identifies a server or client.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool represents a tool definition as advertised by tools/list.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema represents the JSON schema for tool input
type InputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
	Title      string         `json:"title,omitempty"`
}

// Content is one block of a tool result. Only text blocks are produced
// today; clients are expected to skip kinds they do not understand.
type Content struct {
	Type ContentType `json:"type"`
	Text string      `json:"text"`
}

// TextContent builds a text content block.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// ToolResult is the response envelope of tools/call.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text concatenates every text block of the result.
func (r ToolResult) Text() string {
	var out string
	for _, block := range r.Content {
		if block.Type == ContentText {
			out += block.Text
		}
	}
	return out
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the payload of the initialize response.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// ListToolsResult is the payload of the tools/list response.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams is the payload of the tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}
