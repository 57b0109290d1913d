package mcp

// ProtocolVersion is the newest protocol revision this server speaks.
const ProtocolVersion = "2025-11-25"

// LegacyProtocolVersion is the first revision with the Streamable HTTP
// transport. A request without a version header is checked against nothing
// and runs under the version negotiated for its session.
const LegacyProtocolVersion = "2025-03-26"

// SupportedProtocolVersions lists every revision accepted during negotiation.
var SupportedProtocolVersions = []string{
	"2024-11-05",
	LegacyProtocolVersion,
	"2025-06-18",
	ProtocolVersion,
}

// IsSupportedProtocolVersion reports whether version can be negotiated.
func IsSupportedProtocolVersion(version string) bool {
	for _, v := range SupportedProtocolVersions {
		if v == version {
			return true
		}
	}
	return false
}

// JSON-RPC methods understood by the dispatcher.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
)

// ContentType tags a content block.
type ContentType string

// Content block kinds.
const (
	ContentText ContentType = "text"
)
