package tools

// Tool name constants - use these instead of magic strings to prevent
// typos and enable compile-time checking.
const (
	ToolReviewGateChat = "review_gate_chat"
	ToolQuickReview    = "quick_review"
	ToolFileReview     = "file_review"
	ToolIngestText     = "ingest_text"
	ToolShutdownMCP    = "shutdown_mcp"
)

// DefaultTools is the full tool set exposed over MCP.
//
//nolint:gochecknoglobals // Shared tool-set constant
var DefaultTools = []string{
	ToolReviewGateChat,
	ToolQuickReview,
	ToolFileReview,
	ToolIngestText,
	ToolShutdownMCP,
}
