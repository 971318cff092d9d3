package tools

import (
	"context"
	"time"

	"reviewgate/pkg/config"
	"reviewgate/pkg/gate"
	"reviewgate/pkg/logx"
	"reviewgate/pkg/metrics"
	"reviewgate/pkg/persistence"
)

const reviewGateChatDescription = "Open Review Gate chat popup in Cursor for feedback and reviews. " +
	"Use this when you need user input, feedback, or review from the human user. " +
	"The popup will appear in Cursor and wait for user response for up to 5 minutes."

// ReviewGateChatTool opens the main review popup and blocks for the
// user's answer: ack first (advisory), then the response wait.
type ReviewGateChatTool struct {
	gate        *gate.Gate
	logger      *logx.Logger
	ackTimeout  time.Duration
	waitTimeout time.Duration
}

// NewReviewGateChatTool creates a new review_gate_chat tool instance.
func NewReviewGateChatTool(g *gate.Gate) *ReviewGateChatTool {
	cfg := config.Get()
	return &ReviewGateChatTool{
		gate:        g,
		logger:      logx.NewLogger("tool-review"),
		ackTimeout:  cfg.AckTimeout,
		waitTimeout: cfg.ReviewTimeout,
	}
}

// Definition returns the tool's definition in MCP schema form.
func (t *ReviewGateChatTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReviewGateChat,
		Description: reviewGateChatDescription,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"message": {
					Type:        "string",
					Description: "The message to display in the Review Gate popup - this is what the user will see",
					Default:     "Please provide your review or feedback:",
				},
				"title": {
					Type:        "string",
					Description: "Title for the Review Gate popup window",
					Default:     "Review Gate V2 - ゲート",
				},
				"context": {
					Type:        "string",
					Description: "Additional context about what needs review (code, implementation, etc.)",
					Default:     "",
				},
				"urgent": {
					Type:        "boolean",
					Description: "Whether this is an urgent review request",
					Default:     false,
				},
			},
		},
	}
}

// Name returns the tool identifier.
func (t *ReviewGateChatTool) Name() string {
	return ToolReviewGateChat
}

// PromptDocumentation returns markdown documentation for LLM prompts.
func (t *ReviewGateChatTool) PromptDocumentation() string {
	return `- **review_gate_chat** - Open the Review Gate popup and wait for user feedback
  - Parameters:
    - message (string, optional): text shown to the user
    - title (string, optional): popup window title
    - context (string, optional): what is being reviewed
    - urgent (boolean, optional): mark the request urgent
  - Blocks for up to 5 minutes waiting for the user's response
  - Images attached by the user are returned alongside the text`
}

// Exec opens the popup and waits for the user's review.
func (t *ReviewGateChatTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	message := stringArg(args, "message", "Please provide your review:")
	title := stringArg(args, "title", "Review Gate V2 - ゲート")
	reviewContext := stringArg(args, "context", "")
	urgent := boolArg(args, "urgent", false)

	t.logger.Info("💬 ACTIVATING Review Gate chat popup IMMEDIATELY")
	t.logger.Info("📝 Title: %s", title)
	t.logger.Info("📄 Message: %s", message)
	t.logger.Info("📄 Context: %s", reviewContext)
	t.logger.Info("🚨 Urgent: %v", urgent)

	triggerID := gate.NewTriggerID("review")
	metrics.RequestsTotal.WithLabelValues(ToolReviewGateChat).Inc()

	ok := t.gate.Emit(&gate.Request{
		ID:      triggerID,
		Tool:    ToolReviewGateChat,
		Message: message,
		Title:   title,
		Context: reviewContext,
		Urgent:  urgent,
	})
	if !ok {
		t.logger.Error("❌ Failed to trigger Review Gate popup")
		return &ExecResult{Content: "ERROR: Failed to trigger Review Gate popup"}, nil
	}

	t.logger.Info("🔥 POPUP TRIGGERED IMMEDIATELY - waiting for user input (trigger_id: %s)", triggerID)

	// The ack is advisory: a missing ack never cancels the wait.
	if t.gate.WaitAck(ctx, triggerID, t.ackTimeout) {
		t.logger.Info("📨 Extension acknowledged popup activation")
	} else {
		t.logger.Warn("⚠️ No extension acknowledgement received")
		metrics.TimeoutsTotal.WithLabelValues("ack").Inc()
	}

	t.logger.Info("⏳ Waiting for user input for up to 5 minutes...")
	userInput, received := t.gate.WaitResponse(ctx, triggerID, t.waitTimeout)
	if !received {
		t.logger.Warn("⚠️ Review Gate timed out waiting for user input after 5 minutes")
		metrics.TimeoutsTotal.WithLabelValues("response").Inc()
		persistence.RecordInteraction(ToolReviewGateChat, triggerID, message, "", true)
		return &ExecResult{Content: "TIMEOUT: No user input received for review gate within 5 minutes"}, nil
	}

	t.logger.Info("✅ RETURNING USER REVIEW TO MCP CLIENT: %s", logx.Truncate(userInput, 100))
	metrics.ResponsesTotal.WithLabelValues(ToolReviewGateChat).Inc()
	persistence.RecordInteraction(ToolReviewGateChat, triggerID, message, userInput, false)

	return &ExecResult{
		Content:     "User Response: " + userInput,
		Attachments: t.gate.LastAttachments(),
	}, nil
}
