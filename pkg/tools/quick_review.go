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

const quickReviewDescription = "Open a lightweight input popup for fast one-line feedback. " +
	"Use for quick confirmations or short answers; the popup waits up to 90 seconds."

// QuickReviewTool opens a minimal prompt popup with a short timeout and
// returns the user's raw text.
type QuickReviewTool struct {
	gate        *gate.Gate
	logger      *logx.Logger
	waitTimeout time.Duration
}

// NewQuickReviewTool creates a new quick_review tool instance.
func NewQuickReviewTool(g *gate.Gate) *QuickReviewTool {
	return &QuickReviewTool{
		gate:        g,
		logger:      logx.NewLogger("tool-quick"),
		waitTimeout: config.Get().QuickTimeout,
	}
}

// Definition returns the tool's definition in MCP schema form.
func (t *QuickReviewTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolQuickReview,
		Description: quickReviewDescription,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"prompt": {
					Type:        "string",
					Description: "The prompt shown to the user",
					Default:     "Quick feedback needed:",
				},
				"context": {
					Type:        "string",
					Description: "Additional context for the request",
					Default:     "",
				},
			},
		},
	}
}

// Name returns the tool identifier.
func (t *QuickReviewTool) Name() string {
	return ToolQuickReview
}

// PromptDocumentation returns markdown documentation for LLM prompts.
func (t *QuickReviewTool) PromptDocumentation() string {
	return `- **quick_review** - Ask the user for fast one-line feedback
  - Parameters:
    - prompt (string, optional): the question shown to the user
    - context (string, optional): extra context
  - Returns the user's text verbatim; waits at most 90 seconds`
}

// Exec opens the quick prompt and waits for the user's text.
func (t *QuickReviewTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	prompt := stringArg(args, "prompt", "Quick feedback needed:")
	quickContext := stringArg(args, "context", "")

	t.logger.Info("⚡ ACTIVATING Quick Review IMMEDIATELY: %s", prompt)

	triggerID := gate.NewTriggerID("quick")
	metrics.RequestsTotal.WithLabelValues(ToolQuickReview).Inc()

	ok := t.gate.Emit(&gate.Request{
		ID:      triggerID,
		Tool:    ToolQuickReview,
		Title:   "Quick Review - Review Gate v2",
		Context: quickContext,
		Extra:   map[string]any{"prompt": prompt},
	})
	if !ok {
		return &ExecResult{Content: "ERROR: Failed to trigger quick review popup"}, nil
	}

	t.logger.Info("🔥 QUICK POPUP TRIGGERED - waiting for user input (trigger_id: %s)", triggerID)

	userInput, received := t.gate.WaitResponse(ctx, triggerID, t.waitTimeout)
	if !received {
		t.logger.Warn("⚠️ Quick review timed out")
		metrics.TimeoutsTotal.WithLabelValues("response").Inc()
		persistence.RecordInteraction(ToolQuickReview, triggerID, prompt, "", true)
		return &ExecResult{Content: "TIMEOUT: No quick review input received within 1.5 minutes"}, nil
	}

	t.logger.Info("✅ RETURNING QUICK REVIEW: %s", userInput)
	metrics.ResponsesTotal.WithLabelValues(ToolQuickReview).Inc()
	persistence.RecordInteraction(ToolQuickReview, triggerID, prompt, userInput, false)

	return &ExecResult{Content: userInput}, nil
}
