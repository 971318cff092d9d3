package tools

import (
	"context"
	"fmt"
	"time"

	"reviewgate/pkg/config"
	"reviewgate/pkg/gate"
	"reviewgate/pkg/logx"
	"reviewgate/pkg/metrics"
	"reviewgate/pkg/persistence"
)

const ingestTextDescription = "Present a block of text to the user for processing and collect their " +
	"feedback through the popup. Waits up to 2 minutes for a response."

// IngestTextTool shows text to the user and collects their feedback.
type IngestTextTool struct {
	gate        *gate.Gate
	logger      *logx.Logger
	waitTimeout time.Duration
}

// NewIngestTextTool creates a new ingest_text tool instance.
func NewIngestTextTool(g *gate.Gate) *IngestTextTool {
	return &IngestTextTool{
		gate:        g,
		logger:      logx.NewLogger("tool-ingest"),
		waitTimeout: config.Get().IngestTimeout,
	}
}

// Definition returns the tool's definition in MCP schema form.
func (t *IngestTextTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolIngestText,
		Description: ingestTextDescription,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"text_content": {
					Type:        "string",
					Description: "The text to present for processing",
					Default:     "",
				},
				"source": {
					Type:        "string",
					Description: "Where the text came from",
					Default:     "extension",
				},
				"context": {
					Type:        "string",
					Description: "Additional context for the text",
					Default:     "",
				},
				"processing_mode": {
					Type:        "string",
					Description: "How the text should be processed",
					Default:     "immediate",
				},
			},
		},
	}
}

// Name returns the tool identifier.
func (t *IngestTextTool) Name() string {
	return ToolIngestText
}

// PromptDocumentation returns markdown documentation for LLM prompts.
func (t *IngestTextTool) PromptDocumentation() string {
	return `- **ingest_text** - Show text to the user and collect feedback on it
  - Parameters:
    - text_content (string, optional): the text to process
    - source (string, optional): origin of the text
    - context (string, optional): extra context
    - processing_mode (string, optional): processing mode hint
  - Returns a summary with the user's feedback; waits at most 2 minutes`
}

// Exec presents the text and waits for the user's feedback.
func (t *IngestTextTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	textContent := stringArg(args, "text_content", "")
	source := stringArg(args, "source", "extension")
	ingestContext := stringArg(args, "context", "")
	processingMode := stringArg(args, "processing_mode", "immediate")

	t.logger.Info("🚀 ACTIVATING ingest_text IMMEDIATELY: %s", logx.Truncate(textContent, 100))
	t.logger.Info("📍 Source: %s, Context: %s, Mode: %s", source, ingestContext, processingMode)

	triggerID := gate.NewTriggerID("ingest")
	metrics.RequestsTotal.WithLabelValues(ToolIngestText).Inc()

	ok := t.gate.Emit(&gate.Request{
		ID:      triggerID,
		Tool:    ToolIngestText,
		Message: "Text to process: " + textContent,
		Title:   "Text Ingestion - Review Gate v2",
		Context: ingestContext,
		Extra: map[string]any{
			"text_content":    textContent,
			"source":          source,
			"processing_mode": processingMode,
		},
	})
	if !ok {
		t.logger.Error("❌ Failed to trigger text ingestion popup")
		result := fmt.Sprintf("⚠️ Text ingestion trigger failed.\n\n📝 Text Content: %s\nManual activation may be needed.",
			textContent)
		return &ExecResult{Content: result}, nil
	}

	t.logger.Info("🔥 INGEST POPUP TRIGGERED - waiting for user input (trigger_id: %s)", triggerID)

	userInput, received := t.gate.WaitResponse(ctx, triggerID, t.waitTimeout)
	if !received {
		t.logger.Warn("⚠️ Text ingestion timed out")
		metrics.TimeoutsTotal.WithLabelValues("response").Inc()
		persistence.RecordInteraction(ToolIngestText, triggerID, textContent, "", true)
		result := fmt.Sprintf(
			"⏰ Text ingestion timed out.\n\n📝 Text Content: %s\n📍 Source: %s\n\nNo user response received within 2 minutes.",
			textContent, source)
		return &ExecResult{Content: result}, nil
	}

	t.logger.Info("✅ INGEST SUCCESS: User provided feedback")
	metrics.ResponsesTotal.WithLabelValues(ToolIngestText).Inc()
	persistence.RecordInteraction(ToolIngestText, triggerID, textContent, userInput, false)

	result := fmt.Sprintf(
		"✅ Text ingestion completed!\n\n📝 Original Text: %s\n💬 User Response: %s\n📍 Source: %s\n"+
			"💭 Context: %s\n⚙️ Processing Mode: %s\n\n🎯 The text has been processed and user feedback collected successfully.",
		textContent, userInput, source, ingestContext, processingMode)
	return &ExecResult{Content: result}, nil
}
