package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reviewgate/pkg/config"
	"reviewgate/pkg/gate"
	"reviewgate/pkg/logx"
	"reviewgate/pkg/metrics"
	"reviewgate/pkg/persistence"
)

const fileReviewDescription = "Open a file picker popup so the user can select files for review. " +
	"Returns the selected paths; the popup waits up to 90 seconds."

// FileReviewTool opens a file picker popup and reports the selection.
type FileReviewTool struct {
	gate        *gate.Gate
	logger      *logx.Logger
	waitTimeout time.Duration
}

// NewFileReviewTool creates a new file_review tool instance.
func NewFileReviewTool(g *gate.Gate) *FileReviewTool {
	return &FileReviewTool{
		gate:        g,
		logger:      logx.NewLogger("tool-file"),
		waitTimeout: config.Get().QuickTimeout,
	}
}

// Definition returns the tool's definition in MCP schema form.
func (t *FileReviewTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolFileReview,
		Description: fileReviewDescription,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"instruction": {
					Type:        "string",
					Description: "What the user should select files for",
					Default:     "Please select file(s):",
				},
				"file_types": {
					Type:        "array",
					Description: "Allowed file extensions, * for any",
					Items:       &Property{Type: "string"},
					Default:     []string{"*"},
				},
			},
		},
	}
}

// Name returns the tool identifier.
func (t *FileReviewTool) Name() string {
	return ToolFileReview
}

// PromptDocumentation returns markdown documentation for LLM prompts.
func (t *FileReviewTool) PromptDocumentation() string {
	return `- **file_review** - Ask the user to pick files through a popup
  - Parameters:
    - instruction (string, optional): what to select files for
    - file_types (array of string, optional): allowed extensions, default any
  - Returns a summary with the selected paths; waits at most 90 seconds`
}

// Exec opens the file picker and waits for the selection.
func (t *FileReviewTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	instruction := stringArg(args, "instruction", "Please select file(s):")
	fileTypes := stringSliceArg(args, "file_types", []string{"*"})

	t.logger.Info("📁 ACTIVATING File Review IMMEDIATELY: %s", instruction)

	triggerID := gate.NewTriggerID("file")
	metrics.RequestsTotal.WithLabelValues(ToolFileReview).Inc()

	ok := t.gate.Emit(&gate.Request{
		ID:    triggerID,
		Tool:  ToolFileReview,
		Title: "File Review - Review Gate v2",
		Extra: map[string]any{
			"instruction": instruction,
			"file_types":  fileTypes,
		},
	})
	if !ok {
		return &ExecResult{Content: "⚠️ File Review trigger failed. Manual activation needed."}, nil
	}

	t.logger.Info("🔥 FILE POPUP TRIGGERED - waiting for selection (trigger_id: %s)", triggerID)

	userInput, received := t.gate.WaitResponse(ctx, triggerID, t.waitTimeout)

	var response string
	if received {
		response = fmt.Sprintf(
			"📁 File Review completed!\n\n**Selected Files:** %s\n\n**Instruction:** %s\n**Allowed Types:** %s\n\n"+
				"You can now proceed to analyze the selected files.",
			userInput, instruction, strings.Join(fileTypes, ", "))
		t.logger.Info("✅ FILES SELECTED: %s", userInput)
		metrics.ResponsesTotal.WithLabelValues(ToolFileReview).Inc()
		persistence.RecordInteraction(ToolFileReview, triggerID, instruction, userInput, false)
	} else {
		response = fmt.Sprintf(
			"⏰ File Review timed out.\n\n**Instruction:** %s\n\nNo files selected within 1.5 minutes. Try again.",
			instruction)
		t.logger.Warn("⚠️ File review timed out")
		metrics.TimeoutsTotal.WithLabelValues("response").Inc()
		persistence.RecordInteraction(ToolFileReview, triggerID, instruction, "", true)
	}

	t.logger.Info("🏁 File review processing complete")
	return &ExecResult{Content: response}, nil
}
