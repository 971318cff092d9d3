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

const shutdownMCPDescription = "Request a graceful server shutdown with explicit user confirmation. " +
	"The user must confirm in the popup; any other answer cancels the shutdown."

// confirmWords are the accepted confirmation answers, compared
// case-insensitively after trimming.
//
//nolint:gochecknoglobals // Fixed confirmation vocabulary
var confirmWords = []string{"CONFIRM", "YES", "Y", "SHUTDOWN", "PROCEED"}

// ShutdownMCPTool asks the user to confirm server termination. Only a
// confirmation word flips the shutdown flag; timeouts and alternative
// instructions leave the server running.
type ShutdownMCPTool struct {
	gate        *gate.Gate
	shutdown    *gate.Shutdown
	logger      *logx.Logger
	waitTimeout time.Duration
}

// NewShutdownMCPTool creates a new shutdown_mcp tool instance.
func NewShutdownMCPTool(g *gate.Gate, shutdown *gate.Shutdown) *ShutdownMCPTool {
	return &ShutdownMCPTool{
		gate:        g,
		shutdown:    shutdown,
		logger:      logx.NewLogger("tool-shutdown"),
		waitTimeout: config.Get().ShutdownConfirmTimeout,
	}
}

// Definition returns the tool's definition in MCP schema form.
func (t *ShutdownMCPTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolShutdownMCP,
		Description: shutdownMCPDescription,
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"reason": {
					Type:        "string",
					Description: "Why the server should shut down",
					Default:     "Task completed successfully",
				},
				"immediate": {
					Type:        "boolean",
					Description: "Whether shutdown should skip the grace period",
					Default:     false,
				},
				"cleanup": {
					Type:        "boolean",
					Description: "Whether trigger documents should be removed on exit",
					Default:     true,
				},
			},
		},
	}
}

// Name returns the tool identifier.
func (t *ShutdownMCPTool) Name() string {
	return ToolShutdownMCP
}

// PromptDocumentation returns markdown documentation for LLM prompts.
func (t *ShutdownMCPTool) PromptDocumentation() string {
	return `- **shutdown_mcp** - Request server shutdown with user confirmation
  - Parameters:
    - reason (string, optional): why the server should stop
    - immediate (boolean, optional): skip the grace period
    - cleanup (boolean, optional): remove trigger documents on exit
  - The user must answer CONFIRM, YES, Y, SHUTDOWN or PROCEED in the popup
  - Any other answer or a timeout cancels the shutdown`
}

// Exec opens the confirmation popup and acts on the user's answer.
func (t *ShutdownMCPTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	reason := stringArg(args, "reason", "Task completed successfully")
	immediate := boolArg(args, "immediate", false)
	cleanup := boolArg(args, "cleanup", true)

	t.logger.Info("🛑 ACTIVATING shutdown_mcp IMMEDIATELY: %s", reason)

	triggerID := gate.NewTriggerID("shutdown")
	metrics.RequestsTotal.WithLabelValues(ToolShutdownMCP).Inc()

	ok := t.gate.Emit(&gate.Request{
		ID:    triggerID,
		Tool:  ToolShutdownMCP,
		Title: "Shutdown - Review Gate v2",
		Extra: map[string]any{
			"reason":    reason,
			"immediate": immediate,
			"cleanup":   cleanup,
		},
	})
	if !ok {
		return &ExecResult{Content: "⚠️ shutdown_mcp trigger failed. Manual activation may be needed."}, nil
	}

	t.logger.Info("🛑 SHUTDOWN TRIGGERED - waiting for confirmation (trigger_id: %s)", triggerID)

	userInput, received := t.gate.WaitResponse(ctx, triggerID, t.waitTimeout)

	var response string
	switch {
	case !received:
		response = fmt.Sprintf(
			"⏰ shutdown_mcp timed out.\n\n**Reason:** %s\n\nNo response received within 1 minute. "+
				"Shutdown cancelled due to timeout.",
			reason)
		t.logger.Warn("⚠️ Shutdown timed out - shutdown cancelled")
		metrics.TimeoutsTotal.WithLabelValues("response").Inc()
		persistence.RecordInteraction(ToolShutdownMCP, triggerID, reason, "", true)

	case t.isConfirmation(userInput):
		t.shutdown.Request("User confirmed: " + strings.TrimSpace(userInput))
		response = fmt.Sprintf(
			"🛑 shutdown_mcp CONFIRMED!\n\n**User Confirmation:** %s\n\n**Reason:** %s\n"+
				"**Immediate:** %v\n**Cleanup:** %v\n\n✅ MCP server will now shut down gracefully...",
			userInput, reason, immediate, cleanup)
		t.logger.Info("✅ SHUTDOWN CONFIRMED BY USER: %s", logx.Truncate(userInput, 100))
		t.logger.Info("🛑 Server shutdown initiated - reason: %s", t.shutdown.Reason())
		metrics.ResponsesTotal.WithLabelValues(ToolShutdownMCP).Inc()
		persistence.RecordInteraction(ToolShutdownMCP, triggerID, reason, userInput, false)

	default:
		response = fmt.Sprintf(
			"💡 shutdown_mcp CANCELLED - Alternative instructions received!\n\n**User Response:** %s\n\n"+
				"**Original Reason:** %s\n\nShutdown cancelled. User provided alternative instructions "+
				"instead of confirmation.",
			userInput, reason)
		t.logger.Info("💡 SHUTDOWN CANCELLED - user provided alternative: %s", logx.Truncate(userInput, 100))
		metrics.ResponsesTotal.WithLabelValues(ToolShutdownMCP).Inc()
		persistence.RecordInteraction(ToolShutdownMCP, triggerID, reason, userInput, false)
	}

	t.logger.Info("🏁 shutdown_mcp processing complete")
	return &ExecResult{Content: response}, nil
}

func (t *ShutdownMCPTool) isConfirmation(input string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	for _, word := range confirmWords {
		if normalized == word {
			return true
		}
	}
	return false
}
