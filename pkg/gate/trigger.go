package gate

import (
	"errors"
	"fmt"
	"os"
	"time"

	"reviewgate/pkg/signals"
)

// Request describes one pending popup activation.
type Request struct {
	// ID is the trigger identifier, from NewTriggerID.
	ID string
	// Tool is the operation kind the host should render.
	Tool string
	// Message is the human-facing prompt.
	Message string
	// Title is the popup window title.
	Title string
	// Context carries free-form background for the reviewer.
	Context string
	// Urgent marks the request as urgent on the host side.
	Urgent bool
	// Extra holds tool-specific fields merged into the trigger payload
	// (e.g. prompt, instruction, file_types).
	Extra map[string]any
}

// triggerEnvelope is the physical trigger document.
type triggerEnvelope struct {
	Timestamp           string         `json:"timestamp"`
	System              string         `json:"system"`
	Editor              string         `json:"editor"`
	Data                map[string]any `json:"data"`
	PID                 int            `json:"pid"`
	ActiveWindow        bool           `json:"active_window"`
	MCPIntegration      bool           `json:"mcp_integration"`
	ImmediateActivation bool           `json:"immediate_activation"`
}

// backupEnvelope is the reduced envelope used for backup copies.
type backupEnvelope struct {
	BackupID            int            `json:"backup_id"`
	Timestamp           string         `json:"timestamp"`
	System              string         `json:"system"`
	Data                map[string]any `json:"data"`
	MCPIntegration      bool           `json:"mcp_integration"`
	ImmediateActivation bool           `json:"immediate_activation"`
}

// payload builds the data block of the trigger document.
func (r *Request) payload(now time.Time) map[string]any {
	data := map[string]any{
		"tool":                 r.Tool,
		"trigger_id":           r.ID,
		"urgent":               r.Urgent,
		"timestamp":            now.Format(time.RFC3339),
		"immediate_activation": true,
	}
	if r.Message != "" {
		data["message"] = r.Message
	}
	if r.Title != "" {
		data["title"] = r.Title
	}
	if r.Context != "" {
		data["context"] = r.Context
	}
	for k, v := range r.Extra {
		data[k] = v
	}
	return data
}

// Emit writes the primary trigger document and its backup copies.
//
// Returns false only when the primary write cannot be verified: the write
// itself failed, or the file exists with zero size. A primary that stats
// as missing right after a successful write was consumed by the host
// already - that is success. Backup failures are logged and non-fatal.
func (g *Gate) Emit(req *Request) bool {
	now := time.Now()
	data := req.payload(now)
	envelope := triggerEnvelope{
		Timestamp:           now.Format(time.RFC3339),
		System:              SystemID,
		Editor:              EditorID,
		Data:                data,
		PID:                 os.Getpid(),
		ActiveWindow:        true,
		MCPIntegration:      true,
		ImmediateActivation: true,
	}

	if err := g.store.Write(TriggerName, envelope); err != nil {
		g.logger.Error("❌ CRITICAL: Failed to create trigger: %v", err)
		return false
	}

	size, err := g.store.Size(TriggerName)
	switch {
	case errors.Is(err, signals.ErrNotFound):
		g.logger.Info("✅ Trigger file was consumed immediately by extension")
	case err != nil:
		g.logger.Info("✅ Cannot check trigger file status (likely consumed): %v", err)
	case size == 0:
		g.logger.Error("❌ Trigger file is empty: %s", TriggerName)
		return false
	default:
		g.logger.Info("🔥 Immediate trigger created: %s (%d bytes)", g.store.Path(TriggerName), size)
	}

	g.writeBackupTriggers(data, now)

	g.logger.Info("🎯 Popup triggered for tool %s (trigger_id: %s)", req.Tool, req.ID)
	return true
}

// writeBackupTriggers writes the numbered backup copies.
func (g *Gate) writeBackupTriggers(data map[string]any, now time.Time) {
	for i := 0; i < backupTriggerCount; i++ {
		backup := backupEnvelope{
			BackupID:            i,
			Timestamp:           now.Format(time.RFC3339),
			System:              SystemID,
			Data:                data,
			MCPIntegration:      true,
			ImmediateActivation: true,
		}
		name := fmt.Sprintf(backupTriggerTemplate, i)
		if err := g.store.Write(name, backup); err != nil {
			g.logger.Warn("⚠️ Backup trigger creation failed for %s: %v", name, err)
		}
	}
	g.logger.Debug("Backup trigger files created")
}
