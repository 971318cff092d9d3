package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewgate/pkg/signals"
)

// responseDocument is the host-written response body. Pointer fields
// distinguish absent keys from empty strings: the text is taken from the
// FIRST PRESENT of user_input, response, message, in that order.
type responseDocument struct {
	UserInput   *string      `json:"user_input"`
	Response    *string      `json:"response"`
	Message     *string      `json:"message"`
	Attachments []Attachment `json:"attachments"`
	TriggerID   string       `json:"trigger_id"`
}

// text extracts the response text by field priority.
func (d *responseDocument) text() string {
	for _, field := range []*string{d.UserInput, d.Response, d.Message} {
		if field != nil {
			return strings.TrimSpace(*field)
		}
	}
	return ""
}

// responseCandidates returns the document names checked for a given
// trigger, most specific first. The unscoped names exist for hosts that
// cannot echo the id back; they are effectively single-slot across all
// pending requests - a response without a declared trigger_id is accepted
// by whichever waiter polls first. Documented, accepted race.
func responseCandidates(triggerID string) []string {
	return []string{
		fmt.Sprintf(responseByIDTemplate, triggerID),
		responseSharedName,
		fmt.Sprintf(mcpByIDTemplate, triggerID),
		mcpSharedName,
	}
}

// WaitResponse polls for the user's response to a trigger.
//
// Candidate documents declaring a different trigger_id are skipped and
// left in place for their rightful waiter. Matching (or unscoped)
// documents are deleted on first sighting; their attachments overwrite the
// single most-recent attachment slot. An empty extracted text consumes the
// document but keeps polling. Returns ("", false) on timeout.
func (g *Gate) WaitResponse(ctx context.Context, triggerID string, timeout time.Duration) (string, bool) {
	candidates := responseCandidates(triggerID)
	deadline := time.Now().Add(timeout)

	g.logger.Info("👁️ Monitoring for response files (trigger_id: %s)", triggerID)

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		for _, name := range candidates {
			input, found := g.consumeResponse(name, triggerID)
			if !found {
				continue
			}
			if input == "" {
				g.logger.Warn("⚠️ Empty user input in file: %s", name)
				continue
			}
			g.logger.Info("🎉 Received user input for trigger %s", triggerID)
			return input, true
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-g.wake:
		case <-ticker.C:
		}
	}

	g.logger.Warn("⏰ Timeout waiting for user input (trigger_id: %s)", triggerID)
	return "", false
}

// consumeResponse inspects one candidate document. The bool result
// reports whether a document addressed to this waiter was consumed; the
// string is its extracted text, possibly empty.
func (g *Gate) consumeResponse(name, triggerID string) (string, bool) {
	body, err := g.store.ReadText(name)
	if err != nil {
		if !errors.Is(err, signals.ErrNotFound) {
			g.logger.Error("❌ Error reading response file %s: %v", name, err)
		}
		return "", false
	}

	var input string
	var attachments []Attachment

	if strings.HasPrefix(body, "{") {
		var doc responseDocument
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			// Possibly a partial write; leave the document for a later
			// poll or its eventual overwrite.
			g.logger.Error("❌ JSON decode error in %s: %v", name, err)
			return "", false
		}

		// Only documents that declare an id are correlated; a mismatch
		// belongs to another waiter and must not be deleted here.
		if doc.TriggerID != "" && doc.TriggerID != triggerID {
			g.logger.Info("⚠️ Trigger ID mismatch: expected %s, got %s", triggerID, doc.TriggerID)
			return "", false
		}

		input = doc.text()
		attachments = doc.Attachments
		if len(attachments) > 0 {
			g.logger.Info("📎 Found %d attachments", len(attachments))
			input += attachmentSummary(attachments)
		}
	} else {
		input = body
	}

	g.setAttachments(attachments)

	if err := g.store.Delete(name); err != nil {
		g.logger.Warn("⚠️ Response cleanup error: %v", err)
	} else {
		g.logger.Debug("Response file cleaned up: %s", name)
	}

	return input, true
}

// attachmentSummary renders the "Attached: ..." suffix for image
// attachments.
func attachmentSummary(attachments []Attachment) string {
	var descriptions []string
	for i := range attachments {
		if strings.HasPrefix(attachments[i].MimeType, "image/") {
			fileName := attachments[i].FileName
			if fileName == "" {
				fileName = "unknown"
			}
			descriptions = append(descriptions, "Image: "+fileName)
		}
	}
	if len(descriptions) == 0 {
		return ""
	}
	return "\n\nAttached: " + strings.Join(descriptions, ", ")
}
