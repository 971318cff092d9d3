package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reviewgate/pkg/signals"
)

// ackDocument is the host-written acknowledgement body.
type ackDocument struct {
	Acknowledged bool `json:"acknowledged"`
}

// WaitAck polls for the host's acknowledgement of a trigger.
//
// Any observed acknowledgement document is deleted immediately regardless
// of its flag value - a stale or spurious ack must not be re-observed.
// Returns false on timeout; absence of an acknowledgement is advisory and
// never blocks the subsequent response wait.
func (g *Gate) WaitAck(ctx context.Context, triggerID string, timeout time.Duration) bool {
	name := fmt.Sprintf(ackTemplate, triggerID)
	deadline := time.Now().Add(timeout)

	g.logger.Info("🔍 Monitoring for extension acknowledgement: %s", name)

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		var ack ackDocument
		err := g.store.Read(name, &ack)
		switch {
		case err == nil:
			if delErr := g.store.Delete(name); delErr != nil {
				g.logger.Warn("⚠️ Acknowledgement cleanup error: %v", delErr)
			}
			if ack.Acknowledged {
				g.logger.Info("📨 Extension acknowledged popup activation for trigger %s", triggerID)
				return true
			}
		case errors.Is(err, signals.ErrNotFound):
			// Keep polling.
		default:
			g.logger.Error("❌ Error reading acknowledgement file: %v", err)
			if !g.sleep(ctx, g.errorBackoff) {
				return false
			}
			continue
		}

		select {
		case <-ctx.Done():
			return false
		case <-g.wake:
		case <-ticker.C:
		}
	}

	g.logger.Warn("⏰ Timeout waiting for extension acknowledgement (trigger_id: %s)", triggerID)
	return false
}

// sleep waits for d, returning false if the context was cancelled first.
func (g *Gate) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
