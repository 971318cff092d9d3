package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Shutdown is the process-wide termination signal: a single-writer,
// multi-reader atomic flag plus a done channel closed once cleanup has
// completed. Waiters only ever read it.
type Shutdown struct {
	requested atomic.Bool
	mu        sync.Mutex
	reason    string
	done      chan struct{}
	doneOnce  sync.Once
}

// NewShutdown creates an unrequested shutdown signal.
func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Request flips the termination flag. The first caller's reason wins;
// later calls are no-ops.
func (s *Shutdown) Request(reason string) {
	if s.requested.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
	}
}

// Requested reports whether termination has been requested.
func (s *Shutdown) Requested() bool {
	return s.requested.Load()
}

// Reason returns the recorded termination reason.
func (s *Shutdown) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done is closed after shutdown cleanup has completed.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

func (s *Shutdown) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// MonitorShutdown polls the termination flag at a coarse interval and, on
// observing it set, performs best-effort cleanup of all outstanding
// trigger documents before signaling completion. Runs for the whole
// process lifetime.
func (g *Gate) MonitorShutdown(ctx context.Context, shutdown *Shutdown) {
	ticker := time.NewTicker(g.shutdownPoll)
	defer ticker.Stop()

	for !shutdown.Requested() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	g.logger.Info("🧹 Performing cleanup operations before shutdown...")
	g.CleanupTriggers()
	g.logger.Info("✅ Cleanup completed - shutdown ready")
	shutdown.markDone()
}

// CleanupTriggers deletes the primary and backup trigger documents.
// Missing documents are ignored.
func (g *Gate) CleanupTriggers() {
	names := []string{TriggerName}
	for i := 0; i < backupTriggerCount; i++ {
		names = append(names, fmt.Sprintf(backupTriggerTemplate, i))
	}

	for _, name := range names {
		if !g.store.Exists(name) {
			continue
		}
		if err := g.store.Delete(name); err != nil {
			g.logger.Warn("⚠️ Cleanup warning for %s: %v", name, err)
		} else {
			g.logger.Info("🗑️ Cleaned up: %s", g.store.Path(name))
		}
	}
}
