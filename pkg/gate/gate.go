// Package gate implements the file-based signaling protocol between this
// server and the host editor extension: trigger emission, acknowledgement
// and response waits, and lifecycle cleanup.
//
// A single request moves through the states
//
//	Emitted -> (AckPending -> Acked|AckTimedOut) -> ResponsePending -> Fulfilled|ResponseTimedOut
//
// where an ack timeout is advisory only: the response wait proceeds
// regardless.
package gate

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reviewgate/pkg/config"
	"reviewgate/pkg/logx"
	"reviewgate/pkg/signals"
)

// Constant identifiers carried in every trigger envelope. The host
// extension filters on these.
const (
	SystemID = "review-gate-v2"
	EditorID = "cursor"
)

// Signal document name templates. Fixed strings shared with the host
// extension - never configurable.
const (
	// TriggerName is the primary trigger document.
	TriggerName = "review_gate_trigger.json"
	// backupTriggerCount redundant copies increase the odds the host's
	// watcher observes at least one trigger despite event coalescing.
	backupTriggerCount = 3

	backupTriggerTemplate = "review_gate_trigger_%d.json"
	ackTemplate           = "review_gate_ack_%s.json"
	responseByIDTemplate  = "review_gate_response_%s.json"
	responseSharedName    = "review_gate_response.json"
	mcpByIDTemplate       = "mcp_response_%s.json"
	mcpSharedName         = "mcp_response.json"
)

// Attachment is a binary resource the user attached to a response.
type Attachment struct {
	MimeType   string `json:"mimeType"`
	FileName   string `json:"fileName"`
	Base64Data string `json:"base64Data"`
}

// Gate drives the request/response cycle over the shared signal store.
type Gate struct {
	store  *signals.Store
	logger *logx.Logger

	pollInterval time.Duration
	errorBackoff time.Duration
	shutdownPoll time.Duration

	// wake is signaled by the fsnotify watcher so waiters can re-check
	// ahead of their next tick. Single-slot and best-effort: with several
	// concurrent waiters only one may wake early, the others catch up on
	// their ticker. Correctness never depends on it.
	wake    chan struct{}
	watcher *fsnotify.Watcher

	// Most-recently-seen attachment set. Single slot, overwritten per
	// response, shared across concurrent requests.
	attachMu        sync.Mutex
	lastAttachments []Attachment
}

// New creates a Gate over the given store, picking up poll intervals from
// the global config. A directory watcher is attached when possible;
// failure to create one degrades silently to pure interval polling.
func New(store *signals.Store) *Gate {
	cfg := config.Get()
	g := &Gate{
		store:        store,
		logger:       logx.NewLogger("gate"),
		pollInterval: cfg.PollInterval,
		errorBackoff: cfg.ErrorBackoff,
		shutdownPoll: cfg.ShutdownPollInterval,
		wake:         make(chan struct{}, 1),
	}
	g.startWatcher()
	return g
}

// startWatcher wires fsnotify events from the store directory into the
// wake channel. Interval polling remains the backstop, so latency bounds
// hold even if the watcher never fires.
func (g *Gate) startWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		g.logger.Warn("⚠️ fsnotify unavailable, falling back to pure polling: %v", err)
		return
	}
	if err := watcher.Add(g.store.Dir()); err != nil {
		g.logger.Warn("⚠️ Cannot watch %s, falling back to pure polling: %v", g.store.Dir(), err)
		_ = watcher.Close()
		return
	}
	g.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					select {
					case g.wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				g.logger.Debug("Watcher error: %v", err)
			}
		}
	}()
}

// Close releases the directory watcher, if any.
func (g *Gate) Close() {
	if g.watcher != nil {
		_ = g.watcher.Close()
	}
}

// NewTriggerID derives a trigger identifier from the operation kind and
// the current wall clock, e.g. "review_1718031845123". Two requests of
// the same kind in the same millisecond would collide; accepted.
func NewTriggerID(kind string) string {
	return fmt.Sprintf("%s_%d", kind, time.Now().UnixMilli())
}

// LastAttachments returns the most recently recorded attachment set.
func (g *Gate) LastAttachments() []Attachment {
	g.attachMu.Lock()
	defer g.attachMu.Unlock()
	out := make([]Attachment, len(g.lastAttachments))
	copy(out, g.lastAttachments)
	return out
}

func (g *Gate) setAttachments(atts []Attachment) {
	g.attachMu.Lock()
	defer g.attachMu.Unlock()
	g.lastAttachments = atts
}
