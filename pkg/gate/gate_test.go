package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reviewgate/pkg/signals"
)

func newTestGate(t *testing.T) (*Gate, *signals.Store) {
	t.Helper()
	store := signals.NewStore(t.TempDir())
	g := New(store)
	t.Cleanup(g.Close)
	return g, store
}

// writeResponse writes a response document the way the host extension
// does, bypassing the store.
func writeResponse(t *testing.T, store *signals.Store, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(store.Dir(), name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEmitWritesPrimaryAndBackups(t *testing.T) {
	g, store := newTestGate(t)

	req := &Request{
		ID:      NewTriggerID("review"),
		Tool:    "review_gate_chat",
		Message: "Please review",
		Title:   "Review Gate",
		Urgent:  true,
	}
	if !g.Emit(req) {
		t.Fatal("Emit failed")
	}

	var envelope struct {
		System string         `json:"system"`
		Editor string         `json:"editor"`
		Data   map[string]any `json:"data"`
		PID    int            `json:"pid"`
	}
	if err := store.Read(TriggerName, &envelope); err != nil {
		t.Fatalf("Failed to read primary trigger: %v", err)
	}
	if envelope.System != SystemID {
		t.Errorf("Expected system %q, got %q", SystemID, envelope.System)
	}
	if envelope.Editor != EditorID {
		t.Errorf("Expected editor %q, got %q", EditorID, envelope.Editor)
	}
	if envelope.Data["tool"] != "review_gate_chat" {
		t.Errorf("Expected tool in data, got %v", envelope.Data["tool"])
	}
	if envelope.Data["trigger_id"] != req.ID {
		t.Errorf("Expected trigger_id %q, got %v", req.ID, envelope.Data["trigger_id"])
	}
	if envelope.PID != os.Getpid() {
		t.Errorf("Expected pid %d, got %d", os.Getpid(), envelope.PID)
	}

	for i := 0; i < backupTriggerCount; i++ {
		name := fmt.Sprintf(backupTriggerTemplate, i)
		if !store.Exists(name) {
			t.Errorf("Expected backup trigger %s", name)
		}
	}
}

func TestEmitConsumedImmediatelyIsSuccess(t *testing.T) {
	// The host may consume-and-delete the trigger before the emitter's
	// own verification runs. Simulated here by pre-deleting is not
	// possible synchronously, so this asserts the positive path: a
	// verifiable write reports success.
	g, store := newTestGate(t)

	if !g.Emit(&Request{ID: NewTriggerID("quick"), Tool: "quick_review"}) {
		t.Fatal("Emit should succeed")
	}
	size, err := store.Size(TriggerName)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size == 0 {
		t.Error("Trigger file should be non-empty")
	}
}

func TestWaitResponseReturnsExactTextAndConsumes(t *testing.T) {
	g, store := newTestGate(t)
	id := "review_42"
	name := fmt.Sprintf(responseByIDTemplate, id)

	writeResponse(t, store, name, `{"user_input": "ship it", "trigger_id": "review_42"}`)

	input, ok := g.WaitResponse(context.Background(), id, 2*time.Second)
	if !ok {
		t.Fatal("Expected response")
	}
	if input != "ship it" {
		t.Errorf("Expected exact text %q, got %q", "ship it", input)
	}
	if store.Exists(name) {
		t.Error("Response document should be deleted after consumption")
	}
}

func TestWaitResponseFieldPriority(t *testing.T) {
	g, store := newTestGate(t)

	// user_input wins over response and message.
	writeResponse(t, store, responseSharedName,
		`{"user_input": "primary", "response": "legacy1", "message": "legacy2"}`)
	input, ok := g.WaitResponse(context.Background(), "review_1", time.Second)
	if !ok || input != "primary" {
		t.Fatalf("Expected primary field, got %q ok=%v", input, ok)
	}

	// Legacy "response" key accepted when user_input absent.
	writeResponse(t, store, responseSharedName, `{"response": "legacy answer"}`)
	input, ok = g.WaitResponse(context.Background(), "review_2", time.Second)
	if !ok || input != "legacy answer" {
		t.Fatalf("Expected legacy response field, got %q ok=%v", input, ok)
	}

	// Legacy "message" key as the last fallback.
	writeResponse(t, store, responseSharedName, `{"message": "from message"}`)
	input, ok = g.WaitResponse(context.Background(), "review_3", time.Second)
	if !ok || input != "from message" {
		t.Fatalf("Expected message field, got %q ok=%v", input, ok)
	}
}

func TestWaitResponsePlainText(t *testing.T) {
	g, store := newTestGate(t)

	writeResponse(t, store, responseSharedName, "just plain text\n")
	input, ok := g.WaitResponse(context.Background(), "review_5", time.Second)
	if !ok || input != "just plain text" {
		t.Fatalf("Expected plain text body, got %q ok=%v", input, ok)
	}
}

func TestWaitResponseMismatchedIDNeverConsumed(t *testing.T) {
	g, store := newTestGate(t)

	// Document addressed to a different waiter, sitting under a name this
	// waiter also polls.
	writeResponse(t, store, responseSharedName, `{"user_input": "not yours", "trigger_id": "review_other"}`)

	input, ok := g.WaitResponse(context.Background(), "review_mine", 400*time.Millisecond)
	if ok {
		t.Fatalf("Mismatched response must not be returned, got %q", input)
	}
	if !store.Exists(responseSharedName) {
		t.Error("Mismatched response must be left for its rightful waiter")
	}
}

func TestWaitResponseTimeoutNotBeforeDeadline(t *testing.T) {
	g, _ := newTestGate(t)

	timeout := 300 * time.Millisecond
	start := time.Now()
	_, ok := g.WaitResponse(context.Background(), "review_none", timeout)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("Expected timeout")
	}
	if elapsed < timeout {
		t.Errorf("Returned before timeout elapsed: %v < %v", elapsed, timeout)
	}
}

func TestWaitResponseEmptyTextConsumedAndPollingContinues(t *testing.T) {
	g, store := newTestGate(t)
	name := fmt.Sprintf(responseByIDTemplate, "review_e")

	writeResponse(t, store, name, `{"user_input": "   "}`)

	done := make(chan struct{})
	go func() {
		defer close(done)
		input, ok := g.WaitResponse(context.Background(), "review_e", 2*time.Second)
		if !ok || input != "real answer" {
			t.Errorf("Expected later real answer, got %q ok=%v", input, ok)
		}
	}()

	// The empty document is consumed but the wait keeps going; a later
	// valid response is still delivered.
	time.Sleep(400 * time.Millisecond)
	if store.Exists(name) {
		t.Error("Empty response document should still be deleted")
	}
	writeResponse(t, store, name, `{"user_input": "real answer", "trigger_id": "review_e"}`)
	<-done
}

func TestWaitResponseMalformedSkipped(t *testing.T) {
	g, store := newTestGate(t)
	name := fmt.Sprintf(responseByIDTemplate, "review_m")

	writeResponse(t, store, name, `{"user_input": "trunca`)

	_, ok := g.WaitResponse(context.Background(), "review_m", 400*time.Millisecond)
	if ok {
		t.Fatal("Malformed document must not produce a response")
	}
	// Consistent with the no-delete-on-mismatch rule: the unparseable
	// document stays in place.
	if !store.Exists(name) {
		t.Error("Malformed document should remain")
	}
}

func TestWaitResponseRecordsAttachments(t *testing.T) {
	g, store := newTestGate(t)

	doc := map[string]any{
		"user_input": "see screenshots",
		"trigger_id": "review_a",
		"attachments": []map[string]string{
			{"mimeType": "image/png", "fileName": "one.png", "base64Data": "aaa"},
			{"mimeType": "image/png", "fileName": "two.png", "base64Data": "bbb"},
			{"mimeType": "image/jpeg", "fileName": "three.jpg", "base64Data": "ccc"},
		},
	}
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	writeResponse(t, store, fmt.Sprintf(responseByIDTemplate, "review_a"), string(body))

	input, ok := g.WaitResponse(context.Background(), "review_a", 2*time.Second)
	if !ok {
		t.Fatal("Expected response")
	}

	atts := g.LastAttachments()
	if len(atts) != 3 {
		t.Fatalf("Expected exactly 3 attachments in the slot, got %d", len(atts))
	}
	if atts[0].FileName != "one.png" || atts[2].MimeType != "image/jpeg" {
		t.Errorf("Unexpected attachment contents: %+v", atts)
	}
	if want := "Attached: Image: one.png, Image: two.png, Image: three.jpg"; !strings.Contains(input, want) {
		t.Errorf("Expected attachment summary in %q", input)
	}
}

func TestWaitResponseClearsAttachmentSlot(t *testing.T) {
	g, store := newTestGate(t)

	g.setAttachments([]Attachment{{MimeType: "image/png", FileName: "stale.png"}})

	writeResponse(t, store, responseSharedName, `{"user_input": "no attachments here"}`)
	if _, ok := g.WaitResponse(context.Background(), "review_c", time.Second); !ok {
		t.Fatal("Expected response")
	}
	if len(g.LastAttachments()) != 0 {
		t.Error("Attachment slot should be overwritten by the attachment-free response")
	}
}

func TestScenarioReviewGateLatency(t *testing.T) {
	g, store := newTestGate(t)
	id := "review_1000"
	name := fmt.Sprintf(responseByIDTemplate, id)

	writtenAt := make(chan time.Time, 1)
	go func() {
		time.Sleep(300 * time.Millisecond)
		writeResponse(t, store, name, `{"user_input":"looks good","trigger_id":"review_1000"}`)
		writtenAt <- time.Now()
	}()

	start := time.Now()
	input, ok := g.WaitResponse(context.Background(), id, 2*time.Second)
	returned := time.Now()

	if !ok {
		t.Fatal("Expected response before the 2s bound")
	}
	if input != "looks good" {
		t.Errorf("Expected %q, got %q", "looks good", input)
	}
	if total := returned.Sub(start); total >= 2*time.Second {
		t.Errorf("Response took the full timeout: %v", total)
	}
	// Latency from document appearance to return should be a small
	// multiple of the poll interval.
	if latency := returned.Sub(<-writtenAt); latency > 500*time.Millisecond {
		t.Errorf("Observed latency %v after document appearance", latency)
	}
}

func TestWaitAckDeletesOnObservation(t *testing.T) {
	g, store := newTestGate(t)
	id := "review_ack"
	name := fmt.Sprintf(ackTemplate, id)

	// Acknowledged true: returned and deleted.
	writeResponse(t, store, name, `{"acknowledged": true}`)
	if !g.WaitAck(context.Background(), id, time.Second) {
		t.Fatal("Expected ack")
	}
	if store.Exists(name) {
		t.Error("Ack document should be deleted on first observation")
	}

	// A second wait observes nothing.
	if g.WaitAck(context.Background(), id, 300*time.Millisecond) {
		t.Error("Consumed ack must not be re-observed")
	}
}

func TestWaitAckFalseFlagStillDeleted(t *testing.T) {
	g, store := newTestGate(t)
	id := "review_nack"
	name := fmt.Sprintf(ackTemplate, id)

	writeResponse(t, store, name, `{"acknowledged": false}`)

	if g.WaitAck(context.Background(), id, 400*time.Millisecond) {
		t.Error("Unacknowledged flag must not report success")
	}
	if store.Exists(name) {
		t.Error("Ack document deleted regardless of flag value")
	}
}

func TestMonitorShutdownCleansTriggers(t *testing.T) {
	g, store := newTestGate(t)

	if !g.Emit(&Request{ID: NewTriggerID("review"), Tool: "review_gate_chat", Message: "m"}) {
		t.Fatal("Emit failed")
	}

	shutdown := NewShutdown()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.MonitorShutdown(ctx, shutdown)

	shutdown.Request("test complete")

	select {
	case <-shutdown.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown cleanup did not complete")
	}

	if store.Exists(TriggerName) {
		t.Error("Primary trigger should be cleaned up")
	}
	for i := 0; i < backupTriggerCount; i++ {
		if store.Exists(fmt.Sprintf(backupTriggerTemplate, i)) {
			t.Errorf("Backup trigger %d should be cleaned up", i)
		}
	}
	if shutdown.Reason() != "test complete" {
		t.Errorf("Expected first reason to win, got %q", shutdown.Reason())
	}
}

func TestShutdownFirstReasonWins(t *testing.T) {
	shutdown := NewShutdown()
	shutdown.Request("first")
	shutdown.Request("second")
	if shutdown.Reason() != "first" {
		t.Errorf("Expected first reason, got %q", shutdown.Reason())
	}
	if !shutdown.Requested() {
		t.Error("Expected requested")
	}
}

func TestNewTriggerIDShape(t *testing.T) {
	id := NewTriggerID("review")
	if len(id) <= len("review_") || id[:7] != "review_" {
		t.Errorf("Unexpected trigger id shape: %q", id)
	}
}
