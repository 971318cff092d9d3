package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reviewgate/pkg/config"
	"reviewgate/pkg/gate"
	"reviewgate/pkg/signals"
)

// setupGate builds a gate over a temp signal dir with short timeouts so
// timeout paths finish quickly.
func setupGate(t *testing.T) (*gate.Gate, string) {
	t.Helper()

	old := config.Get()
	t.Cleanup(func() { config.Set(old) })

	cfg := old
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ErrorBackoff = 10 * time.Millisecond
	cfg.AckTimeout = 50 * time.Millisecond
	cfg.ReviewTimeout = 2 * time.Second
	cfg.QuickTimeout = 500 * time.Millisecond
	cfg.IngestTimeout = 500 * time.Millisecond
	cfg.ShutdownConfirmTimeout = 500 * time.Millisecond
	config.Set(cfg)

	dir := t.TempDir()
	g := gate.New(signals.NewStore(dir))
	t.Cleanup(g.Close)
	return g, dir
}

// respondWhenTriggered watches the signal dir for the next trigger
// document and answers it, playing the host extension's part.
func respondWhenTriggered(t *testing.T, dir, text string) {
	t.Helper()

	go func() {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			data, err := os.ReadFile(filepath.Join(dir, "review_gate_trigger.json"))
			if err != nil {
				time.Sleep(5 * time.Millisecond)
				continue
			}

			var envelope struct {
				Data struct {
					TriggerID string `json:"trigger_id"`
				} `json:"data"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil || envelope.Data.TriggerID == "" {
				time.Sleep(5 * time.Millisecond)
				continue
			}

			response := map[string]any{
				"user_input": text,
				"trigger_id": envelope.Data.TriggerID,
			}
			payload, _ := json.Marshal(response)
			name := "review_gate_response_" + envelope.Data.TriggerID + ".json"
			_ = os.WriteFile(filepath.Join(dir, name), payload, 0o644)
			return
		}
	}()
}

func TestReviewGateChatReturnsUserResponse(t *testing.T) {
	g, dir := setupGate(t)
	tool := NewReviewGateChatTool(g)

	respondWhenTriggered(t, dir, "ship it")

	result, err := tool.Exec(context.Background(), map[string]any{
		"message": "Please review the change",
	})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Content != "User Response: ship it" {
		t.Errorf("Unexpected content: %q", result.Content)
	}
}

func TestReviewGateChatTimeout(t *testing.T) {
	g, _ := setupGate(t)

	// Shrink the response wait so the timeout path is fast.
	cfg := config.Get()
	cfg.ReviewTimeout = 200 * time.Millisecond
	config.Set(cfg)

	tool := NewReviewGateChatTool(g)
	result, err := tool.Exec(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !strings.HasPrefix(result.Content, "TIMEOUT:") {
		t.Errorf("Expected TIMEOUT content, got %q", result.Content)
	}
}

func TestQuickReviewReturnsRawText(t *testing.T) {
	g, dir := setupGate(t)
	tool := NewQuickReviewTool(g)

	respondWhenTriggered(t, dir, "yes")

	result, err := tool.Exec(context.Background(), map[string]any{"prompt": "Proceed?"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if result.Content != "yes" {
		t.Errorf("Expected raw user text, got %q", result.Content)
	}
}

func TestFileReviewFormatsSelection(t *testing.T) {
	g, dir := setupGate(t)
	tool := NewFileReviewTool(g)

	respondWhenTriggered(t, dir, "main.go, util.go")

	result, err := tool.Exec(context.Background(), map[string]any{
		"instruction": "Pick the files to refactor",
		"file_types":  []any{".go"},
	})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !strings.Contains(result.Content, "**Selected Files:** main.go, util.go") {
		t.Errorf("Selection missing from content: %q", result.Content)
	}
	if !strings.Contains(result.Content, "**Allowed Types:** .go") {
		t.Errorf("File types missing from content: %q", result.Content)
	}
}

func TestIngestTextIncludesFeedback(t *testing.T) {
	g, dir := setupGate(t)
	tool := NewIngestTextTool(g)

	respondWhenTriggered(t, dir, "summarize it")

	result, err := tool.Exec(context.Background(), map[string]any{
		"text_content": "lorem ipsum",
	})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !strings.Contains(result.Content, "💬 User Response: summarize it") {
		t.Errorf("Feedback missing from content: %q", result.Content)
	}
	if !strings.Contains(result.Content, "📝 Original Text: lorem ipsum") {
		t.Errorf("Original text missing from content: %q", result.Content)
	}
}

func TestShutdownMCPConfirmedFlipsFlag(t *testing.T) {
	g, dir := setupGate(t)
	shutdown := gate.NewShutdown()
	tool := NewShutdownMCPTool(g, shutdown)

	respondWhenTriggered(t, dir, "yes")

	result, err := tool.Exec(context.Background(), map[string]any{"reason": "done"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !strings.Contains(result.Content, "CONFIRMED") {
		t.Errorf("Expected confirmation content, got %q", result.Content)
	}
	if !shutdown.Requested() {
		t.Error("Shutdown flag should be set after confirmation")
	}
	if !strings.HasPrefix(shutdown.Reason(), "User confirmed:") {
		t.Errorf("Unexpected shutdown reason: %q", shutdown.Reason())
	}
}

func TestShutdownMCPAlternativeInstructionsCancel(t *testing.T) {
	g, dir := setupGate(t)
	shutdown := gate.NewShutdown()
	tool := NewShutdownMCPTool(g, shutdown)

	respondWhenTriggered(t, dir, "actually, fix the tests first")

	result, err := tool.Exec(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !strings.Contains(result.Content, "CANCELLED") {
		t.Errorf("Expected cancellation content, got %q", result.Content)
	}
	if shutdown.Requested() {
		t.Error("Shutdown flag should not be set for alternative instructions")
	}
}

func TestShutdownMCPTimeoutCancels(t *testing.T) {
	g, _ := setupGate(t)
	shutdown := gate.NewShutdown()

	cfg := config.Get()
	cfg.ShutdownConfirmTimeout = 150 * time.Millisecond
	config.Set(cfg)

	tool := NewShutdownMCPTool(g, shutdown)
	result, err := tool.Exec(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !strings.Contains(result.Content, "timed out") {
		t.Errorf("Expected timeout content, got %q", result.Content)
	}
	if shutdown.Requested() {
		t.Error("Shutdown flag should not be set after timeout")
	}
}

func TestProviderEnforcesAllowList(t *testing.T) {
	g, _ := setupGate(t)
	provider := NewProvider(GateContext{Gate: g, Shutdown: gate.NewShutdown()}, []string{ToolQuickReview})

	if _, err := provider.Get(ToolQuickReview); err != nil {
		t.Errorf("Allowed tool should resolve: %v", err)
	}
	if _, err := provider.Get(ToolReviewGateChat); err == nil {
		t.Error("Disallowed tool should not resolve")
	}
}

func TestProviderListsAllDefaultTools(t *testing.T) {
	g, _ := setupGate(t)
	provider := NewProvider(GateContext{Gate: g, Shutdown: gate.NewShutdown()}, DefaultTools)

	metas := provider.List()
	if len(metas) != len(DefaultTools) {
		t.Fatalf("Expected %d tools, got %d", len(DefaultTools), len(metas))
	}
	for _, meta := range metas {
		if meta.InputSchema.Type != "object" {
			t.Errorf("Tool %s schema type should be object, got %q", meta.Name, meta.InputSchema.Type)
		}
	}
}

func TestIsConfirmationVocabulary(t *testing.T) {
	tool := NewShutdownMCPTool(nil, nil)

	for _, word := range []string{"confirm", "YES", " y ", "Shutdown", "proceed"} {
		if !tool.isConfirmation(word) {
			t.Errorf("Expected %q to confirm", word)
		}
	}
	for _, word := range []string{"no", "yes please", "", "confirmed"} {
		if tool.isConfirmation(word) {
			t.Errorf("Expected %q to not confirm", word)
		}
	}
}
