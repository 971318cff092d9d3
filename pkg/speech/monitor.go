// Package speech implements the delegated speech-to-text capability: a
// background loop that picks up transcription requests from the shared
// signal store, invokes a pluggable transcriber, and writes result
// documents back. The same file protocol as the popup cycle, with its own
// document class.
package speech

import (
	"context"
	"fmt"
	"os"
	"time"

	"reviewgate/pkg/config"
	"reviewgate/pkg/gate"
	"reviewgate/pkg/logx"
	"reviewgate/pkg/metrics"
	"reviewgate/pkg/signals"
)

const (
	triggerPrefix    = "review_gate_speech_trigger_"
	responseTemplate = "review_gate_speech_response_%s.json"
	toolDiscriminator = "speech_to_text"
	resultSource      = "review_gate_whisper"
)

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// triggerDocument is the incoming transcription request.
type triggerDocument struct {
	Data struct {
		Tool      string `json:"tool"`
		AudioFile string `json:"audio_file"`
		TriggerID string `json:"trigger_id"`
	} `json:"data"`
}

// resultDocument is the outgoing transcription result. Failures carry a
// non-empty Error so the requester's wait never hangs to its timeout when
// an answer could be produced immediately.
type resultDocument struct {
	Timestamp     string `json:"timestamp"`
	TriggerID     string `json:"trigger_id"`
	Transcription string `json:"transcription"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	Source        string `json:"source"`
}

// Monitor polls for transcription requests. A nil transcriber is valid:
// every request then yields an unavailable-capability error result.
type Monitor struct {
	store       *signals.Store
	logger      *logx.Logger
	transcriber Transcriber
	interval    time.Duration
}

// NewMonitor creates a monitor over the given store. transcriber may be
// nil when speech-to-text is unavailable.
func NewMonitor(store *signals.Store, transcriber Transcriber) *Monitor {
	return &Monitor{
		store:       store,
		logger:      logx.NewLogger("speech"),
		transcriber: transcriber,
		interval:    config.Get().SpeechPollInterval,
	}
}

// Run polls for transcription requests until the context is cancelled or
// termination is requested. Pending requests observed at shutdown are
// still drained, so a queued request with an unavailable capability gets
// its error result instead of silently timing out on the caller's side.
func (m *Monitor) Run(ctx context.Context, shutdown *gate.Shutdown) {
	m.logger.Info("🎤 Speech-to-text monitoring started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.drain(ctx)

		if shutdown.Requested() {
			m.logger.Info("🛑 Speech monitoring stopped: shutdown requested")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain processes every queued transcription request once.
func (m *Monitor) drain(ctx context.Context) {
	for _, name := range m.store.List(triggerPrefix) {
		var trigger triggerDocument
		if err := m.store.Read(name, &trigger); err != nil {
			m.logger.Error("❌ Error processing speech trigger %s: %v", name, err)
			if delErr := m.store.Delete(name); delErr != nil {
				m.logger.Warn("⚠️ Speech trigger cleanup error: %v", delErr)
			}
			continue
		}

		if trigger.Data.Tool != toolDiscriminator {
			continue
		}

		m.logger.Info("🎤 Processing speech-to-text request: %s", name)
		m.process(ctx, &trigger)

		if err := m.store.Delete(name); err != nil {
			m.logger.Warn("⚠️ Speech trigger cleanup error: %v", err)
		}
	}
}

// process handles one transcription request and always writes a result
// document when the request carries a correlation id.
func (m *Monitor) process(ctx context.Context, trigger *triggerDocument) {
	audioFile := trigger.Data.AudioFile
	triggerID := trigger.Data.TriggerID

	if audioFile == "" || triggerID == "" {
		m.logger.Error("❌ Invalid speech request - missing audio_file or trigger_id")
		metrics.SpeechRequestsTotal.WithLabelValues("invalid").Inc()
		return
	}

	if m.transcriber == nil {
		m.logger.Error("❌ Whisper model not available")
		m.writeResult(triggerID, "", "Whisper model not available")
		return
	}

	if _, err := os.Stat(audioFile); err != nil {
		m.logger.Error("❌ Audio file not found: %s", audioFile)
		m.writeResult(triggerID, "", "Audio file not found")
		return
	}

	m.logger.Info("🎤 Transcribing audio: %s", audioFile)
	transcription, err := m.transcriber.Transcribe(ctx, audioFile)
	if err != nil {
		m.logger.Error("❌ Speech transcription failed: %v", err)
		m.writeResult(triggerID, "", err.Error())
		return
	}

	m.logger.Info("✅ Speech transcribed: %q", transcription)
	m.writeResult(triggerID, transcription, "")

	if err := os.Remove(audioFile); err != nil {
		m.logger.Warn("⚠️ Could not clean up audio file: %v", err)
	} else {
		m.logger.Debug("Cleaned up audio file: %s", audioFile)
	}
}

// writeResult persists the transcription result document.
func (m *Monitor) writeResult(triggerID, transcription, errMsg string) {
	result := resultDocument{
		Timestamp:     time.Now().Format(time.RFC3339),
		TriggerID:     triggerID,
		Transcription: transcription,
		Success:       errMsg == "",
		Error:         errMsg,
		Source:        resultSource,
	}

	name := fmt.Sprintf(responseTemplate, triggerID)
	if err := m.store.Write(name, result); err != nil {
		m.logger.Error("❌ Failed to write speech response: %v", err)
		return
	}

	status := "ok"
	if errMsg != "" {
		status = "error"
	}
	metrics.SpeechRequestsTotal.WithLabelValues(status).Inc()
	m.logger.Info("📝 Speech response written: %s", name)
}
