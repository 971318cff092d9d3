package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandTranscriber shells out to a whisper-style CLI: the audio path is
// the sole argument and captured stdout is the transcription.
type CommandTranscriber struct {
	binary string
}

// NewCommandTranscriber resolves the transcription binary. Returns an
// error when the binary is not configured or not on PATH; the caller then
// runs the monitor without a transcriber.
func NewCommandTranscriber(binary string) (*CommandTranscriber, error) {
	if binary == "" {
		return nil, fmt.Errorf("no transcriber binary configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("transcriber binary %q not found: %w", binary, err)
	}
	return &CommandTranscriber{binary: binary}, nil
}

// Transcribe runs the CLI against the audio file.
func (t *CommandTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binary, audioPath)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("transcription command failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
