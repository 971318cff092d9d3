// Package config provides configuration loading and management for the
// review gate server.
//
// A single global Config instance is maintained in memory, protected by a
// mutex. Get() returns the config BY VALUE to prevent external mutation.
// Sources, in increasing precedence: compiled defaults, an optional YAML
// file, environment variables.
//
// Only tunables live here (poll intervals, default timeouts, optional
// subsystem switches). Signal file names are fixed string templates shared
// with the host extension and are deliberately NOT configurable.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable settings.
type Config struct {
	// SignalDir is the directory holding signal documents. Empty means
	// the platform temp directory. Overridden in tests only; the host
	// extension always uses the temp directory.
	SignalDir string `yaml:"signal_dir"`

	// PollInterval is the ack/response poll cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
	// ErrorBackoff is the sleep after a failed poll iteration.
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	// SpeechPollInterval is the delegated-capability scan cadence.
	SpeechPollInterval time.Duration `yaml:"speech_poll_interval"`
	// ShutdownPollInterval is the lifecycle monitor cadence.
	ShutdownPollInterval time.Duration `yaml:"shutdown_poll_interval"`

	// AckTimeout bounds the advisory acknowledgement wait.
	AckTimeout time.Duration `yaml:"ack_timeout"`
	// ReviewTimeout bounds the review_gate_chat response wait.
	ReviewTimeout time.Duration `yaml:"review_timeout"`
	// QuickTimeout bounds quick_review and file_review response waits.
	QuickTimeout time.Duration `yaml:"quick_timeout"`
	// IngestTimeout bounds the ingest_text response wait.
	IngestTimeout time.Duration `yaml:"ingest_timeout"`
	// ShutdownConfirmTimeout bounds the shutdown_mcp confirmation wait.
	ShutdownConfirmTimeout time.Duration `yaml:"shutdown_confirm_timeout"`

	// HistoryDBPath enables the sqlite interaction history when non-empty.
	HistoryDBPath string `yaml:"history_db_path"`
	// MetricsAddr enables the prometheus endpoint when non-empty.
	MetricsAddr string `yaml:"metrics_addr"`
	// WhisperBinary is the speech-to-text CLI; empty disables transcription.
	WhisperBinary string `yaml:"whisper_binary"`
}

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	mu     sync.RWMutex
	config Config = defaults()
)

func defaults() Config {
	return Config{
		PollInterval:           100 * time.Millisecond,
		ErrorBackoff:           500 * time.Millisecond,
		SpeechPollInterval:     500 * time.Millisecond,
		ShutdownPollInterval:   time.Second,
		AckTimeout:             30 * time.Second,
		ReviewTimeout:          5 * time.Minute,
		QuickTimeout:           90 * time.Second,
		IngestTimeout:          2 * time.Minute,
		ShutdownConfirmTimeout: time.Minute,
		WhisperBinary:          "whisper-cli",
	}
}

// Load initializes the global config from the given YAML file path. An
// empty path or a missing file leaves the defaults in place; a present but
// unreadable file is an error.
func Load(path string) error {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file, keep defaults.
		case err != nil:
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	mu.Lock()
	defer mu.Unlock()
	config = cfg
	return nil
}

// applyEnv applies environment overrides for deployment-specific settings.
func applyEnv(cfg *Config) {
	if v := os.Getenv("REVIEW_GATE_SIGNAL_DIR"); v != "" {
		cfg.SignalDir = v
	}
	if v := os.Getenv("REVIEW_GATE_HISTORY_DB"); v != "" {
		cfg.HistoryDBPath = v
	}
	if v := os.Getenv("REVIEW_GATE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("REVIEW_GATE_WHISPER_BIN"); v != "" {
		cfg.WhisperBinary = v
	}
	if v := os.Getenv("REVIEW_GATE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
}

// Get returns the current configuration by value.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return config
}

// Set replaces the global config. Exposed for tests.
func Set(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
}
