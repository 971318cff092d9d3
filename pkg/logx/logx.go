// Package logx provides structured logging with context-aware debug logging.
//
// Every component gets a tagged logger writing to stderr. In addition, all
// log lines are appended to review_gate_v2.log in the platform temp
// directory: the host-side extension tails that file to confirm the server
// is alive, so file logging is part of the external contract, not a debug
// convenience.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger is a component-tagged logger.
type Logger struct {
	id     string
	logger *log.Logger
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// LogFileName is the shared log file in the temp directory. The extension
// checks for its existence to verify the server started.
const LogFileName = "review_gate_v2.log"

// debugConfig controls debug logging behavior, initialized from env.
type debugConfig struct {
	enabled bool
	domains map[string]bool // nil = all domains
}

//nolint:gochecknoglobals // process-wide sinks shared by all loggers
var (
	dbgMu sync.RWMutex
	dbg   = &debugConfig{}

	fileMu   sync.Mutex
	fileSink io.Writer // nil until initFileSink, io.Discard on failure
)

//nolint:gochecknoinits // env var initialization, matching DEBUG/DEBUG_DOMAINS contract
func init() {
	initDebugFromEnv()
}

func initDebugFromEnv() {
	dbgMu.Lock()
	defer dbgMu.Unlock()

	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		dbg.enabled = true
	}

	// DEBUG_DOMAINS=gate,speech limits debug output to those components.
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		dbg.domains = make(map[string]bool)
		for _, d := range strings.Split(domains, ",") {
			dbg.domains[strings.TrimSpace(d)] = true
		}
	}
}

// LogFilePath returns the shared log file location.
func LogFilePath() string {
	return filepath.Join(os.TempDir(), LogFileName)
}

func sink() io.Writer {
	fileMu.Lock()
	defer fileMu.Unlock()

	if fileSink == nil {
		f, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: cannot open %s: %v\n", LogFilePath(), err)
			fileSink = io.Discard
		} else {
			fileSink = f
		}
	}
	return fileSink
}

// NewLogger creates a logger tagged with the given component id.
func NewLogger(id string) *Logger {
	return &Logger{
		id:     id,
		logger: log.New(io.MultiWriter(os.Stderr, sink()), "", 0), // stderr for CLI, file for the extension
	}
}

// SetDebug enables or disables debug logging for all domains.
func SetDebug(enabled bool) {
	dbgMu.Lock()
	defer dbgMu.Unlock()
	dbg.enabled = enabled
}

// IsDebugEnabled returns whether debug logging is enabled for the domain.
func IsDebugEnabled(domain string) bool {
	dbgMu.RLock()
	defer dbgMu.RUnlock()

	if !dbg.enabled {
		return false
	}
	if dbg.domains == nil {
		return true
	}
	return dbg.domains[domain]
}

// Truncate shortens s for log lines, appending "..." past max runes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.id, level, message)
}

// Debug logs a debug message when debug logging is enabled for this
// logger's component id.
func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled(l.id) {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}
