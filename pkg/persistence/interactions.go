package persistence

import (
	"database/sql"
	"fmt"
	"time"
)

// Interaction is one completed popup cycle: the request shown to the
// user and what came back, or a timeout marker.
type Interaction struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Tool      string    `json:"tool"`
	TriggerID string    `json:"trigger_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	TimedOut  bool      `json:"timed_out"`
}

// RecordInteraction stores one completed cycle. A no-op when history is
// disabled; a write failure is logged, never surfaced, so history can
// never break the popup path.
func RecordInteraction(tool, triggerID, message, response string, timedOut bool) {
	globalDBMu.RLock()
	db := globalDB
	sessID := sessionID
	logger := dbLogger
	globalDBMu.RUnlock()

	if db == nil {
		return
	}

	_, err := db.Exec(
		`INSERT INTO interactions (session_id, tool, trigger_id, message, response, timed_out)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessID, tool, triggerID, message, response, boolToInt(timedOut),
	)
	if err != nil && logger != nil {
		logger.Warn("⚠️ Failed to record interaction %s: %v", triggerID, err)
	}
}

// ListInteractions returns the session's interactions, newest first.
func ListInteractions(sessID string, limit int) ([]Interaction, error) {
	globalDBMu.RLock()
	db := globalDB
	globalDBMu.RUnlock()

	if db == nil {
		return nil, fmt.Errorf("history database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(
		`SELECT id, session_id, tool, trigger_id, message, response, timed_out, created_at
		 FROM interactions WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Interaction
	for rows.Next() {
		var it Interaction
		var timedOut int
		if err := rows.Scan(&it.ID, &it.SessionID, &it.Tool, &it.TriggerID,
			&it.Message, &it.Response, &timedOut, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		it.TimedOut = timedOut != 0
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}
	return result, nil
}

// CountInteractions returns the number of recorded cycles for a session.
func CountInteractions(sessID string) (int, error) {
	globalDBMu.RLock()
	db := globalDB
	globalDBMu.RUnlock()

	if db == nil {
		return 0, fmt.Errorf("history database not initialized")
	}

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM interactions WHERE session_id = ?`, sessID,
	).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
