// Package ledger provides an append-only history of channel transitions.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventTransitionStarted   EventType = "transition_started"
	EventTransitionCompleted EventType = "transition_completed"
	EventTransitionCancelled EventType = "transition_cancelled"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID           int64
	EventType    EventType
	Timestamp    time.Time
	Channel      string
	TransitionID string
	Payload      map[string]any
}

// Ledger provides append-only transition logging
type Ledger struct {
	db    *sql.DB
	clock clock.PassiveClock
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used to timestamp entries and compute retention.
func WithClock(c clock.PassiveClock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds a new event to the ledger
func (l *Ledger) Append(eventType EventType, channel, transitionID string, payload map[string]any) error {
	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := l.clock.Now().UTC().UnixMilli()
	_, err := l.db.Exec(
		`INSERT INTO event_ledger (event_type, timestamp, channel, transition_id, payload) VALUES (?, ?, ?, ?, ?)`,
		string(eventType), now, channel, nullable(transitionID), string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append %s: %w", eventType, err)
	}
	return nil
}

// GetByType returns the most recent entries of one type, newest first.
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, channel, transition_id, payload
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByChannel returns the most recent entries of one channel, newest first.
func (l *Ledger) GetByChannel(channel string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, channel, transition_id, payload
		FROM event_ledger
		WHERE channel = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByTransition returns the lifecycle of one transition in insertion order.
func (l *Ledger) GetByTransition(transitionID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, channel, transition_id, payload
		FROM event_ledger
		WHERE transition_id = ?
		ORDER BY id ASC
	`, transitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.clock.Now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, transitionID sql.NullString
		var timestamp int64

		err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &entry.Channel, &transitionID, &payloadStr)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		if transitionID.Valid {
			entry.TransitionID = transitionID.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
