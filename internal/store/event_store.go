package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindEvent     = "event"
	KindException = "exception"
)

// Event is one recorded telemetry item.
type Event struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// EventStore persists telemetry events.
type EventStore struct {
	db *DB
}

// NewEventStore creates an event store using the given database.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Append writes events in a single transaction. Missing IDs and timestamps
// are filled in.
func (s *EventStore) Append(events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO telemetry_events (id, kind, name, properties, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		if e.Kind == "" {
			e.Kind = KindEvent
		}
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("marshal properties for %s: %w", e.Name, err)
		}
		if e.Properties == nil {
			props = []byte("{}")
		}
		if _, err := stmt.Exec(e.ID, e.Kind, e.Name, string(props), e.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("insert %s: %w", e.Name, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit events, newest first. name filters when non-empty.
func (s *EventStore) Recent(limit int, name string) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, kind, name, properties, created_at FROM telemetry_events`
	args := []any{}
	if name != "" {
		query += ` WHERE name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var props, created string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Name, &props, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return nil, fmt.Errorf("decode properties for %s: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (s *EventStore) Count() (int, error) {
	var n int
	err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM telemetry_events`).Scan(&n)
	return n, err
}

// Prune deletes events older than the cutoff and returns how many were removed.
func (s *EventStore) Prune(before time.Time) (int64, error) {
	res, err := s.db.sql.Exec(`DELETE FROM telemetry_events WHERE created_at < ?`, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
