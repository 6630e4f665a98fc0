package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lunasherpa/luna/internal/domain"
)

// Round is a completed question/answer round as stored on disk.
type Round struct {
	ID          string                 `json:"id"`
	Query       string                 `json:"query"`
	Backend     string                 `json:"backend"`
	Model       string                 `json:"model,omitempty"`
	FinalAnswer string                 `json:"finalAnswer"`
	Duration    time.Duration          `json:"duration"`
	CreatedAt   time.Time              `json:"createdAt"`
	Responses   []domain.AgentResponse `json:"responses,omitempty"`
}

// ErrRoundNotFound is returned by RoundStore.Get for unknown IDs.
var ErrRoundNotFound = errors.New("round not found")

// RoundStore keeps a history of completed rounds.
type RoundStore struct {
	db *DB
}

// NewRoundStore creates a round store using the given database.
func NewRoundStore(db *DB) *RoundStore {
	return &RoundStore{db: db}
}

// Save records a round and its responses in position order.
func (s *RoundStore) Save(r Round) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO rounds (id, query, backend, model, final_answer, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Query, r.Backend, r.Model, r.FinalAnswer, r.Duration.Milliseconds(), r.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	for i, resp := range r.Responses {
		if _, err := tx.Exec(
			`INSERT INTO round_responses (round_id, position, agent_id, name, color, emoji, content) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, resp.AgentID, resp.Name, resp.Color, resp.Emoji, resp.Content,
		); err != nil {
			return fmt.Errorf("insert response %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Get loads a round with its responses.
func (s *RoundStore) Get(id string) (*Round, error) {
	var r Round
	var durationMs int64
	var created string
	err := s.db.sql.QueryRow(
		`SELECT id, query, backend, model, final_answer, duration_ms, created_at FROM rounds WHERE id = ?`, id,
	).Scan(&r.ID, &r.Query, &r.Backend, &r.Model, &r.FinalAnswer, &durationMs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query round: %w", err)
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.CreatedAt, _ = time.Parse(timeLayout, created)

	rows, err := s.db.sql.Query(
		`SELECT agent_id, name, color, emoji, content FROM round_responses WHERE round_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		resp := domain.AgentResponse{MediaKind: domain.MediaText}
		if err := rows.Scan(&resp.AgentID, &resp.Name, &resp.Color, &resp.Emoji, &resp.Content); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.Responses = append(r.Responses, resp)
	}
	return &r, rows.Err()
}

// List returns the newest rounds first, without responses.
func (s *RoundStore) List(limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.sql.Query(
		`SELECT id, query, backend, model, final_answer, duration_ms, created_at FROM rounds ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []Round
	for rows.Next() {
		var r Round
		var durationMs int64
		var created string
		if err := rows.Scan(&r.ID, &r.Query, &r.Backend, &r.Model, &r.FinalAnswer, &durationMs, &created); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// Delete removes a round and its responses. Unknown IDs yield ErrRoundNotFound.
func (s *RoundStore) Delete(id string) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// Pooled connections may not have foreign_keys enabled, so cascade by hand.
	if _, err := tx.Exec(`DELETE FROM round_responses WHERE round_id = ?`, id); err != nil {
		return fmt.Errorf("delete responses: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM rounds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete round: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoundNotFound
	}
	return tx.Commit()
}
