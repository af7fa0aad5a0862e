package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/shelfmate-ai/companion/internal/notebook"
	"github.com/shelfmate-ai/companion/internal/quiz"
)

// NotebookStore persists notebook aggregates as JSONB rows keyed by id
type NotebookStore struct {
	db *DB
}

// NewNotebookStore creates a notebook record store
func NewNotebookStore(db *DB) *NotebookStore {
	return &NotebookStore{db: db}
}

// Put upserts the notebook by id
func (s *NotebookStore) Put(ctx context.Context, nb *notebook.Notebook) error {
	data, err := json.Marshal(nb)
	if err != nil {
		return fmt.Errorf("failed to marshal notebook: %w", err)
	}
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO notebooks (id, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		nb.ID, data, nb.CreatedAt, nb.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put notebook: %w", err)
	}
	return nil
}

// GetAll loads every notebook, newest first
func (s *NotebookStore) GetAll(ctx context.Context) ([]*notebook.Notebook, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT data FROM notebooks ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get notebooks: %w", err)
	}
	defer rows.Close()

	var notebooks []*notebook.Notebook
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan notebook: %w", err)
		}
		var nb notebook.Notebook
		if err := json.Unmarshal(data, &nb); err != nil {
			return nil, fmt.Errorf("failed to decode notebook: %w", err)
		}
		notebooks = append(notebooks, &nb)
	}
	return notebooks, rows.Err()
}

// Delete removes a notebook and everything it owns
func (s *NotebookStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.pool.Exec(ctx, `DELETE FROM notebooks WHERE id = $1`, id)
	return err
}

// SessionStore persists quiz sessions as JSONB rows keyed by id
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a quiz session record store
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Put upserts the session by id; this is how a session transitions from
// ephemeral to durable on first exit or submission
func (s *SessionStore) Put(ctx context.Context, session *quiz.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (id, data, completed, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, completed = EXCLUDED.completed`,
		session.ID, data, session.Completed(), session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put quiz session: %w", err)
	}
	return nil
}

// GetAll loads every session, newest first
func (s *SessionStore) GetAll(ctx context.Context) ([]*quiz.Session, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT data FROM quiz_sessions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*quiz.Session
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan quiz session: %w", err)
		}
		var session quiz.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("failed to decode quiz session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// Delete removes a session
func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.pool.Exec(ctx, `DELETE FROM quiz_sessions WHERE id = $1`, id)
	return err
}
