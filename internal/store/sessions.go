package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"doclore/internal/logging"
)

// =============================================================================
// CHAT SESSIONS
// =============================================================================

// GetOrCreateSession returns the most recent session for the scope,
// creating one if none exists. At most one active session per
// (project | global) scope is handed out.
func (s *Store) GetOrCreateSession(scope Scope) (*ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, project_id, title, messages, created_at, updated_at
		 FROM chat_sessions WHERE project_id = ? ORDER BY updated_at DESC LIMIT 1`,
		scope.ProjectID,
	)
	sess, err := scanSession(row)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	title := "Global chat"
	if !scope.Global() {
		title = "Project chat"
	}

	now := time.Now().UTC()
	sess = &ChatSession{
		ID:        uuid.NewString(),
		ProjectID: scope.ProjectID,
		Title:     title,
		Messages:  []ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.db.Exec(
		`INSERT INTO chat_sessions (id, project_id, title, messages, created_at, updated_at)
		 VALUES (?, ?, ?, '[]', ?, ?)`,
		sess.ID, sess.ProjectID, sess.Title, sess.CreatedAt, sess.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logging.Session("Created session %s (scope=%s)", sess.ID, scope)
	return sess, nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(id string) (*ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, project_id, title, messages, created_at, updated_at
		 FROM chat_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// AppendMessage persists a message at the end of a session's history.
func (s *Store) AppendMessage(sessionID string, msg ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT messages FROM chat_sessions WHERE id = ?", sessionID)
	var messagesJSON string
	if err := row.Scan(&messagesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}

	var messages []ChatMessage
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		return fmt.Errorf("corrupt session messages: %w", err)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	messages = append(messages, msg)

	updated, err := json.Marshal(messages)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		"UPDATE chat_sessions SET messages = ?, updated_at = ? WHERE id = ?",
		string(updated), time.Now().UTC(), sessionID,
	)
	return err
}

func scanSession(row rowScanner) (*ChatSession, error) {
	sess := &ChatSession{}
	var messagesJSON string
	err := row.Scan(&sess.ID, &sess.ProjectID, &sess.Title, &messagesJSON,
		&sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("corrupt session messages: %w", err)
	}
	return sess, nil
}
