package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"doclore/internal/logging"
)

// =============================================================================
// PROJECT CRUD
// =============================================================================

// CreateProject creates a project, or returns the existing one when a
// project with the same name (case-insensitive) already exists (upsert
// semantics for the createProject tool).
func (s *Store) CreateProject(name, description string) (*Project, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.projectByName(name); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrProjectNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	p := &Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      ProjectCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.Exec(
		`INSERT INTO projects (id, name, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create project: %w", err)
	}

	logging.Store("Created project %s (%s)", p.Name, p.ID)
	return p, true, nil
}

// GetProject returns a project by id.
func (s *Store) GetProject(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT id, name, description, status, created_at, updated_at FROM projects WHERE id = ?", id)
	return scanProject(row)
}

// GetProjectByName returns a project by name, matched case-insensitively.
func (s *Store) GetProjectByName(name string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectByName(name)
}

func (s *Store) projectByName(name string) (*Project, error) {
	row := s.db.QueryRow(
		"SELECT id, name, description, status, created_at, updated_at FROM projects WHERE name = ? COLLATE NOCASE", name)
	return scanProject(row)
}

// ListProjects returns all projects in creation order.
func (s *Store) ListProjects() ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, name, description, status, created_at, updated_at FROM projects ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SetProjectStatus transitions a project's ingestion status.
func (s *Store) SetProjectStatus(id string, status ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE projects SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// DeleteProject deletes a project and cascades to its files, chunks,
// embeddings, and versions.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProjectNotFound
	}

	// Cascades via foreign keys cover files -> chunks/embeddings/versions;
	// the explicit deletes below also cover databases created before
	// foreign_keys was enabled.
	if _, err := tx.Exec("DELETE FROM files WHERE project_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chunks WHERE project_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM embeddings WHERE project_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"DELETE FROM file_versions WHERE file_id NOT IN (SELECT id FROM files)"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Store("Deleted project %s with all descendants", id)
	return nil
}

// ProjectStats summarizes a project for system prompts.
type ProjectStats struct {
	FileCount  int
	ChunkCount int
	TotalBytes int64
}

// GetProjectStats counts a project's files, chunks, and content size.
func (s *Store) GetProjectStats(id string) (*ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &ProjectStats{}
	if err := s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files WHERE project_id = ?", id,
	).Scan(&stats.FileCount, &stats.TotalBytes); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM chunks WHERE project_id = ?", id,
	).Scan(&stats.ChunkCount); err != nil {
		return nil, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*Project, error) {
	p := &Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
