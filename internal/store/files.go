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
// FILE CRUD
// =============================================================================

const fileColumns = "id, project_id, name, type, size, status, content, system_file_path, created_at, updated_at"

// CreateFile inserts a new file record under a project.
func (s *Store) CreateFile(projectID, name, typ, content string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.projectExists(projectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	f := &File{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Type:      typ,
		Size:      int64(len(content)),
		Status:    FilePending,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO files (`+fileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.Name, f.Type, f.Size, f.Status, f.Content, f.SystemFilePath,
		f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	logging.Store("Created file %s in project %s (%d bytes)", f.Name, projectID, f.Size)
	return f, nil
}

// GetFile returns a file by id.
func (s *Store) GetFile(id string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	return scanFile(row)
}

// GetFileByName returns a file by exact name (case-insensitive) within a
// scope. Global scope searches all projects and returns the first match
// by creation order.
func (s *Store) GetFileByName(scope Scope, name string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row *sql.Row
	if scope.Global() {
		row = s.db.QueryRow(
			"SELECT "+fileColumns+" FROM files WHERE name = ? COLLATE NOCASE ORDER BY created_at LIMIT 1", name)
	} else {
		row = s.db.QueryRow(
			"SELECT "+fileColumns+" FROM files WHERE project_id = ? AND name = ? COLLATE NOCASE", scope.ProjectID, name)
	}
	return scanFile(row)
}

// ListFiles returns the files in a scope, in creation order.
func (s *Store) ListFiles(scope Scope) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if scope.Global() {
		rows, err = s.db.Query("SELECT " + fileColumns + " FROM files ORDER BY created_at, id")
	} else {
		rows, err = s.db.Query(
			"SELECT "+fileColumns+" FROM files WHERE project_id = ? ORDER BY created_at, id", scope.ProjectID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UpdateFileContent replaces a file's extracted text and resets its
// status to pending so it gets re-indexed.
func (s *Store) UpdateFileContent(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE files SET content = ?, size = ?, status = ?, updated_at = ? WHERE id = ?",
		content, len(content), FilePending, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SetFileStatus transitions a file's ingestion status.
func (s *Store) SetFileStatus(id string, status FileStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE files SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SetFileSystemPath records where the file lives in the sync directory.
func (s *Store) SetFileSystemPath(id, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE files SET system_file_path = ? WHERE id = ?", path, id)
	return err
}

// MoveFile reassigns a file to a different project. Its chunks and
// embeddings move with it so retrieval scoping stays consistent.
func (s *Store) MoveFile(fileID, targetProjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.projectExists(targetProjectID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"UPDATE files SET project_id = ?, updated_at = ? WHERE id = ?",
		targetProjectID, time.Now().UTC(), fileID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}

	if _, err := tx.Exec("UPDATE chunks SET project_id = ? WHERE file_id = ?", targetProjectID, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE embeddings SET project_id = ? WHERE file_id = ?", targetProjectID, fileID); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteFile deletes a file and cascades to its chunks, embeddings, and
// versions.
func (s *Store) DeleteFile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}

	if _, err := tx.Exec("DELETE FROM chunks WHERE file_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM embeddings WHERE file_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM file_versions WHERE file_id = ?", id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) projectExists(id string) error {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM projects WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProjectNotFound
	}
	return err
}

func scanFile(row rowScanner) (*File, error) {
	f := &File{}
	err := row.Scan(&f.ID, &f.ProjectID, &f.Name, &f.Type, &f.Size, &f.Status,
		&f.Content, &f.SystemFilePath, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
