package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE VERSION ROWS
// =============================================================================
// Raw storage only; reconstruction and pruning logic lives in
// internal/version.

// InsertVersion appends a version row for a file. Version numbers are
// 1-based and monotonic per file; the caller supplies the next number.
func (s *Store) InsertVersion(v *FileVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO file_versions (id, file_id, version_number, is_full_content, content_or_patch, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.FileID, v.VersionNumber, v.IsFullContent, v.ContentOrPatch, v.Source, v.CreatedAt,
	)
	return err
}

// ListVersions returns all versions for a file ordered by version number.
func (s *Store) ListVersions(fileID string) ([]*FileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, file_id, version_number, is_full_content, content_or_patch, source, created_at
		 FROM file_versions WHERE file_id = ? ORDER BY version_number`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*FileVersion
	for rows.Next() {
		v := &FileVersion{}
		if err := rows.Scan(&v.ID, &v.FileID, &v.VersionNumber, &v.IsFullContent,
			&v.ContentOrPatch, &v.Source, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// LatestVersionNumber returns the highest version number for a file, or
// 0 when the file has no versions yet.
func (s *Store) LatestVersionNumber(fileID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n sql.NullInt64
	err := s.db.QueryRow(
		"SELECT MAX(version_number) FROM file_versions WHERE file_id = ?", fileID).Scan(&n)
	if err != nil {
		return 0, err
	}
	if !n.Valid {
		return 0, nil
	}
	return int(n.Int64), nil
}

// ReplaceVersion rewrites a version row in place. Used by pruning to
// convert the oldest kept version to full content.
func (s *Store) ReplaceVersion(v *FileVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE file_versions SET is_full_content = ?, content_or_patch = ?, source = ?
		 WHERE file_id = ? AND version_number = ?`,
		v.IsFullContent, v.ContentOrPatch, v.Source, v.FileID, v.VersionNumber,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionNotFound
	}
	return nil
}

// DeleteVersionsBelow removes all versions with version_number < n.
func (s *Store) DeleteVersionsBelow(fileID string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"DELETE FROM file_versions WHERE file_id = ? AND version_number < ?", fileID, n)
	return err
}
