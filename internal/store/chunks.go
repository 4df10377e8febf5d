package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"doclore/internal/chunker"
	"doclore/internal/logging"
)

// =============================================================================
// CHUNKS AND EMBEDDINGS
// =============================================================================

// ReplaceChunks deletes a file's existing chunks (and their embeddings)
// and inserts the new set. Chunks are immutable once created, so a
// re-chunk always replaces everything.
func (s *Store) ReplaceChunks(fileID, projectID string, chunks []chunker.Chunk) ([]*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks WHERE file_id = ?", fileID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM embeddings WHERE file_id = ?", fileID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stored := make([]*Chunk, 0, len(chunks))
	for _, c := range chunks {
		rec := &Chunk{
			ID:          uuid.NewString(),
			FileID:      fileID,
			ProjectID:   projectID,
			Index:       c.Index,
			Text:        c.Text,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			CreatedAt:   now,
		}
		if _, err := tx.Exec(
			`INSERT INTO chunks (id, file_id, project_id, idx, text, start_offset, end_offset, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.FileID, rec.ProjectID, rec.Index, rec.Text,
			rec.StartOffset, rec.EndOffset, rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
		stored = append(stored, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logging.StoreDebug("Replaced chunks for file %s: %d chunks", fileID, len(stored))
	return stored, nil
}

// GetChunks returns a file's chunks ordered by index.
func (s *Store) GetChunks(fileID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, file_id, project_id, idx, text, start_offset, end_offset, created_at
		 FROM chunks WHERE file_id = ? ORDER BY idx`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c := &Chunk{}
		if err := rows.Scan(&c.ID, &c.FileID, &c.ProjectID, &c.Index, &c.Text,
			&c.StartOffset, &c.EndOffset, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// InsertEmbedding stores the vector for one chunk. 1:1 with chunks;
// re-embedding replaces via the UNIQUE(chunk_id) constraint.
func (s *Store) InsertEmbedding(chunkID, fileID, projectID string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to serialize vector: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO embeddings (id, chunk_id, file_id, project_id, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET vector = excluded.vector, created_at = excluded.created_at`,
		uuid.NewString(), chunkID, fileID, projectID, string(vecJSON), time.Now().UTC(),
	)
	return err
}

// CountEmbeddings returns the number of stored embeddings.
func (s *Store) CountEmbeddings() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&n)
	return n, err
}

// =============================================================================
// PROVIDER FINGERPRINT
// =============================================================================

// Settings keys for the embedding provider fingerprint.
const (
	settingEmbeddingProvider = "embedding_provider"
	settingEmbeddingDims     = "embedding_dimensions"
)

// EnsureEmbeddingProvider checks the stored provider fingerprint against
// the active engine. On mismatch all stored embeddings (document and web)
// are cleared: vectors from different providers must never be mixed in
// one similarity ranking. Returns true if embeddings were invalidated.
func (s *Store) EnsureEmbeddingProvider(name string, dims int) (bool, error) {
	prevName, err := s.GetSetting(settingEmbeddingProvider)
	if err != nil {
		return false, err
	}
	prevDims, err := s.GetSetting(settingEmbeddingDims)
	if err != nil {
		return false, err
	}

	matches := prevName == name && prevDims == strconv.Itoa(dims)
	if prevName != "" && matches {
		return false, nil
	}

	invalidated := false
	if prevName != "" && !matches {
		logging.Get(logging.CategoryStore).Warn(
			"Embedding provider changed (%s -> %s): invalidating all stored embeddings", prevName, name)
		s.mu.Lock()
		_, err1 := s.db.Exec("DELETE FROM embeddings")
		_, err2 := s.db.Exec("DELETE FROM web_chunks")
		_, err3 := s.db.Exec("UPDATE files SET status = ? WHERE status = ?", FilePending, FileIndexed)
		s.mu.Unlock()
		for _, e := range []error{err1, err2, err3} {
			if e != nil {
				return false, e
			}
		}
		invalidated = true
	}

	if err := s.SetSetting(settingEmbeddingProvider, name); err != nil {
		return invalidated, err
	}
	if err := s.SetSetting(settingEmbeddingDims, strconv.Itoa(dims)); err != nil {
		return invalidated, err
	}
	return invalidated, nil
}
