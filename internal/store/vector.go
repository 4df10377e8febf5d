package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"doclore/internal/embedding"
	"doclore/internal/logging"
)

// =============================================================================
// VECTOR SEARCH
// =============================================================================

// VectorSearch ranks stored chunks by cosine similarity to the query
// vector, scoped to a project or to all projects. Results are ordered by
// descending similarity; ties keep insertion order (stable). Returns at
// most k results, fewer when the scope holds fewer embedded chunks.
func (s *Store) VectorSearch(ctx context.Context, scope Scope, queryVec []float32, k int) ([]SearchResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "VectorSearch")
	defer timer.Stop()

	if k <= 0 {
		k = 10
	}

	if !scope.Global() {
		s.mu.RLock()
		err := s.projectExists(scope.ProjectID)
		s.mu.RUnlock()
		if err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT e.chunk_id, e.file_id, e.project_id, e.vector, c.idx, c.text, f.name
		FROM embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN files f ON f.id = e.file_id`
	args := []interface{}{}
	if !scope.Global() {
		query += " WHERE e.project_id = ?"
		args = append(args, scope.ProjectID)
	}
	// Insertion order makes ties deterministic after the stable sort.
	query += " ORDER BY e.rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	skipped := 0
	for rows.Next() {
		var (
			r       SearchResult
			vecJSON string
		)
		if err := rows.Scan(&r.ChunkID, &r.FileID, &r.ProjectID, &vecJSON, &r.Index, &r.Text, &r.FileName); err != nil {
			return nil, err
		}

		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			skipped++
			continue
		}

		sim, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			skipped++
			continue
		}
		r.Similarity = sim
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		logging.Get(logging.CategoryStore).Warn("VectorSearch skipped %d vectors (dimension mismatch or corrupt)", skipped)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}

	logging.StoreDebug("VectorSearch: scope=%v k=%d -> %d results", scope, k, len(results))
	return results, nil
}

// ChunksPendingEmbedding returns chunks in a scope that have no stored
// vector yet, ordered by insertion.
func (s *Store) ChunksPendingEmbedding(scope Scope) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT c.id, c.file_id, c.project_id, c.idx, c.text, c.start_offset, c.end_offset, c.created_at
		FROM chunks c LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE e.id IS NULL`
	args := []interface{}{}
	if !scope.Global() {
		query += " AND c.project_id = ?"
		args = append(args, scope.ProjectID)
	}
	query += " ORDER BY c.rowid"

	rows, err := s.db.Query(query, args...)
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

// String implements fmt.Stringer for log readability.
func (s Scope) String() string {
	if s.Global() {
		return "global"
	}
	return fmt.Sprintf("project:%s", s.ProjectID)
}
