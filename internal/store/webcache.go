package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"doclore/internal/embedding"
	"doclore/internal/logging"
)

// =============================================================================
// WEB RESEARCH CACHE
// =============================================================================

// PutWebCacheEntry stores (or refreshes) a fetched page and its embedded
// chunks under a query hash. An existing (queryHash, url) entry is
// replaced together with its chunks.
func (s *Store) PutWebCacheEntry(entry *WebCacheEntry, chunks []WebChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Replace any stale entry for the same (queryHash, url).
	if _, err := tx.Exec(
		`DELETE FROM web_chunks WHERE cache_id IN
		 (SELECT id FROM web_cache WHERE query_hash = ? AND url = ?)`,
		entry.QueryHash, entry.URL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"DELETE FROM web_cache WHERE query_hash = ? AND url = ?",
		entry.QueryHash, entry.URL); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO web_cache (id, query_hash, url, title, content, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.QueryHash, entry.URL, entry.Title, entry.Content, entry.FetchedAt,
	); err != nil {
		return fmt.Errorf("failed to insert web cache entry: %w", err)
	}

	for _, c := range chunks {
		vecJSON, err := json.Marshal(c.Vector)
		if err != nil {
			return err
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(
			`INSERT INTO web_chunks (id, cache_id, idx, text, vector) VALUES (?, ?, ?, ?, ?)`,
			id, entry.ID, c.Index, c.Text, string(vecJSON),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FreshWebCacheEntries returns cached entries for a query hash fetched
// within maxAge. Stale entries are ignored, not deleted; eviction is a
// separate periodic pass.
func (s *Store) FreshWebCacheEntries(queryHash string, maxAge time.Duration) ([]*WebCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	rows, err := s.db.Query(
		`SELECT id, query_hash, url, title, content, fetched_at
		 FROM web_cache WHERE query_hash = ? AND fetched_at > ? ORDER BY fetched_at DESC`,
		queryHash, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*WebCacheEntry
	for rows.Next() {
		e := &WebCacheEntry{}
		if err := rows.Scan(&e.ID, &e.QueryHash, &e.URL, &e.Title, &e.Content, &e.FetchedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SearchWebChunks ranks the embedded chunks of the given cache entries by
// cosine similarity to the query vector.
func (s *Store) SearchWebChunks(ctx context.Context, cacheIDs []string, queryVec []float32, k int) ([]WebChunk, error) {
	if len(cacheIDs) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, cache_id, idx, text, vector FROM web_chunks WHERE cache_id IN ("
	args := make([]interface{}, 0, len(cacheIDs))
	for i, id := range cacheIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += ") ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []WebChunk
	for rows.Next() {
		var (
			c       WebChunk
			vecJSON string
		)
		if err := rows.Scan(&c.ID, &c.CacheID, &c.Index, &c.Text, &vecJSON); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		c.Vector = vec
		c.Similarity = sim
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// GetWebCacheEntry returns a single cache entry by id.
func (s *Store) GetWebCacheEntry(id string) (*WebCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := &WebCacheEntry{}
	err := s.db.QueryRow(
		`SELECT id, query_hash, url, title, content, fetched_at FROM web_cache WHERE id = ?`, id,
	).Scan(&e.ID, &e.QueryHash, &e.URL, &e.Title, &e.Content, &e.FetchedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// EvictExpiredWebCache deletes cache entries older than maxAge together
// with their chunks. Returns the number of entries removed.
func (s *Store) EvictExpiredWebCache(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM web_chunks WHERE cache_id IN (SELECT id FROM web_cache WHERE fetched_at <= ?)`,
		cutoff); err != nil {
		return 0, err
	}
	res, err := tx.Exec("DELETE FROM web_cache WHERE fetched_at <= ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	if n > 0 {
		logging.Store("Evicted %d expired web cache entries", n)
	}
	return int(n), nil
}
