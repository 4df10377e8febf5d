package store

import "fmt"

// schema is applied idempotently on every Open. Columns are never
// dropped; additive changes append new statements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'created',
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_name ON projects(name COLLATE NOCASE)`,

	`CREATE TABLE IF NOT EXISTS files (
		id               TEXT PRIMARY KEY,
		project_id       TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name             TEXT NOT NULL,
		type             TEXT NOT NULL DEFAULT 'txt',
		size             INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL DEFAULT 'pending',
		content          TEXT NOT NULL DEFAULT '',
		system_file_path TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id)`,

	`CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		file_id      TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		project_id   TEXT NOT NULL,
		idx          INTEGER NOT NULL,
		text         TEXT NOT NULL,
		start_offset INTEGER NOT NULL DEFAULT 0,
		end_offset   INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_project ON chunks(project_id)`,

	`CREATE TABLE IF NOT EXISTS embeddings (
		id         TEXT PRIMARY KEY,
		chunk_id   TEXT NOT NULL UNIQUE REFERENCES chunks(id) ON DELETE CASCADE,
		file_id    TEXT NOT NULL,
		project_id TEXT NOT NULL,
		vector     TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_project ON embeddings(project_id)`,

	`CREATE TABLE IF NOT EXISTS file_versions (
		id               TEXT PRIMARY KEY,
		file_id          TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		version_number   INTEGER NOT NULL,
		is_full_content  INTEGER NOT NULL,
		content_or_patch TEXT NOT NULL,
		source           TEXT NOT NULL,
		created_at       TIMESTAMP NOT NULL,
		UNIQUE(file_id, version_number)
	)`,

	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL DEFAULT '',
		messages   TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_project ON chat_sessions(project_id)`,

	`CREATE TABLE IF NOT EXISTS web_cache (
		id         TEXT PRIMARY KEY,
		query_hash TEXT NOT NULL,
		url        TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL DEFAULT '',
		fetched_at TIMESTAMP NOT NULL,
		UNIQUE(query_hash, url)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_web_cache_query ON web_cache(query_hash)`,

	`CREATE TABLE IF NOT EXISTS web_chunks (
		id       TEXT PRIMARY KEY,
		cache_id TEXT NOT NULL REFERENCES web_cache(id) ON DELETE CASCADE,
		idx      INTEGER NOT NULL,
		text     TEXT NOT NULL,
		vector   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_web_chunks_cache ON web_chunks(cache_id)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for i, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i, err)
		}
	}
	return nil
}
