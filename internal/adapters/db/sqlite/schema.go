package sqlite

import (
	"database/sql"
	"fmt"
)

// Migrate creates every table and index this adapter needs, idempotently.
// The keyword index is a separate (non-external-content) FTS5 table kept
// in sync by the chunk store's own writes, mirroring the rag_chunks_fts
// table the retrieval engine's original implementation builds.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			genre TEXT,
			setting TEXT,
			style TEXT,
			keywords TEXT,
			audience TEXT,
			target_chapters INTEGER,
			outline_text TEXT,
			characters_json TEXT,
			chapter_map_json TEXT,
			event_log_json TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS source_documents (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			type TEXT NOT NULL,
			chapter_no INTEGER,
			title TEXT,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			chapter_no INTEGER NOT NULL,
			text TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(project_id, chapter_no)
		)`,
		`CREATE TABLE IF NOT EXISTS rag_chunks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			chapter_no INTEGER,
			characters TEXT,
			locations TEXT,
			pov TEXT,
			text TEXT NOT NULL,
			snippet TEXT,
			metadata_json TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rag_chunks_source
			ON rag_chunks(project_id, type, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rag_chunks_project_type
			ON rag_chunks(project_id, type)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS rag_chunks_fts USING fts5(
			chunk_id UNINDEXED,
			project_id UNINDEXED,
			type UNINDEXED,
			source_id UNINDEXED,
			chapter_no UNINDEXED,
			text
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			cache_key TEXT PRIMARY KEY,
			model_name TEXT NOT NULL,
			vector_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %s: %w", stmt, err)
		}
	}
	return nil
}

// HasFTS5 probes whether the fts5 module is available in this sqlite
// build, used to decide whether KeywordSearch can run its bm25 query or
// must fall back to substring scoring over the primary table.
func HasFTS5(db *sql.DB) bool {
	row := db.QueryRow(`SELECT name FROM pragma_module_list WHERE name = 'fts5'`)
	var name string
	return row.Scan(&name) == nil
}
