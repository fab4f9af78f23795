// Package database wraps the database/sql handle to the primary SQLite
// file, following the teacher's connection-bootstrap idiom.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB wraps a *sql.DB opened against a single file, with foreign
// keys and WAL journalling enabled.
type SQLiteDB struct {
	*sql.DB
}

// Open creates the parent directory if needed and opens the database at
// path, applying the pragmas the schema in adapters/db/sqlite relies on.
func Open(path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(1) // go-sqlite3 + WAL: single writer keeps this simple and race-free
	return &SQLiteDB{DB: db}, nil
}

func (s *SQLiteDB) Close() error {
	return s.DB.Close()
}
