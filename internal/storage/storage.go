// Package storage persists extracted symbol tables in a SQLite database so
// repeated runs over the same repository snapshots skip re-parsing. Tables
// are keyed by (commit, file): a commit pins file content, so entries never
// go stale.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"crev/internal/logging"
	"crev/internal/symbols"
)

const schema = `
CREATE TABLE IF NOT EXISTS symbol_tables (
	commit_sha TEXT NOT NULL,
	file       TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (commit_sha, file)
);
`

// DB is the evaluation cache database. It implements symbols.Cache.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Open opens or creates the cache database under dir.
func Open(dir string, logger *logging.Logger) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	dbPath := filepath.Join(dir, "crev.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("symbol cache ready", map[string]interface{}{
		"path": dbPath,
	})
	return &DB{conn: conn, logger: logger, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Get loads a cached symbol table. The second return reports whether the
// entry existed.
func (db *DB) Get(commit, file string) (*symbols.Table, bool, error) {
	var data string
	err := db.conn.QueryRow(
		"SELECT data FROM symbol_tables WHERE commit_sha = ? AND file = ?",
		commit, file,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query symbol cache: %w", err)
	}

	var table symbols.Table
	if err := json.Unmarshal([]byte(data), &table); err != nil {
		// Corrupt entry: treat as a miss so it gets rewritten.
		db.logger.Warn("dropping corrupt cache entry", map[string]interface{}{
			"commit": commit,
			"file":   file,
		})
		return nil, false, nil
	}
	return &table, true, nil
}

// Put stores a symbol table, replacing any existing entry.
func (db *DB) Put(commit, file string, table *symbols.Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode symbol table: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO symbol_tables (commit_sha, file, data, created_at) VALUES (?, ?, ?, ?)",
		commit, file, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to store symbol table: %w", err)
	}
	return nil
}

// Stats returns the number of cached tables, for run summaries.
func (db *DB) Stats() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM symbol_tables").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
