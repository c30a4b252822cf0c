package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS records (
	trace_id    TEXT PRIMARY KEY,
	line_offset INTEGER NOT NULL
)`

// Index is a SQLite sidecar mapping trace IDs to the byte offset of their
// latest line in a record journal. The journal stays the source of truth:
// the index is rebuilt from it on open and every hit is re-checked.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the index database at path.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create index directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL", indexSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: init index: %w", err)
		}
	}
	return &Index{db: db}, nil
}

// Put records offset as the latest line for traceID.
func (x *Index) Put(traceID string, offset int64) error {
	_, err := x.db.Exec(
		`INSERT INTO records (trace_id, line_offset) VALUES (?, ?)
		 ON CONFLICT(trace_id) DO UPDATE SET line_offset = excluded.line_offset`,
		traceID, offset)
	if err != nil {
		return fmt.Errorf("audit: index put: %w", err)
	}
	return nil
}

// Lookup returns the indexed offset for traceID.
func (x *Index) Lookup(traceID string) (int64, bool, error) {
	var offset int64
	err := x.db.QueryRow(`SELECT line_offset FROM records WHERE trace_id = ?`, traceID).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("audit: index lookup: %w", err)
	}
	return offset, true, nil
}

// Len returns the number of indexed trace IDs.
func (x *Index) Len() (int, error) {
	var n int
	if err := x.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: index count: %w", err)
	}
	return n, nil
}

// Reset replaces the whole index with offsets in one transaction.
func (x *Index) Reset(offsets map[string]int64) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("audit: index begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("audit: index clear: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO records (trace_id, line_offset) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("audit: index prepare: %w", err)
	}
	defer stmt.Close()

	for id, off := range offsets {
		if _, err := stmt.Exec(id, off); err != nil {
			return fmt.Errorf("audit: index insert: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (x *Index) Close() error {
	return x.db.Close()
}
