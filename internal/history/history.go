// Package history persists REPL input lines to a local SQLite database
// (grounded on the teacher's sqlite_open/sqlite_exec native functions),
// so a terminal session's commands survive the process that typed them.
// This is a host-side convenience; it never affects compile or run
// semantics.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"loxvm/internal/vmlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS repl_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	line TEXT NOT NULL,
	result TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);`

// Store is a thin wrapper over a database/sql handle to the history
// database. Callers must call Close when the REPL session ends.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends one REPL line and the textual result it produced
// ("OK", "COMPILE_ERROR", or "RUNTIME_ERROR").
func (s *Store) Record(line, result string) {
	_, err := s.db.Exec(
		`INSERT INTO repl_history (line, result, recorded_at) VALUES (?, ?, ?)`,
		line, result, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		vmlog.WithError(err).Warn("history: failed to record line")
	}
}

// Recent returns the last n recorded lines, most recent first.
func (s *Store) Recent(n int) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT line FROM repl_history ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
