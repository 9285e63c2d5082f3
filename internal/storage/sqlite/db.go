// Package sqlite implements storage.Store on an embedded SQLite database
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mindmate-health/mindmate/internal/storage"
)

var _ storage.Store = (*DB)(nil)

// timeLayout is fixed-width so lexical order in TEXT columns matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps a database/sql handle opened with the "sqlite" driver.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// New opens (creating if needed) the database at path and verifies it.
// Use ":memory:" for a throwaway database.
func New(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: coherent.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	return NewFromDB(sqlDB, logger), nil
}

// NewFromDB wraps an already-open handle. Tests use it with sqlmock.
func NewFromDB(sqlDB *sql.DB, logger *slog.Logger) *DB {
	return &DB{db: sqlDB, logger: logger, now: time.Now}
}

// Driver reports the backend name.
func (db *DB) Driver() string { return "sqlite" }

// Ping checks the database handle.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Close releases the database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// ListTables returns user tables sorted by name.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("storage: list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("storage: list tables: scan: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by other tools may use RFC 3339.
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// isDuplicateKey reports a UNIQUE or PRIMARY KEY constraint violation.
func isDuplicateKey(err error) bool {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
