// Package testutil provides test utilities for dbgrid tests.
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// SampleSchema creates the tables every database test works against: users
// and posts with integer primary keys, a keyless log table and a view.
const SampleSchema = `
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		note TEXT
	);

	CREATE TABLE posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE events (
		at TEXT,
		message TEXT
	);

	CREATE VIEW published_posts AS
		SELECT id, title FROM posts WHERE published = 1;

	INSERT INTO users (name, email, note) VALUES
		('Alice', 'alice@example.com', NULL),
		('Bob', 'bob@example.com', 'admin'),
		('Charlie', 'charlie@example.com', NULL);

	INSERT INTO posts (user_id, title, published) VALUES
		(1, 'Hello World', 1),
		(1, 'Draft Post', 0),
		(2, 'Bob''s Post', 1);

	INSERT INTO events (at, message) VALUES
		('2024-01-01', 'started');
`

// SampleDB creates a temporary database loaded with SampleSchema and
// returns its path. The file is removed with the test's temp dir.
func SampleDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sample.db")
	db := OpenDB(t, path)
	MustExec(t, db, SampleSchema)
	db.Close()
	return path
}

// EmptyDB creates a new empty database for testing.
func EmptyDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "empty.db")
	db := OpenDB(t, path)
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to create empty db: %v", err)
	}
	db.Close()
	return path
}

// OpenDB opens path with the SQLite driver and closes it when the test ends.
func OpenDB(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFile writes content to name inside a fresh temp dir and returns the
// full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// MustExec executes SQL or fails the test.
func MustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("MustExec failed: %v\nQuery: %s", err, query)
	}
}

// MustQueryRow executes a query and scans the first row into dest.
func MustQueryRow(t *testing.T, db *sql.DB, query string, dest ...any) {
	t.Helper()
	if err := db.QueryRow(query).Scan(dest...); err != nil {
		t.Fatalf("MustQueryRow failed: %v\nQuery: %s", err, query)
	}
}
