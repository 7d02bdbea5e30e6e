// Package history records executed queries and data changes in a local
// SQLite database.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Audit actions.
const (
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionQuery  = "query"
)

// QueryRecord is a query in the history.
type QueryRecord struct {
	ID           int64
	SessionID    string
	Connection   string
	Query        string
	Duration     time.Duration
	RowsAffected int64
	Error        string
	CreatedAt    time.Time
}

// AuditRecord is an audit log entry.
type AuditRecord struct {
	ID         int64
	SessionID  string
	Action     string
	Connection string
	TableName  string
	Details    string // JSON
	CreatedAt  time.Time
}

// Store manages the history database. Each Store is one session.
type Store struct {
	db        *sql.DB
	sessionID string
	limit     int
}

// NewStore opens (creating if needed) history.db in dataDir and starts a
// session. limit caps the number of kept queries; 0 keeps everything.
func NewStore(dataDir string, limit int) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:        db,
		sessionID: uuid.NewString(),
		limit:     limit,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	if _, err := db.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)`, store.sessionID, time.Now()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS query_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT REFERENCES sessions(id),
		connection TEXT,
		query TEXT,
		execution_time_ms INTEGER,
		rows_affected INTEGER,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT REFERENCES sessions(id),
		action TEXT,
		connection TEXT,
		table_name TEXT,
		details TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SessionID returns the id of this run.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Close ends the session and closes the store.
func (s *Store) Close() error {
	s.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now(), s.sessionID)
	return s.db.Close()
}

// RecordQuery records a query execution and prunes old entries past the
// store's limit.
func (s *Store) RecordQuery(record QueryRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO query_history (session_id, connection, query, execution_time_ms, rows_affected, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.sessionID, record.Connection, record.Query, record.Duration.Milliseconds(),
		record.RowsAffected, nullString(record.Error), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	if s.limit > 0 {
		_, err = s.db.Exec(`
			DELETE FROM query_history WHERE id NOT IN (
				SELECT id FROM query_history ORDER BY id DESC LIMIT ?
			)
		`, s.limit)
	}
	return err
}

// RecentQueries returns up to n distinct successful queries, newest first.
func (s *Store) RecentQueries(n int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query FROM query_history
		WHERE error IS NULL
		GROUP BY query
		ORDER BY MAX(id) DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// ListQueryHistory lists query history, newest first, optionally for one
// connection.
func (s *Store) ListQueryHistory(connection string, limit int) ([]*QueryRecord, error) {
	query := "SELECT id, session_id, connection, query, execution_time_ms, rows_affected, error, created_at FROM query_history"
	args := make([]any, 0)

	if connection != "" {
		query += " WHERE connection = ?"
		args = append(args, connection)
	}

	query += " ORDER BY id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*QueryRecord
	for rows.Next() {
		var (
			record QueryRecord
			ms     int64
			errStr sql.NullString
		)
		err := rows.Scan(&record.ID, &record.SessionID, &record.Connection, &record.Query,
			&ms, &record.RowsAffected, &errStr, &record.CreatedAt)
		if err != nil {
			return nil, err
		}

		record.Duration = time.Duration(ms) * time.Millisecond
		record.Error = errStr.String
		records = append(records, &record)
	}

	return records, rows.Err()
}

// RecordAudit records a data change. details is stored as JSON.
func (s *Store) RecordAudit(action, connection, table string, details map[string]any) error {
	var detailsJSON string
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		detailsJSON = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_log (session_id, action, connection, table_name, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.sessionID, action, connection, nullString(table), nullString(detailsJSON), time.Now())
	return err
}

// ListAuditLog lists audit entries, newest first, optionally filtered by
// action.
func (s *Store) ListAuditLog(action string, limit int) ([]*AuditRecord, error) {
	query := "SELECT id, session_id, action, connection, table_name, details, created_at FROM audit_log"
	args := make([]any, 0)

	if action != "" {
		query += " WHERE action = ?"
		args = append(args, action)
	}

	query += " ORDER BY id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AuditRecord
	for rows.Next() {
		var record AuditRecord
		var tableName, details sql.NullString

		err := rows.Scan(&record.ID, &record.SessionID, &record.Action, &record.Connection,
			&tableName, &details, &record.CreatedAt)
		if err != nil {
			return nil, err
		}

		record.TableName = tableName.String
		record.Details = details.String
		records = append(records, &record)
	}

	return records, rows.Err()
}

// nullString converts an empty string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
