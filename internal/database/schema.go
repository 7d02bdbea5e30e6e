package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TableInfo describes a table or view in a table list.
type TableInfo struct {
	Name string
	View bool
	// RowCount is exact for SQLite tables, an estimate for server
	// databases and -1 when unknown.
	RowCount int64
}

// ColumnInfo contains information about a table column.
type ColumnInfo struct {
	Name         string
	Type         string
	Nullable     bool
	DefaultValue sql.NullString
	PrimaryKey   bool
}

// TableStructure is the column layout of a table.
type TableStructure struct {
	Table      string
	Columns    []ColumnInfo
	PrimaryKey []string
}

// ColumnNames returns the column names in table order.
func (t *TableStructure) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// EditKey returns the single primary key column rows can be addressed by.
// Composite keys are not supported for editing.
func (t *TableStructure) EditKey() (string, bool) {
	if len(t.PrimaryKey) != 1 {
		return "", false
	}
	return t.PrimaryKey[0], true
}

// Schema provides methods for introspecting database schema.
type Schema struct {
	conn *Connection
}

// NewSchema creates a new Schema introspector.
func NewSchema(conn *Connection) *Schema {
	return &Schema{conn: conn}
}

// ListTables returns all user tables and views sorted by name.
func (s *Schema) ListTables(ctx context.Context) ([]TableInfo, error) {
	var query string
	switch s.conn.Driver {
	case Postgres:
		query = `
			SELECT t.table_name, t.table_type = 'VIEW', COALESCE(st.n_live_tup, -1)
			FROM information_schema.tables t
			LEFT JOIN pg_stat_user_tables st
				ON st.relname = t.table_name AND st.schemaname = t.table_schema
			WHERE t.table_schema = current_schema()
			ORDER BY t.table_name`
	case MySQL:
		query = `
			SELECT table_name, table_type = 'VIEW', COALESCE(table_rows, -1)
			FROM information_schema.tables
			WHERE table_schema = DATABASE()
			ORDER BY table_name`
	default:
		query = `
			SELECT name, type = 'view', -1 FROM sqlite_master
			WHERE type IN ('table', 'view')
			AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	}

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.View, &t.RowCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before counting: SQLite runs on one connection.
	rows.Close()

	if s.conn.Driver == SQLite {
		for i := range tables {
			if tables[i].View {
				continue
			}
			n, err := s.GetRowCount(ctx, tables[i].Name)
			if err != nil {
				return nil, err
			}
			tables[i].RowCount = n
		}
	}
	return tables, nil
}

// GetTableStructure returns the columns and primary key of table.
func (s *Schema) GetTableStructure(ctx context.Context, table string) (*TableStructure, error) {
	columns, err := s.GetColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	if s.conn.Driver != SQLite {
		pks, err := s.primaryKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool, len(pks))
		for _, pk := range pks {
			set[pk] = true
		}
		for i := range columns {
			columns[i].PrimaryKey = set[columns[i].Name]
		}
	}

	ts := &TableStructure{Table: table, Columns: columns}
	for _, c := range columns {
		if c.PrimaryKey {
			ts.PrimaryKey = append(ts.PrimaryKey, c.Name)
		}
	}
	return ts, nil
}

// GetColumns returns column information for a table in ordinal order.
func (s *Schema) GetColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	if s.conn.Driver == SQLite {
		return s.sqliteColumns(ctx, table)
	}

	query := `
		SELECT column_name, data_type, is_nullable = 'YES', column_default
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`
	if s.conn.Driver == MySQL {
		query = `
			SELECT column_name, data_type, is_nullable = 'YES', column_default
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`
	}

	rows, err := s.conn.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get column info: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.DefaultValue); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (s *Schema) sqliteColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", s.conn.quote(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to get column info: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			col     ColumnInfo
			cid     int
			notNull bool
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &col.DefaultValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		col.Nullable = !notNull
		col.PrimaryKey = pk > 0
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (s *Schema) primaryKeys(ctx context.Context, table string) ([]string, error) {
	var (
		query string
		arg   any = table
	)
	switch s.conn.Driver {
	case Postgres:
		query = `
			SELECT a.attname
			FROM pg_index i
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
			WHERE i.indrelid = $1::regclass AND i.indisprimary`
		arg = s.conn.quote(table)
	case MySQL:
		query = `
			SELECT column_name
			FROM information_schema.key_column_usage
			WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
			ORDER BY ordinal_position`
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, s.conn.Driver)
	}

	rows, err := s.conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary key: %w", err)
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan primary key: %w", err)
		}
		pks = append(pks, name)
	}
	return pks, rows.Err()
}

// GetRowCount returns the number of rows in a table.
func (s *Schema) GetRowCount(ctx context.Context, table string) (int64, error) {
	return CountRows(ctx, s.conn, table, "")
}

// DescribeColumn renders a column for the schema view, e.g.
// "email TEXT NOT NULL DEFAULT '' PK".
func DescribeColumn(c ColumnInfo) string {
	parts := []string{c.Name}
	if c.Type != "" {
		parts = append(parts, strings.ToUpper(c.Type))
	}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.DefaultValue.Valid {
		parts = append(parts, "DEFAULT "+c.DefaultValue.String)
	}
	if c.PrimaryKey {
		parts = append(parts, "PK")
	}
	return strings.Join(parts, " ")
}
