package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// QueryResult holds the results of a query execution.
type QueryResult struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	Duration     time.Duration
	IsSelect     bool
	Error        string
}

// Query executes a query and returns structured results.
func Query(ctx context.Context, conn *Connection, query string, args ...any) (*QueryResult, error) {
	start := time.Now()
	if isReadOnlyQuery(query) {
		return executeSelect(ctx, conn, query, args, start)
	}
	return executeExec(ctx, conn, query, args, start)
}

// executeSelect runs a query that returns rows.
func executeSelect(ctx context.Context, conn *Connection, query string, args []any, start time.Time) (*QueryResult, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return &QueryResult{
			Duration: time.Since(start),
			IsSelect: true,
			Error:    err.Error(),
		}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns:  columns,
		Rows:     make([][]any, 0),
		IsSelect: true,
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		// Text comes back as []byte from the SQLite and MySQL drivers.
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	result.Duration = time.Since(start)

	if err := rows.Err(); err != nil {
		result.Error = err.Error()
		return result, err
	}

	return result, nil
}

// executeExec runs a statement that modifies data.
func executeExec(ctx context.Context, conn *Connection, query string, args []any, start time.Time) (*QueryResult, error) {
	if conn.ReadOnly {
		return &QueryResult{Duration: time.Since(start), Error: ErrReadOnly.Error()}, ErrReadOnly
	}

	res, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return &QueryResult{
			Duration: time.Since(start),
			Error:    err.Error(),
		}, err
	}

	result := &QueryResult{Duration: time.Since(start)}
	result.RowsAffected, _ = res.RowsAffected()
	return result, nil
}

// Explain returns the dialect's query plan for query.
func Explain(ctx context.Context, conn *Connection, query string) (*QueryResult, error) {
	prefix := "EXPLAIN "
	if conn.Driver == SQLite {
		prefix = "EXPLAIN QUERY PLAN "
	}
	return executeSelect(ctx, conn, prefix+query, nil, time.Now())
}

// SelectOptions configures a SELECT query. Where and OrderBy are raw SQL
// fragments; Args bind to placeholders in Where.
type SelectOptions struct {
	Columns []string
	Where   string
	OrderBy string
	Limit   int
	Offset  int
	Args    []any
}

// DefaultSelectOptions returns default options for browsing.
func DefaultSelectOptions() SelectOptions {
	return SelectOptions{Limit: 500}
}

func buildSelect(d Driver, table string, opts SelectOptions) string {
	cols := "*"
	if len(opts.Columns) > 0 {
		quoted := make([]string, len(opts.Columns))
		for i, c := range opts.Columns {
			quoted[i] = d.QuoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, d.QuoteIdent(table))
	if opts.Where != "" {
		b.WriteString(" WHERE " + opts.Where)
	}
	if opts.OrderBy != "" {
		b.WriteString(" ORDER BY " + opts.OrderBy)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
		}
	}
	return b.String()
}

// Select retrieves rows from a table.
func Select(ctx context.Context, conn *Connection, table string, opts SelectOptions) (*QueryResult, error) {
	return executeSelect(ctx, conn, buildSelect(conn.Driver, table, opts), opts.Args, time.Now())
}

// CountRows counts the rows of table matching where (all rows when empty).
func CountRows(ctx context.Context, conn *Connection, table, where string, args ...any) (int64, error) {
	query := "SELECT COUNT(*) FROM " + conn.quote(table)
	if where != "" {
		query += " WHERE " + where
	}
	var count int64
	if err := conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// RowUpdate is a set of new column values for the row whose primary key is
// PrimaryKey.
type RowUpdate struct {
	PrimaryKey any
	Values     map[string]any
}

// buildUpdate returns the UPDATE statement and its arguments. Columns are
// sorted so the statement text is stable.
func buildUpdate(d Driver, table, pkColumn string, u RowUpdate) (string, []any) {
	cols := make([]string, 0, len(u.Values))
	for c := range u.Values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	set := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		set[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(c), d.Placeholder(i+1))
		args = append(args, u.Values[c])
	}
	args = append(args, u.PrimaryKey)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.QuoteIdent(table),
		strings.Join(set, ", "),
		d.QuoteIdent(pkColumn),
		d.Placeholder(len(cols)+1))
	return query, args
}

// UpdateRows applies updates in a single transaction and returns the number
// of rows changed. Nothing is written if any statement fails.
func UpdateRows(ctx context.Context, conn *Connection, table, pkColumn string, updates []RowUpdate) (int64, error) {
	if pkColumn == "" {
		return 0, ErrNoPrimaryKey
	}
	if conn.ReadOnly {
		return 0, ErrReadOnly
	}

	var affected int64
	err := conn.WithTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			if len(u.Values) == 0 {
				continue
			}
			query, args := buildUpdate(conn.Driver, table, pkColumn, u)
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to update row %v: %w", u.PrimaryKey, err)
			}
			n, _ := res.RowsAffected()
			affected += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// UpdateRow updates a single row.
func UpdateRow(ctx context.Context, conn *Connection, table, pkColumn string, pkValue any, values map[string]any) (int64, error) {
	return UpdateRows(ctx, conn, table, pkColumn, []RowUpdate{{PrimaryKey: pkValue, Values: values}})
}

func buildDelete(d Driver, table, pkColumn string, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		d.QuoteIdent(table), d.QuoteIdent(pkColumn), strings.Join(marks, ", "))
}

// DeleteRows deletes the rows whose primary key is in pkValues.
func DeleteRows(ctx context.Context, conn *Connection, table, pkColumn string, pkValues []any) (int64, error) {
	if pkColumn == "" {
		return 0, ErrNoPrimaryKey
	}
	if conn.ReadOnly {
		return 0, ErrReadOnly
	}
	if len(pkValues) == 0 {
		return 0, nil
	}

	var affected int64
	err := conn.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, buildDelete(conn.Driver, table, pkColumn, len(pkValues)), pkValues...)
		if err != nil {
			return fmt.Errorf("failed to delete rows: %w", err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// FormatValue formats a driver value for display.
func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.Format(time.RFC3339)
	case sql.NullString:
		if val.Valid {
			return val.String
		}
		return "NULL"
	case sql.NullInt64:
		if val.Valid {
			return fmt.Sprintf("%d", val.Int64)
		}
		return "NULL"
	case sql.NullFloat64:
		if val.Valid {
			return fmt.Sprintf("%g", val.Float64)
		}
		return "NULL"
	case sql.NullBool:
		if val.Valid {
			return FormatValue(val.Bool)
		}
		return "NULL"
	case sql.NullTime:
		if val.Valid {
			return FormatValue(val.Time)
		}
		return "NULL"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// isReadOnlyQuery reports whether query only reads. It looks at the first
// keyword and nothing else.
func isReadOnlyQuery(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(strings.TrimLeft(fields[0], "(")) {
	case "SELECT", "PRAGMA", "EXPLAIN", "WITH", "SHOW", "DESCRIBE", "DESC", "VALUES":
		return true
	}
	return false
}
