package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/johan-st/dbgrid/internal/testutil"
)

func openSample(t *testing.T, readOnly bool) *Connection {
	t.Helper()
	conn, err := OpenSQLite(context.Background(), testutil.SampleDB(t), readOnly)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name   string
		driver Driver
		opts   SelectOptions
		want   string
	}{
		{
			name:   "all rows",
			driver: SQLite,
			want:   `SELECT * FROM "users"`,
		},
		{
			name:   "filtered page",
			driver: SQLite,
			opts:   SelectOptions{Where: "id > ?", OrderBy: "id DESC", Limit: 10, Offset: 20},
			want:   `SELECT * FROM "users" WHERE id > ? ORDER BY id DESC LIMIT 10 OFFSET 20`,
		},
		{
			name:   "mysql columns",
			driver: MySQL,
			opts:   SelectOptions{Columns: []string{"id", "name"}, Limit: 5},
			want:   "SELECT `id`, `name` FROM `users` LIMIT 5",
		},
		{
			name:   "offset without limit is ignored",
			driver: Postgres,
			opts:   SelectOptions{Offset: 5},
			want:   `SELECT * FROM "users"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSelect(tt.driver, "users", tt.opts); got != tt.want {
				t.Errorf("buildSelect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildUpdate(t *testing.T) {
	u := RowUpdate{PrimaryKey: 7, Values: map[string]any{"name": "Ann", "email": "ann@x"}}

	tests := []struct {
		driver Driver
		want   string
	}{
		{SQLite, `UPDATE "users" SET "email" = ?, "name" = ? WHERE "id" = ?`},
		{Postgres, `UPDATE "users" SET "email" = $1, "name" = $2 WHERE "id" = $3`},
		{MySQL, "UPDATE `users` SET `email` = ?, `name` = ? WHERE `id` = ?"},
	}
	for _, tt := range tests {
		query, args := buildUpdate(tt.driver, "users", "id", u)
		if query != tt.want {
			t.Errorf("buildUpdate(%s) = %q, want %q", tt.driver, query, tt.want)
		}
		wantArgs := []any{"ann@x", "Ann", 7}
		if !reflect.DeepEqual(args, wantArgs) {
			t.Errorf("buildUpdate(%s) args = %v, want %v", tt.driver, args, wantArgs)
		}
	}
}

func TestBuildDelete(t *testing.T) {
	if got, want := buildDelete(Postgres, "users", "id", 3), `DELETE FROM "users" WHERE "id" IN ($1, $2, $3)`; got != want {
		t.Errorf("buildDelete() = %q, want %q", got, want)
	}
	if got, want := buildDelete(MySQL, "users", "id", 1), "DELETE FROM `users` WHERE `id` IN (?)"; got != want {
		t.Errorf("buildDelete() = %q, want %q", got, want)
	}
}

func TestQuerySelect(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	result, err := Query(ctx, conn, "SELECT id, name, note FROM users ORDER BY id")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !result.IsSelect {
		t.Error("IsSelect = false for SELECT")
	}
	if !reflect.DeepEqual(result.Columns, []string{"id", "name", "note"}) {
		t.Errorf("Columns = %v", result.Columns)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(result.Rows))
	}
	if got := result.Rows[0][1]; got != "Alice" {
		t.Errorf("Rows[0][1] = %v, want Alice", got)
	}
	if got := result.Rows[0][2]; got != nil {
		t.Errorf("Rows[0][2] = %v, want nil", got)
	}
	if got := result.Rows[1][2]; got != "admin" {
		t.Errorf("Rows[1][2] = %v, want admin", got)
	}
}

func TestQueryExec(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	result, err := Query(ctx, conn, "UPDATE posts SET published = 1")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if result.IsSelect {
		t.Error("IsSelect = true for UPDATE")
	}
	if result.RowsAffected != 3 {
		t.Errorf("RowsAffected = %d, want 3", result.RowsAffected)
	}

	result, err = Query(ctx, conn, "SELEC nonsense")
	if err == nil {
		t.Fatal("Query() of invalid SQL returned nil error")
	}
	if result == nil || result.Error == "" {
		t.Errorf("result.Error not set: %+v", result)
	}
}

func TestExplain(t *testing.T) {
	conn := openSample(t, false)

	result, err := Explain(context.Background(), conn, "SELECT * FROM users WHERE id = 1")
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if len(result.Rows) == 0 {
		t.Error("Explain() returned no plan rows")
	}
}

func TestSelectPagination(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	if _, err := conn.Exec(ctx, "CREATE TABLE records (id INTEGER PRIMARY KEY, label TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i <= 25; i++ {
		if _, err := conn.Exec(ctx, "INSERT INTO records (label) VALUES (?)", fmt.Sprintf("r%02d", i)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	result, err := Select(ctx, conn, "records", SelectOptions{Limit: 10, Offset: 5, OrderBy: "id"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(result.Rows) != 10 {
		t.Fatalf("len(Rows) = %d, want 10", len(result.Rows))
	}
	if id := result.Rows[0][0].(int64); id != 6 {
		t.Errorf("first id = %d, want 6", id)
	}

	result, err = Select(ctx, conn, "records", SelectOptions{Where: "label > ?", Args: []any{"r20"}, Limit: 100})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(result.Rows) != 5 {
		t.Errorf("filtered len(Rows) = %d, want 5", len(result.Rows))
	}

	n, err := CountRows(ctx, conn, "records", "id <= ?", 4)
	if err != nil {
		t.Fatalf("CountRows() error = %v", err)
	}
	if n != 4 {
		t.Errorf("CountRows() = %d, want 4", n)
	}
}

func TestUpdateRows(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	n, err := UpdateRows(ctx, conn, "users", "id", []RowUpdate{
		{PrimaryKey: int64(1), Values: map[string]any{"note": "first"}},
		{PrimaryKey: int64(3), Values: map[string]any{"name": "Chuck", "note": nil}},
		{PrimaryKey: int64(2)},
	})
	if err != nil {
		t.Fatalf("UpdateRows() error = %v", err)
	}
	if n != 2 {
		t.Errorf("UpdateRows() = %d, want 2", n)
	}

	var note sql.NullString
	conn.QueryRow(ctx, "SELECT note FROM users WHERE id = 1").Scan(&note)
	if note.String != "first" {
		t.Errorf("note = %q, want first", note.String)
	}
	var name string
	conn.QueryRow(ctx, "SELECT name FROM users WHERE id = 3").Scan(&name)
	if name != "Chuck" {
		t.Errorf("name = %q, want Chuck", name)
	}
}

// TestUpdateRowsAtomic checks a failing row leaves earlier rows untouched.
func TestUpdateRowsAtomic(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	_, err := UpdateRows(ctx, conn, "users", "id", []RowUpdate{
		{PrimaryKey: int64(1), Values: map[string]any{"name": "Changed"}},
		// email is UNIQUE.
		{PrimaryKey: int64(2), Values: map[string]any{"email": "charlie@example.com"}},
	})
	if err == nil {
		t.Fatal("UpdateRows() with a constraint violation returned nil error")
	}

	var name string
	conn.QueryRow(ctx, "SELECT name FROM users WHERE id = 1").Scan(&name)
	if name != "Alice" {
		t.Errorf("name = %q after rollback, want Alice", name)
	}
}

// TestUpdateRowInjection checks values are bound, not interpolated.
func TestUpdateRowInjection(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	evil := "Robert'); DROP TABLE users; --"
	if _, err := UpdateRow(ctx, conn, "users", "id", int64(1), map[string]any{"name": evil}); err != nil {
		t.Fatalf("UpdateRow() error = %v", err)
	}

	n, err := CountRows(ctx, conn, "users", "")
	if err != nil {
		t.Fatalf("users table is gone: %v", err)
	}
	if n != 3 {
		t.Errorf("row count = %d, want 3", n)
	}
	var name string
	conn.QueryRow(ctx, "SELECT name FROM users WHERE id = 1").Scan(&name)
	if name != evil {
		t.Errorf("name = %q, want literal %q", name, evil)
	}
}

func TestSelectMaliciousTable(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	if _, err := Select(ctx, conn, `users"; DROP TABLE users; --`, DefaultSelectOptions()); err == nil {
		t.Error("Select() of a malicious table name returned nil error")
	}
	if _, err := CountRows(ctx, conn, "users", ""); err != nil {
		t.Errorf("users table is gone: %v", err)
	}
}

func TestDeleteRows(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	n, err := DeleteRows(ctx, conn, "posts", "id", []any{int64(1), int64(3), int64(99)})
	if err != nil {
		t.Fatalf("DeleteRows() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteRows() = %d, want 2", n)
	}
	left, _ := CountRows(ctx, conn, "posts", "")
	if left != 1 {
		t.Errorf("posts left = %d, want 1", left)
	}

	n, err = DeleteRows(ctx, conn, "posts", "id", nil)
	if err != nil || n != 0 {
		t.Errorf("DeleteRows(nil) = %d, %v; want 0, nil", n, err)
	}
}

func TestWritesNeedPrimaryKey(t *testing.T) {
	conn := openSample(t, false)
	ctx := context.Background()

	if _, err := UpdateRow(ctx, conn, "events", "", nil, map[string]any{"message": "x"}); !errors.Is(err, ErrNoPrimaryKey) {
		t.Errorf("UpdateRow() error = %v, want ErrNoPrimaryKey", err)
	}
	if _, err := DeleteRows(ctx, conn, "events", "", []any{1}); !errors.Is(err, ErrNoPrimaryKey) {
		t.Errorf("DeleteRows() error = %v, want ErrNoPrimaryKey", err)
	}
}

func TestReadOnlyConnection(t *testing.T) {
	conn := openSample(t, true)
	ctx := context.Background()

	if _, err := UpdateRow(ctx, conn, "users", "id", int64(1), map[string]any{"name": "x"}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("UpdateRow() error = %v, want ErrReadOnly", err)
	}
	if _, err := DeleteRows(ctx, conn, "users", "id", []any{int64(1)}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("DeleteRows() error = %v, want ErrReadOnly", err)
	}
	if _, err := Query(ctx, conn, "DROP TABLE users"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Query(DROP) error = %v, want ErrReadOnly", err)
	}
	// The file itself is opened read-only too.
	if _, err := conn.Exec(ctx, "DELETE FROM users"); err == nil {
		t.Error("Exec() on a read-only database returned nil error")
	}
	if _, err := Query(ctx, conn, "SELECT * FROM users"); err != nil {
		t.Errorf("Query(SELECT) error = %v", err)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"text", "text"},
		{[]byte("bytes"), "bytes"},
		{int64(42), "42"},
		{3.5, "3.5"},
		{true, "true"},
		{ts, "2024-03-01T12:30:00Z"},
		{sql.NullString{}, "NULL"},
		{sql.NullString{String: "x", Valid: true}, "x"},
		{sql.NullInt64{Int64: 9, Valid: true}, "9"},
		{sql.NullFloat64{}, "NULL"},
		{sql.NullBool{Bool: false, Valid: true}, "false"},
		{sql.NullTime{Time: ts, Valid: true}, "2024-03-01T12:30:00Z"},
		{uint8(7), "7"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsReadOnlyQuery(t *testing.T) {
	tests := []struct {
		query    string
		readOnly bool
	}{
		{"SELECT * FROM users", true},
		{"select * from users", true},
		{"\n\tSELECT 1", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"PRAGMA table_info(users)", true},
		{"EXPLAIN SELECT * FROM users", true},
		{"WITH cte AS (SELECT 1) SELECT * FROM cte", true},
		{"SHOW TABLES", true},
		{"describe users", true},
		{"VALUES (1), (2)", true},

		{"", false},
		{"INSERT INTO users VALUES (1)", false},
		{"UPDATE users SET x = 1", false},
		{"DELETE FROM users", false},
		{"DROP TABLE users", false},
		{"CREATE TABLE t (id INT)", false},
		{"ATTACH DATABASE ':memory:' AS mem", false},
		{"SELECTED", false},
	}
	for _, tt := range tests {
		if got := isReadOnlyQuery(tt.query); got != tt.readOnly {
			t.Errorf("isReadOnlyQuery(%q) = %v, want %v", tt.query, got, tt.readOnly)
		}
	}
}
