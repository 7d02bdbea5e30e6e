package database

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
)

func TestListTables(t *testing.T) {
	conn := openSample(t, false)

	tables, err := NewSchema(conn).ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}

	want := []TableInfo{
		{Name: "events", RowCount: 1},
		{Name: "posts", RowCount: 3},
		{Name: "published_posts", View: true, RowCount: -1},
		{Name: "users", RowCount: 3},
	}
	if !reflect.DeepEqual(tables, want) {
		t.Errorf("ListTables() = %+v, want %+v", tables, want)
	}
}

func TestGetTableStructure(t *testing.T) {
	conn := openSample(t, false)
	schema := NewSchema(conn)
	ctx := context.Background()

	ts, err := schema.GetTableStructure(ctx, "users")
	if err != nil {
		t.Fatalf("GetTableStructure() error = %v", err)
	}
	if got := ts.ColumnNames(); !reflect.DeepEqual(got, []string{"id", "name", "email", "note"}) {
		t.Errorf("ColumnNames() = %v", got)
	}
	if !reflect.DeepEqual(ts.PrimaryKey, []string{"id"}) {
		t.Errorf("PrimaryKey = %v, want [id]", ts.PrimaryKey)
	}
	if key, ok := ts.EditKey(); !ok || key != "id" {
		t.Errorf("EditKey() = %q, %v; want id, true", key, ok)
	}
	if ts.Columns[1].Nullable {
		t.Error("name is NOT NULL but reported nullable")
	}
	if !ts.Columns[3].Nullable {
		t.Error("note is nullable but reported NOT NULL")
	}

	ts, err = schema.GetTableStructure(ctx, "events")
	if err != nil {
		t.Fatalf("GetTableStructure(events) error = %v", err)
	}
	if _, ok := ts.EditKey(); ok {
		t.Error("events has no primary key but EditKey() ok")
	}

	if _, err := schema.GetTableStructure(ctx, "missing"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("GetTableStructure(missing) error = %v, want ErrTableNotFound", err)
	}
}

func TestEditKeyComposite(t *testing.T) {
	ts := &TableStructure{PrimaryKey: []string{"a", "b"}}
	if _, ok := ts.EditKey(); ok {
		t.Error("EditKey() ok for a composite key")
	}
}

func TestDescribeColumn(t *testing.T) {
	tests := []struct {
		col  ColumnInfo
		want string
	}{
		{ColumnInfo{Name: "id", Type: "integer", PrimaryKey: true, Nullable: true}, "id INTEGER PK"},
		{ColumnInfo{Name: "name", Type: "TEXT"}, "name TEXT NOT NULL"},
		{ColumnInfo{Name: "n", Nullable: true, DefaultValue: sql.NullString{String: "0", Valid: true}}, "n DEFAULT 0"},
	}
	for _, tt := range tests {
		if got := DescribeColumn(tt.col); got != tt.want {
			t.Errorf("DescribeColumn(%s) = %q, want %q", tt.col.Name, got, tt.want)
		}
	}
}
