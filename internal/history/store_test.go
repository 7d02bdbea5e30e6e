package history

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), limit)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionID(t *testing.T) {
	dir := t.TempDir()
	a, err := NewStore(dir, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer a.Close()
	b, err := NewStore(dir, 0)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer b.Close()

	if a.SessionID() == "" || a.SessionID() == b.SessionID() {
		t.Errorf("session ids %q and %q should be distinct and non-empty", a.SessionID(), b.SessionID())
	}
}

func TestRecentQueries(t *testing.T) {
	s := newTestStore(t, 0)

	for _, q := range []string{"SELECT 1", "SELECT 2", "SELECT 1", "SELECT 3"} {
		if err := s.RecordQuery(QueryRecord{Connection: "main", Query: q}); err != nil {
			t.Fatalf("RecordQuery(%q) error = %v", q, err)
		}
	}
	s.RecordQuery(QueryRecord{Connection: "main", Query: "SELEC broken", Error: "syntax error"})

	got, err := s.RecentQueries(10)
	if err != nil {
		t.Fatalf("RecentQueries() error = %v", err)
	}
	want := []string{"SELECT 3", "SELECT 1", "SELECT 2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RecentQueries() = %v, want %v", got, want)
	}

	got, _ = s.RecentQueries(1)
	if !reflect.DeepEqual(got, []string{"SELECT 3"}) {
		t.Errorf("RecentQueries(1) = %v", got)
	}
}

func TestListQueryHistory(t *testing.T) {
	s := newTestStore(t, 0)

	s.RecordQuery(QueryRecord{Connection: "a", Query: "SELECT 1", Duration: 1500 * time.Millisecond, RowsAffected: 4})
	s.RecordQuery(QueryRecord{Connection: "b", Query: "SELECT 2"})

	records, err := s.ListQueryHistory("a", 0)
	if err != nil {
		t.Fatalf("ListQueryHistory() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	r := records[0]
	if r.Query != "SELECT 1" || r.RowsAffected != 4 || r.Duration != 1500*time.Millisecond {
		t.Errorf("record = %+v", r)
	}
	if r.SessionID != s.SessionID() {
		t.Errorf("SessionID = %q, want %q", r.SessionID, s.SessionID())
	}

	all, _ := s.ListQueryHistory("", 0)
	if len(all) != 2 || all[0].Query != "SELECT 2" {
		t.Errorf("ListQueryHistory(all) = %d records, newest %q", len(all), all[0].Query)
	}
}

func TestQueryLimit(t *testing.T) {
	s := newTestStore(t, 3)

	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		s.RecordQuery(QueryRecord{Query: q})
	}

	records, err := s.ListQueryHistory("", 0)
	if err != nil {
		t.Fatalf("ListQueryHistory() error = %v", err)
	}
	var got []string
	for _, r := range records {
		got = append(got, r.Query)
	}
	if want := []string{"q5", "q4", "q3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("kept queries = %v, want %v", got, want)
	}
}

func TestRecordAudit(t *testing.T) {
	s := newTestStore(t, 0)

	if err := s.RecordAudit(ActionUpdate, "main", "users", map[string]any{"rows": 2}); err != nil {
		t.Fatalf("RecordAudit() error = %v", err)
	}
	if err := s.RecordAudit(ActionDelete, "main", "posts", nil); err != nil {
		t.Fatalf("RecordAudit() error = %v", err)
	}

	updates, err := s.ListAuditLog(ActionUpdate, 0)
	if err != nil {
		t.Fatalf("ListAuditLog() error = %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("len(updates) = %d, want 1", len(updates))
	}
	if updates[0].TableName != "users" || updates[0].Connection != "main" {
		t.Errorf("audit = %+v", updates[0])
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(updates[0].Details), &details); err != nil {
		t.Fatalf("details %q are not JSON: %v", updates[0].Details, err)
	}
	if details["rows"] != float64(2) {
		t.Errorf("details[rows] = %v, want 2", details["rows"])
	}

	all, _ := s.ListAuditLog("", 0)
	if len(all) != 2 || all[0].Action != ActionDelete || all[0].Details != "" {
		t.Errorf("ListAuditLog(all) = %+v", all)
	}
}
