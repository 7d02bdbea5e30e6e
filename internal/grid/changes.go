package grid

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNoPrimaryKey is returned when change records are requested from a
	// grid that was built without a primary key column.
	ErrNoPrimaryKey = errors.New("grid has no primary key column")
	// ErrNoSelection is returned when there is nothing selected to copy.
	ErrNoSelection = errors.New("no cells selected")
)

// ChangeRecord is one edited cell, ready to be persisted.
type ChangeRecord struct {
	Row         int
	PrimaryKey  any
	Column      string
	ColumnIndex int
	NewValue    any
}

// RowChange groups the edits of one row for a single UPDATE.
type RowChange struct {
	Row        int
	PrimaryKey any
	Values     map[string]any
}

// Changes lists every edited cell ordered by row, then column. The primary
// key is the raw (loaded) value so an edited row can still be found.
func (s *State) Changes() ([]ChangeRecord, error) {
	if s.primaryKey < 0 {
		return nil, ErrNoPrimaryKey
	}
	var out []ChangeRecord
	for y := range s.rows {
		r := &s.rows[y]
		if !r.changed() {
			continue
		}
		cols := make([]int, 0, len(r.change))
		for x := range r.change {
			cols = append(cols, x)
		}
		sort.Ints(cols)
		for _, x := range cols {
			out = append(out, ChangeRecord{
				Row:         y,
				PrimaryKey:  r.raw[s.primaryKey],
				Column:      s.headers[x].Name,
				ColumnIndex: x,
				NewValue:    r.change[x],
			})
		}
	}
	return out, nil
}

// RowChanges groups Changes by row.
func (s *State) RowChanges() ([]RowChange, error) {
	records, err := s.Changes()
	if err != nil {
		return nil, err
	}
	var out []RowChange
	for _, rec := range records {
		if n := len(out); n == 0 || out[n-1].Row != rec.Row {
			out = append(out, RowChange{
				Row:        rec.Row,
				PrimaryKey: rec.PrimaryKey,
				Values:     make(map[string]any),
			})
		}
		out[len(out)-1].Values[rec.Column] = rec.NewValue
	}
	return out, nil
}

// PrimaryKeyValue returns the loaded primary key of row y.
func (s *State) PrimaryKeyValue(y int) (any, bool) {
	if s.primaryKey < 0 || y < 0 || y >= len(s.rows) {
		return nil, false
	}
	return s.rows[y].raw[s.primaryKey], true
}

// SelectedRows returns the row indices covered by the selection, ascending.
func (s *State) SelectedRows() []int {
	r, ok := s.Selection()
	if !ok {
		return nil
	}
	out := make([]int, 0, r.Rows())
	for y := r.MinY; y <= r.MaxY; y++ {
		out = append(out, y)
	}
	return out
}

// SelectedValues returns the effective values inside the selection.
func (s *State) SelectedValues() [][]any {
	r, ok := s.Selection()
	if !ok {
		return nil
	}
	out := make([][]any, 0, r.Rows())
	for y := r.MinY; y <= r.MaxY; y++ {
		line := make([]any, 0, r.Cols())
		for x := r.MinX; x <= r.MaxX; x++ {
			v, _ := s.Value(y, x)
			line = append(line, v)
		}
		out = append(out, line)
	}
	return out
}

// SelectionText renders the selection as tab-separated lines, the format
// spreadsheets accept on paste. Tabs and newlines inside values become spaces.
func (s *State) SelectionText() (string, error) {
	values := s.SelectedValues()
	if len(values) == 0 {
		return "", ErrNoSelection
	}
	clean := strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")
	var b strings.Builder
	for i, line := range values {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, v := range line {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(clean.Replace(s.format(v)))
		}
	}
	return b.String(), nil
}
