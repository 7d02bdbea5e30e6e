// Package grid implements the virtualized, editable table grid used by every
// table-viewing surface: the grid state machine, the viewport virtualizer,
// the inline cell editor, column resizing and the bubbletea component that
// renders them.
package grid

import (
	"fmt"
	"time"
)

// Formatter turns a cell value into its display form.
type Formatter func(v any) string

// FormatValue is the default Formatter. Missing values render as NULL.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// EventKind identifies which part of the state a mutation touched.
type EventKind int

const (
	EventValueChanged EventKind = iota
	EventFocusChanged
	EventSelectionChanged
	EventEditStarted
	EventEditEnded
	EventHeaderResized
	EventReloaded
)

func (k EventKind) String() string {
	switch k {
	case EventValueChanged:
		return "value-changed"
	case EventFocusChanged:
		return "focus-changed"
	case EventSelectionChanged:
		return "selection-changed"
	case EventEditStarted:
		return "edit-started"
	case EventEditEnded:
		return "edit-ended"
	case EventHeaderResized:
		return "header-resized"
	case EventReloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every mutation.
type Event struct {
	Kind     EventKind
	Revision uint64
	Cell     Coord
}

// Option configures a State at construction.
type Option func(*State)

// WithMinColumnWidth sets the width every resize is clamped to.
func WithMinColumnWidth(n int) Option {
	return func(s *State) {
		if n > 0 {
			s.minWidth = n
		}
	}
}

// WithPrimaryKey marks column x as the row identity. The column becomes
// non-editable and its raw value keys every ChangeRecord.
func WithPrimaryKey(x int) Option {
	return func(s *State) {
		s.primaryKey = x
	}
}

// WithReadOnlyColumns marks columns that refuse edit mode.
func WithReadOnlyColumns(xs ...int) Option {
	return func(s *State) {
		for _, x := range xs {
			s.locked[x] = true
		}
	}
}

// WithReadOnly disables editing for the whole grid (query results).
func WithReadOnly() Option {
	return func(s *State) {
		s.readOnly = true
	}
}

// WithFormatter replaces FormatValue.
func WithFormatter(f Formatter) Option {
	return func(s *State) {
		if f != nil {
			s.format = f
		}
	}
}

type subscriber struct {
	id int
	fn func(Event)
}

// State is the grid state machine. Its methods are the only way to mutate
// headers, rows, focus, selection and the edit target; every mutation bumps
// the revision and notifies subscribers.
//
// State is not safe for concurrent use. It lives on the UI goroutine.
type State struct {
	headers []Header
	rows    []Row

	focus    Coord
	hasFocus bool

	anchor       Coord
	current      Coord
	hasSelection bool

	editTarget Coord
	editing    bool

	readOnly   bool
	locked     map[int]bool
	primaryKey int

	minWidth int
	format   Formatter

	revision    uint64
	subscribers []subscriber
	nextSubID   int
}

// NewState builds a State from headers and positional rows (the QueryResult shape).
// Short rows are padded with nil; extra values are dropped.
func NewState(headers []Header, rows [][]any, opts ...Option) *State {
	s := &State{
		locked:     make(map[int]bool),
		primaryKey: -1,
		minWidth:   DefaultMinColumnWidth,
		format:     FormatValue,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.headers = make([]Header, len(headers))
	for i, h := range headers {
		s.headers[i] = Header{Name: h.Name, Width: clampWidth(h.Width, s.minWidth)}
	}
	if s.primaryKey >= len(s.headers) {
		s.primaryKey = -1
	}
	if s.primaryKey >= 0 {
		s.locked[s.primaryKey] = true
	}

	s.rows = buildRows(rows, len(s.headers))
	return s
}

// NewStateFromRecords builds a State from name-keyed records.
func NewStateFromRecords(headers []Header, records []map[string]any, opts ...Option) *State {
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(headers))
		for x, h := range headers {
			row[x] = rec[h.Name]
		}
		rows[i] = row
	}
	return NewState(headers, rows, opts...)
}

func buildRows(values [][]any, columns int) []Row {
	rows := make([]Row, len(values))
	for i, v := range values {
		rows[i] = newRow(v, columns)
	}
	return rows
}

// RowCount returns the number of rows.
func (s *State) RowCount() int { return len(s.rows) }

// ColumnCount returns the number of columns.
func (s *State) ColumnCount() int { return len(s.headers) }

// Headers returns a copy of the Header Model.
func (s *State) Headers() []Header {
	out := make([]Header, len(s.headers))
	copy(out, s.headers)
	return out
}

// ColumnWidths returns the current width of every column.
func (s *State) ColumnWidths() []int {
	widths := make([]int, len(s.headers))
	for i, h := range s.headers {
		widths[i] = h.Width
	}
	return widths
}

// Header returns the descriptor of column x.
func (s *State) Header(x int) (Header, bool) {
	if x < 0 || x >= len(s.headers) {
		return Header{}, false
	}
	return s.headers[x], true
}

// ColumnIndex returns the index of the named column, or -1.
func (s *State) ColumnIndex(name string) int {
	for i, h := range s.headers {
		if h.Name == name {
			return i
		}
	}
	return -1
}

// Revision increases on every mutation.
func (s *State) Revision() uint64 { return s.revision }

// MinColumnWidth returns the resize floor.
func (s *State) MinColumnWidth() int { return s.minWidth }

// SetMinColumnWidth changes the resize floor and widens narrower columns.
func (s *State) SetMinColumnWidth(n int) {
	if n < 1 || n == s.minWidth {
		return
	}
	s.minWidth = n
	for i := range s.headers {
		s.headers[i].Width = clampWidth(s.headers[i].Width, n)
	}
	s.notify(EventHeaderResized, Coord{X: -1, Y: -1})
}

// Format renders v with the configured Formatter.
func (s *State) Format(v any) string { return s.format(v) }

func (s *State) inBounds(y, x int) bool {
	return y >= 0 && y < len(s.rows) && x >= 0 && x < len(s.headers)
}

func (s *State) empty() bool {
	return len(s.rows) == 0 || len(s.headers) == 0
}

func (s *State) clampCoord(y, x int) Coord {
	return Coord{
		Y: clamp(y, 0, len(s.rows)-1),
		X: clamp(x, 0, len(s.headers)-1),
	}
}

// Value returns the effective value of cell (y, x): the edit overlay if the
// cell was changed, otherwise the raw value. ok is false out of bounds.
func (s *State) Value(y, x int) (v any, ok bool) {
	if !s.inBounds(y, x) {
		return nil, false
	}
	return s.rows[y].value(x), true
}

// DisplayValue formats the effective value; out of bounds renders as NULL.
func (s *State) DisplayValue(y, x int) string {
	v, _ := s.Value(y, x)
	return s.format(v)
}

// RawValue returns the value as loaded, ignoring edits.
func (s *State) RawValue(y, x int) (any, bool) {
	if !s.inBounds(y, x) {
		return nil, false
	}
	return s.rows[y].raw[x], true
}

// ChangeValue records v as the new value of cell (y, x).
// Out of range indices are ignored.
func (s *State) ChangeValue(y, x int, v any) {
	if !s.inBounds(y, x) {
		return
	}
	s.rows[y].set(x, v, s.format)
	s.notify(EventValueChanged, Coord{Y: y, X: x})
}

// IsRowChanged reports whether row y has unsaved edits.
func (s *State) IsRowChanged(y int) bool {
	if y < 0 || y >= len(s.rows) {
		return false
	}
	return s.rows[y].changed()
}

// IsCellChanged reports whether cell (y, x) has an unsaved edit.
func (s *State) IsCellChanged(y, x int) bool {
	if !s.inBounds(y, x) {
		return false
	}
	return s.rows[y].cellChanged(x)
}

// ChangedRowCount returns how many rows carry unsaved edits.
func (s *State) ChangedRowCount() int {
	n := 0
	for i := range s.rows {
		if s.rows[i].changed() {
			n++
		}
	}
	return n
}

// Focus returns the focused cell. ok is false before the first interaction.
func (s *State) Focus() (c Coord, ok bool) {
	return s.focus, s.hasFocus
}

// IsFocused reports whether (y, x) is the focused cell.
func (s *State) IsFocused(y, x int) bool {
	return s.hasFocus && s.focus.Y == y && s.focus.X == x
}

// SetFocus moves focus to (y, x), clamped to the grid, and collapses the
// selection onto it.
func (s *State) SetFocus(y, x int) {
	if s.empty() {
		return
	}
	c := s.clampCoord(y, x)
	s.focus = c
	s.hasFocus = true
	s.anchor = c
	s.current = c
	s.hasSelection = true
	s.notify(EventFocusChanged, c)
}

// MoveFocus moves focus by (dy, dx), stopping at the edges.
func (s *State) MoveFocus(dy, dx int) {
	origin := s.focus
	if !s.hasFocus {
		origin = Coord{}
	}
	s.SetFocus(origin.Y+dy, origin.X+dx)
}

// SetSelection moves the current corner of the selection to (y, x) and
// keeps the anchor. Focus does not move.
func (s *State) SetSelection(y, x int) {
	if s.empty() {
		return
	}
	c := s.clampCoord(y, x)
	if !s.hasSelection {
		if !s.hasFocus {
			s.focus = c
			s.hasFocus = true
		}
		s.anchor = s.focus
	}
	s.current = c
	s.hasSelection = true
	s.notify(EventSelectionChanged, c)
}

// Selection returns the normalized selection rectangle.
func (s *State) Selection() (Rect, bool) {
	if !s.hasSelection {
		return Rect{}, false
	}
	return NewRect(s.anchor, s.current), true
}

// SelectionCorner returns the moving corner of the selection, the one
// SetSelection last placed.
func (s *State) SelectionCorner() (Coord, bool) {
	return s.current, s.hasSelection
}

// IsCellSelected reports whether (y, x) lies inside the selection.
func (s *State) IsCellSelected(y, x int) bool {
	if !s.hasSelection {
		return false
	}
	return NewRect(s.anchor, s.current).Contains(y, x)
}

// PrimaryKey returns the identity column, if one was configured.
func (s *State) PrimaryKey() (int, bool) {
	return s.primaryKey, s.primaryKey >= 0
}

// ReadOnly reports whether the whole grid refuses edits.
func (s *State) ReadOnly() bool { return s.readOnly }

// IsColumnEditable reports whether column x accepts edit mode.
func (s *State) IsColumnEditable(x int) bool {
	if s.readOnly || x < 0 || x >= len(s.headers) {
		return false
	}
	return !s.locked[x]
}

// CanEdit reports whether EnterEditModeAt(y, x) would succeed on an idle grid.
func (s *State) CanEdit(y, x int) bool {
	return s.inBounds(y, x) && s.IsColumnEditable(x)
}

// EnterEditMode opens the editor on the focused cell.
func (s *State) EnterEditMode() bool {
	if !s.hasFocus {
		return false
	}
	return s.EnterEditModeAt(s.focus.Y, s.focus.X)
}

// EnterEditModeAt makes (y, x) the edit target and focuses it. It returns
// false and changes nothing when the cell is out of bounds or not editable,
// or when a different cell is already being edited; the caller must commit
// or cancel that edit first.
func (s *State) EnterEditModeAt(y, x int) bool {
	if s.editing {
		return s.editTarget.Y == y && s.editTarget.X == x
	}
	if !s.CanEdit(y, x) {
		return false
	}
	c := Coord{Y: y, X: x}
	s.focus = c
	s.hasFocus = true
	s.anchor = c
	s.current = c
	s.hasSelection = true
	s.editTarget = c
	s.editing = true
	s.notify(EventEditStarted, c)
	return true
}

// ExitEditMode clears the edit target. Values are not touched.
func (s *State) ExitEditMode() {
	if !s.editing {
		return
	}
	c := s.editTarget
	s.editing = false
	s.editTarget = Coord{}
	s.notify(EventEditEnded, c)
}

// IsEditing reports whether a cell is in edit mode.
func (s *State) IsEditing() bool { return s.editing }

// EditTarget returns the cell being edited.
func (s *State) EditTarget() (Coord, bool) {
	return s.editTarget, s.editing
}

// IsEditingCell reports whether (y, x) is the edit target.
func (s *State) IsEditingCell(y, x int) bool {
	return s.editing && s.editTarget.Y == y && s.editTarget.X == x
}

// SetHeaderWidth resizes column x, never below the minimum width.
func (s *State) SetHeaderWidth(x, width int) {
	if x < 0 || x >= len(s.headers) {
		return
	}
	width = clampWidth(width, s.minWidth)
	if s.headers[x].Width == width {
		return
	}
	s.headers[x].Width = width
	s.notify(EventHeaderResized, Coord{Y: -1, X: x})
}

// Reload replaces the Row Model. Every edit, the focus, the selection and
// the edit target are dropped; nothing from the old rows is carried over.
func (s *State) Reload(rows [][]any) {
	s.rows = buildRows(rows, len(s.headers))
	s.hasFocus = false
	s.focus = Coord{}
	s.hasSelection = false
	s.anchor = Coord{}
	s.current = Coord{}
	s.editing = false
	s.editTarget = Coord{}
	s.notify(EventReloaded, Coord{Y: -1, X: -1})
}

// Subscribe registers fn for every subsequent Event and returns a function
// that removes it. Subscribers run synchronously after the mutation.
func (s *State) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *State) notify(kind EventKind, c Coord) {
	s.revision++
	if len(s.subscribers) == 0 {
		return
	}
	ev := Event{Kind: kind, Revision: s.revision, Cell: c}
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	for _, sub := range subs {
		sub.fn(ev)
	}
}
