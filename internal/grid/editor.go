package grid

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// EditAction is what the editor asks the grid to do after a key.
type EditAction int

const (
	EditPending EditAction = iota
	EditCommit
	EditCancel
)

// EditResult carries the action and, for commits, the focus move that
// follows it.
type EditResult struct {
	Action EditAction
	DY, DX int
}

// Editor is the in-cell text surface. It owns the edit buffer while a cell
// is being edited and never touches State itself; the grid applies the
// result.
type Editor struct {
	input     textinput.Model
	keys      KeyMap
	target    Coord
	initial   string
	active    bool
	selectAll bool
}

// NewEditor returns a closed editor.
func NewEditor(keys KeyMap) Editor {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "NULL"
	ti.CharLimit = 0
	return Editor{input: ti, keys: keys}
}

// Open mounts the editor on target with the cell's display value. The
// whole value starts selected so the first typed character replaces it.
func (e *Editor) Open(target Coord, value string) tea.Cmd {
	e.target = target
	e.initial = value
	e.active = true
	e.selectAll = true
	e.input.SetValue(value)
	e.input.CursorEnd()
	return e.input.Focus()
}

// Close unmounts the editor and drops the buffer.
func (e *Editor) Close() {
	e.active = false
	e.selectAll = false
	e.input.Blur()
	e.input.SetValue("")
}

// Active reports whether the editor is mounted.
func (e *Editor) Active() bool { return e.active }

// Target returns the cell being edited.
func (e *Editor) Target() Coord { return e.target }

// Value returns the current buffer.
func (e *Editor) Value() string { return e.input.Value() }

// Modified reports whether the buffer differs from the value it opened with.
func (e *Editor) Modified() bool { return e.input.Value() != e.initial }

// AllSelected reports whether the select-all mark is still set.
func (e *Editor) AllSelected() bool { return e.selectAll }

// Update handles one key while editing. Every key is consumed.
func (e *Editor) Update(msg tea.KeyMsg) (EditResult, tea.Cmd) {
	if !e.active {
		return EditResult{}, nil
	}

	switch {
	case key.Matches(msg, e.keys.Cancel):
		return EditResult{Action: EditCancel}, nil
	case key.Matches(msg, e.keys.Commit):
		return EditResult{Action: EditCommit, DY: 1}, nil
	case key.Matches(msg, e.keys.NextCell):
		return EditResult{Action: EditCommit, DX: 1}, nil
	case key.Matches(msg, e.keys.PrevCell):
		return EditResult{Action: EditCommit, DX: -1}, nil
	}

	if e.selectAll {
		e.selectAll = false
		switch {
		case msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace:
			e.input.SetValue("")
		case key.Matches(msg, e.keys.Clear):
			e.input.SetValue("")
			return EditResult{}, nil
		}
	}

	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return EditResult{}, cmd
}

// Forward passes non-key messages, such as cursor blinks, to the buffer.
func (e *Editor) Forward(msg tea.Msg) tea.Cmd {
	if !e.active {
		return nil
	}
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return cmd
}

// View renders the buffer into exactly width cells.
func (e *Editor) View(width int, styles Styles) string {
	if width < 1 {
		return ""
	}
	if e.selectAll {
		return styles.EditSelected.Render(fit(e.input.Value(), width))
	}
	e.input.Width = max(width-1, 1)
	return styles.Editing.Render(fit(e.input.View(), width))
}
