package grid

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func openEditor(value string) *Editor {
	e := NewEditor(DefaultKeyMap())
	e.Open(Coord{Y: 1, X: 2}, value)
	return &e
}

func TestEditorFirstKeyReplacesValue(t *testing.T) {
	e := openEditor("hello")
	if !e.AllSelected() {
		t.Fatal("editor did not open with everything selected")
	}

	e.Update(runes("x"))
	e.Update(runes("y"))

	if got := e.Value(); got != "xy" {
		t.Errorf("Value() = %q, want %q", got, "xy")
	}
}

func TestEditorSpaceReplacesValue(t *testing.T) {
	e := openEditor("hello")
	e.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if got := e.Value(); got != " " {
		t.Errorf("Value() = %q, want a single space", got)
	}
}

func TestEditorBackspaceClearsSelection(t *testing.T) {
	e := openEditor("hello")
	e.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if got := e.Value(); got != "" {
		t.Errorf("Value() = %q, want empty", got)
	}
}

func TestEditorCursorMoveKeepsValue(t *testing.T) {
	e := openEditor("hello")
	e.Update(tea.KeyMsg{Type: tea.KeyLeft})
	e.Update(runes("x"))

	if got := e.Value(); got != "hellxo" {
		t.Errorf("Value() = %q, want %q", got, "hellxo")
	}
}

func TestEditorKeys(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want EditResult
	}{
		{"enter commits down", tea.KeyMsg{Type: tea.KeyEnter}, EditResult{Action: EditCommit, DY: 1}},
		{"tab commits right", tea.KeyMsg{Type: tea.KeyTab}, EditResult{Action: EditCommit, DX: 1}},
		{"shift+tab commits left", tea.KeyMsg{Type: tea.KeyShiftTab}, EditResult{Action: EditCommit, DX: -1}},
		{"esc cancels", tea.KeyMsg{Type: tea.KeyEscape}, EditResult{Action: EditCancel}},
		{"arrow is swallowed", tea.KeyMsg{Type: tea.KeyDown}, EditResult{}},
		{"rune is typed", runes("a"), EditResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := openEditor("v")
			got, _ := e.Update(tt.msg)
			if got != tt.want {
				t.Errorf("Update(%s) = %+v, want %+v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestEditorModified(t *testing.T) {
	e := openEditor("same")
	if e.Modified() {
		t.Error("Modified() = true right after Open")
	}
	e.Update(runes("other"))
	if !e.Modified() {
		t.Error("Modified() = false after typing")
	}
}

func TestEditorClose(t *testing.T) {
	e := openEditor("value")
	e.Close()
	if e.Active() {
		t.Error("Active() = true after Close")
	}
	if res, _ := e.Update(tea.KeyMsg{Type: tea.KeyEnter}); res.Action != EditPending {
		t.Errorf("closed editor returned %+v", res)
	}
}

func TestEditorViewWidth(t *testing.T) {
	e := openEditor("a value longer than the cell")
	st := DefaultStyles()
	for _, w := range []int{1, 5, 12} {
		if got := visibleWidth(e.View(w, st)); got != w {
			t.Errorf("View(%d) width = %d", w, got)
		}
	}
}
