package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the TUI. Grid navigation and editing
// keys live in grid.KeyMap; the actions here are control keys so they work
// while the data pane has focus.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	NextPane key.Binding
	PrevPane key.Binding
	Select   key.Binding
	Back     key.Binding

	// Data
	NextPage key.Binding
	PrevPage key.Binding
	Filter   key.Binding
	Save     key.Binding
	Discard  key.Binding
	Delete   key.Binding
	Copy     key.Binding
	Refresh  key.Binding

	// SQL bar
	Query   key.Binding
	Explain key.Binding

	// General
	Schema key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left pane"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right pane"),
		),
		NextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		PrevPane: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev pane"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("^n", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("^b", "prev page"),
		),
		Filter: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("^f", "filter"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("^s", "save changes"),
		),
		Discard: key.NewBinding(
			key.WithKeys("ctrl+z"),
			key.WithHelp("^z", "discard changes"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("^d", "delete rows"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("^y", "copy selection"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("^r", "refresh"),
		),
		Query: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("^e", "sql"),
		),
		Explain: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("^x", "explain"),
		),
		Schema: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("^t", "schema"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1", "?"),
			key.WithHelp("f1/?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.NextPane, k.PrevPane, k.Select, k.Back},
		{k.NextPage, k.PrevPage, k.Filter, k.Refresh, k.Copy},
		{k.Save, k.Discard, k.Delete},
		{k.Query, k.Explain, k.Schema, k.Help, k.Quit},
	}
}
