package grid

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	accentColor  = lipgloss.Color("#F59E0B")
	mutedColor   = lipgloss.Color("#6B7280")
	textColor    = lipgloss.Color("#F3F4F6")
	selectColor  = lipgloss.Color("#374151")
	changeColor  = lipgloss.Color("#10B981")
)

// Styles controls how the grid paints each kind of cell.
type Styles struct {
	Header       lipgloss.Style
	HeaderLocked lipgloss.Style
	Cell         lipgloss.Style
	Null         lipgloss.Style
	Selected     lipgloss.Style
	Focused      lipgloss.Style
	ChangedCell  lipgloss.Style
	ChangedRow   lipgloss.Style
	Editing      lipgloss.Style
	EditSelected lipgloss.Style
	Separator    lipgloss.Style
	Gutter       lipgloss.Style
	Scrollbar    lipgloss.Style
	Thumb        lipgloss.Style
	Empty        lipgloss.Style
}

// DefaultStyles returns the dark theme used throughout the application.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor),
		HeaderLocked: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor),
		Cell: lipgloss.NewStyle().
			Foreground(textColor),
		Null: lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true),
		Selected: lipgloss.NewStyle().
			Background(selectColor).
			Foreground(textColor),
		Focused: lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(lipgloss.Color("#FFF")).
			Bold(true),
		ChangedCell: lipgloss.NewStyle().
			Foreground(changeColor).
			Bold(true),
		ChangedRow: lipgloss.NewStyle().
			Foreground(changeColor),
		Editing: lipgloss.NewStyle().
			Background(lipgloss.Color("#FFF")).
			Foreground(lipgloss.Color("#000")),
		EditSelected: lipgloss.NewStyle().
			Background(accentColor).
			Foreground(lipgloss.Color("#000")),
		Separator: lipgloss.NewStyle().
			Foreground(selectColor),
		Gutter: lipgloss.NewStyle().
			Foreground(changeColor),
		Scrollbar: lipgloss.NewStyle().
			Foreground(selectColor),
		Thumb: lipgloss.NewStyle().
			Foreground(mutedColor),
		Empty: lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true),
	}
}
