package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/johan-st/dbgrid/internal/database"
)

// paneLayout is the horizontal split of the window, shared by rendering
// and mouse hit testing.
type paneLayout struct {
	connWidth     int
	tableWidth    int
	dataWidth     int
	contentHeight int
}

func (l paneLayout) dataLeft() int { return l.connWidth + l.tableWidth }

func (a *App) layout() paneLayout {
	connWidth := a.calculateConnPaneWidth()
	tableWidth := a.calculateTablePaneWidth()

	// Cap side panels so the grid keeps most of the screen
	maxPanelWidth := a.width / 4
	connWidth = max(min(connWidth, maxPanelWidth), 15)
	tableWidth = max(min(tableWidth, maxPanelWidth), 12)

	return paneLayout{
		connWidth:     connWidth,
		tableWidth:    tableWidth,
		dataWidth:     max(a.width-connWidth-tableWidth, 10),
		contentHeight: max(a.height-2, 3), // command line (1) + status (1)
	}
}

// View renders the application.
func (a *App) View() string {
	if a.width < 40 || a.height < 10 {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
			errorStyle.Render("Terminal too small\nMin: 40x10"))
	}

	if a.showHelp {
		return a.renderHelp()
	}
	if a.showSchema {
		return a.renderSchema()
	}

	l := a.layout()
	var b strings.Builder

	content := lipgloss.JoinHorizontal(lipgloss.Top,
		a.renderConnPane(l.connWidth, l.contentHeight),
		a.renderTablePane(l.tableWidth, l.contentHeight),
		a.renderDataPane(l.dataWidth, l.contentHeight),
	)
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(a.renderCommandLine())
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())

	return b.String()
}

// listWindow returns the first visible item of a list with selected kept
// in view. more is set when items are scrolled off the top; the "↑ more"
// marker then takes the first line.
func listWindow(selected, visible int) (offset int, more bool) {
	if visible < 2 || selected < visible {
		return 0, false
	}
	return selected - visible + 2, true
}

// listIndex maps a clicked content line to an item index.
func listIndex(line, selected, n, visible int) (int, bool) {
	offset, more := listWindow(selected, visible)
	if more {
		line--
	}
	i := offset + line
	if line < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func (a *App) renderList(items []string, selected, width, height int) string {
	visible := max(height-2, 1)
	offset, more := listWindow(selected, visible)

	var lines []string
	if more {
		lines = append(lines, dimItemStyle.Render(" ↑ more"))
	}
	end := min(offset+visible-len(lines), len(items))
	for i := offset; i < end; i++ {
		item := truncateString(items[i], width-6)
		if i == selected {
			lines = append(lines, selectedItemStyle.Render("> "+item))
		} else {
			lines = append(lines, normalItemStyle.Render("  "+item))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderConnPane(width, height int) string {
	focused := a.focus == FocusConnections
	if len(a.connections) == 0 {
		return a.renderPaneWithTitle(dimItemStyle.Render("No connections"), width, height, "Connections", focused)
	}

	names := make([]string, len(a.connections))
	for i, c := range a.connections {
		names[i] = c.Name
	}
	return a.renderPaneWithTitle(a.renderList(names, a.selectedConn, width, height), width, height, "Connections", focused)
}

func (a *App) renderTablePane(width, height int) string {
	focused := a.focus == FocusTables
	if len(a.tables) == 0 {
		return a.renderPaneWithTitle(dimItemStyle.Render("No tables"), width, height, "Tables", focused)
	}

	names := make([]string, len(a.tables))
	for i, t := range a.tables {
		names[i] = t.Name
		if t.View {
			names[i] += " (view)"
		}
	}
	return a.renderPaneWithTitle(a.renderList(names, a.selectedTable, width, height), width, height, "Tables", focused)
}

func (a *App) renderDataPane(width, height int) string {
	focused := a.focus == FocusData
	s := a.grid.State()

	title := "Data"
	switch {
	case a.table != "":
		title = a.table
		if s.RowCount() > 0 {
			title += fmt.Sprintf(" %s-%s of %s",
				humanize.Comma(int64(a.offset+1)),
				humanize.Comma(int64(a.offset+s.RowCount())),
				humanize.Comma(a.totalRows))
		}
		if a.where != "" {
			title += " where " + a.where
		}
		if s.ReadOnly() {
			title += " [read-only]"
		}
	case a.source == "" && s.ColumnCount() > 0:
		title = "Query result"
	}
	title = truncateString(title, width-6)

	var content string
	switch {
	case a.loading && s.ColumnCount() == 0:
		content = dimItemStyle.Render("Loading...")
	case s.ColumnCount() == 0:
		content = dimItemStyle.Render("Select a table")
	default:
		content = a.grid.View()
	}
	return a.renderPaneWithTitle(content, width, height, title, focused)
}

// buildBorderTitle renders the top border with the title embedded:
// ╭─ Title ─────────────────╮
func (a *App) buildBorderTitle(width int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	style := borderTitleStyle
	if focused {
		borderColor = primaryColor
		style = focusedBorderTitleStyle
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	titleRendered := style.Render(title)
	// corner, bar, space, title, space, bars, corner
	remainingWidth := max(width-5-lipgloss.Width(titleRendered), 0)

	var b strings.Builder
	b.WriteString(borderStyle.Render(border.TopLeft + border.Top))
	b.WriteString(" ")
	b.WriteString(titleRendered)
	b.WriteString(" ")
	b.WriteString(borderStyle.Render(strings.Repeat(border.Top, remainingWidth) + border.TopRight))
	return b.String()
}

// renderPaneWithTitle renders content in a pane with a title in the top border
func (a *App) renderPaneWithTitle(content string, width, height int, title string, focused bool) string {
	border := lipgloss.RoundedBorder()
	borderColor := mutedColor
	if focused {
		borderColor = primaryColor
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	innerWidth := max(width-2, 1)
	innerHeight := max(height-2, 1)

	contentLines := strings.Split(content, "\n")
	for len(contentLines) < innerHeight {
		contentLines = append(contentLines, "")
	}
	contentLines = contentLines[:innerHeight]

	var result strings.Builder
	result.WriteString(a.buildBorderTitle(width, title, focused))
	result.WriteString("\n")

	for _, line := range contentLines {
		result.WriteString(borderStyle.Render(border.Left))
		paddedLine := " " + line
		if w := lipgloss.Width(paddedLine); w < innerWidth {
			paddedLine += strings.Repeat(" ", innerWidth-w)
		}
		result.WriteString(paddedLine)
		result.WriteString(borderStyle.Render(border.Right))
		result.WriteString("\n")
	}

	result.WriteString(borderStyle.Render(border.BottomLeft + strings.Repeat(border.Bottom, innerWidth) + border.BottomRight))
	return result.String()
}

// renderCommandLine renders the line under the panes: the SQL or filter
// input when open, otherwise the last error or status.
func (a *App) renderCommandLine() string {
	var line string
	switch {
	case a.queryActive:
		line = queryPromptStyle.Render("SQL> ") + a.queryInput.View()
	case a.filterActive:
		line = queryPromptStyle.Render("WHERE> ") + a.filterInput.View()
	case a.confirmDelete:
		line = errorStyle.Render(fmt.Sprintf("Delete %d row(s) from %s? (y/N)", len(a.pendingDelete), a.table))
	case a.err != nil:
		line = errorStyle.Render("Error: " + a.err.Error())
	case a.status != "":
		line = successStyle.Render(a.status)
	case a.loading:
		line = dimItemStyle.Render("Loading...")
	default:
		line = dimItemStyle.Render("^e sql  ^f filter  ^s save  ^z discard  ^d delete  ^y copy")
	}
	return truncateString(line, a.width)
}

func (a *App) renderStatusBar() string {
	var leftParts []string
	var rightParts []string

	leftParts = append(leftParts, titleStyle.Render("dbgrid"))
	info, ok := a.currentConnection()
	if ok {
		if info.ReadOnly {
			leftParts = append(leftParts, readOnlyBadge.Render("RO"))
		} else {
			leftParts = append(leftParts, readWriteBadge.Render("RW"))
		}
		leftParts = append(leftParts, dimItemStyle.Render(info.Driver.String()))
	}

	if ok {
		rightParts = append(rightParts, statusKeyStyle.Render(info.Name))
	}
	if a.table != "" {
		rightParts = append(rightParts, statusValueStyle.Render("> "+a.table))
	}

	s := a.grid.State()
	if c, focused := s.Focus(); focused && s.RowCount() > 0 {
		col := ""
		if h, ok := s.Header(c.X); ok {
			col = " " + h.Name
		}
		rightParts = append(rightParts, dimItemStyle.Render(fmt.Sprintf("| row %s/%s%s",
			humanize.Comma(int64(a.offset+c.Y+1)), humanize.Comma(a.totalRows), col)))
	} else if a.totalRows > 0 {
		rightParts = append(rightParts, dimItemStyle.Render(fmt.Sprintf("| %s rows", humanize.Comma(a.totalRows))))
	}
	if n := s.ChangedRowCount(); n > 0 {
		rightParts = append(rightParts, unsavedStyle.Render(fmt.Sprintf("| %d unsaved", n)))
	}
	if ok && info.Driver == database.SQLite && info.Size > 0 {
		rightParts = append(rightParts, dimItemStyle.Render("| "+humanize.Bytes(uint64(info.Size))))
	}
	rightParts = append(rightParts, dimItemStyle.Render("| f1:help q:quit"))

	leftContent := strings.Join(leftParts, " ")
	rightContent := strings.Join(rightParts, " ")

	padding := a.width - lipgloss.Width(leftContent) - lipgloss.Width(rightContent) - 2 // -2 for statusBar padding
	if padding < 1 {
		padding = 1
	}

	content := leftContent + strings.Repeat(" ", padding) + rightContent
	return statusBarStyle.Width(a.width).Render(content)
}

func (a *App) renderHelp() string {
	var b strings.Builder
	b.WriteString(paneHeaderStyle.Render("Application"))
	b.WriteString("\n")
	b.WriteString(a.help.FullHelpView(a.keys.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(paneHeaderStyle.Render("Data grid"))
	b.WriteString("\n")
	b.WriteString(a.help.FullHelpView(a.grid.KeyMap().FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(dimItemStyle.Render("Press F1 or Esc to close"))

	modal := modalStyle.Render(titleStyle.Render("Help") + "\n\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

func (a *App) renderSchema() string {
	var b strings.Builder

	if a.structure == nil {
		b.WriteString(dimItemStyle.Render("No table selected"))
	} else {
		b.WriteString(paneHeaderStyle.Render(a.structure.Table))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Rows: %s\n\n", humanize.Comma(a.totalRows)))
		for _, col := range a.structure.Columns {
			b.WriteString(database.DescribeColumn(col))
			b.WriteString("\n")
		}
		if len(a.structure.PrimaryKey) > 1 {
			b.WriteString(dimItemStyle.Render("\nComposite primary key: read-only"))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimItemStyle.Render("Press Esc to close"))

	modal := modalStyle.Render(titleStyle.Render("Schema") + "\n\n" + b.String())
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

// truncateString truncates a (possibly styled) string to maxLen cells,
// adding an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= maxLen {
		return s
	}
	return ansi.Truncate(s, maxLen, "…")
}

// calculateConnPaneWidth returns the width needed for the connections panel
// based on the longest name, plus space for "> " prefix and borders
func (a *App) calculateConnPaneWidth() int {
	maxLen := 11 // "Connections" header length
	for _, c := range a.connections {
		maxLen = max(maxLen, runewidth.StringWidth(c.Name))
	}
	// +2 for "> " prefix, +2 for horizontal padding, +2 for borders, +1 extra
	return maxLen + 7
}

// calculateTablePaneWidth returns the width needed for the tables panel
// based on the longest table name, plus space for "> " prefix and borders
func (a *App) calculateTablePaneWidth() int {
	maxLen := 6 // "Tables" header length
	for _, t := range a.tables {
		n := runewidth.StringWidth(t.Name)
		if t.View {
			n += 7
		}
		maxLen = max(maxLen, n)
	}
	return maxLen + 7
}
