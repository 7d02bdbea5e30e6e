package grid

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

const (
	separator = "│"
	ellipsis  = "…"
)

var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// fitPlain pads or truncates plain text to exactly width cells.
func fitPlain(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = flatten.Replace(s)
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, ellipsis)
	}
	return runewidth.FillRight(s, width)
}

// fit pads or truncates styled text to exactly width cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "")
	}
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// scrollThumb returns the start and length of a scrollbar thumb on a track
// of the given length, for content of size total scrolled to offset.
// size is 0 when everything fits.
func scrollThumb(track, total, offset int) (start, size int) {
	if track <= 0 || total <= track {
		return 0, 0
	}
	size = max(track*track/total, 1)
	start = (track - size) * offset / (total - track)
	return clamp(start, 0, track-size), size
}

// View renders the header, the windowed rows and both scrollbars.
func (g *Grid) View() string {
	if g.width <= 0 || g.height <= 0 {
		return ""
	}
	if !g.framePending {
		g.ensureWindow()
	}

	st := g.cfg.Styles
	if g.state.ColumnCount() == 0 {
		return lipgloss.Place(g.width, g.height, lipgloss.Center, lipgloss.Center, st.Empty.Render("No columns"))
	}

	bodyW, bodyH := g.bodyWidth(), g.bodyHeight()
	w := g.window
	vStart, vSize := scrollThumb(bodyH, w.TotalHeight, w.ScrollTop)

	lines := make([]string, 0, g.height)
	lines = append(lines, " "+g.crop(g.renderHeader(), bodyW)+" ")

	for i := 0; i < bodyH; i++ {
		var b strings.Builder
		offset := w.ScrollTop + i
		y := offset / g.cfg.RowHeight
		if y < g.state.RowCount() && w.ContainsRow(y) {
			if g.state.IsRowChanged(y) {
				b.WriteString(st.Gutter.Render("▌"))
			} else {
				b.WriteString(" ")
			}
			b.WriteString(g.crop(g.renderRow(y, offset%g.cfg.RowHeight == 0), bodyW))
		} else {
			b.WriteString(strings.Repeat(" ", gutterWidth+bodyW))
		}
		switch {
		case vSize == 0:
			b.WriteString(" ")
		case i >= vStart && i < vStart+vSize:
			b.WriteString(st.Thumb.Render("┃"))
		default:
			b.WriteString(st.Scrollbar.Render("│"))
		}
		lines = append(lines, b.String())
	}

	if g.height > 1 {
		lines = append(lines, " "+g.renderHScroll(bodyW)+" ")
	}
	if g.state.RowCount() == 0 && bodyH > 0 {
		lines[1] = " " + fit(st.Empty.Render("No rows"), bodyW) + " "
	}
	return strings.Join(lines, "\n")
}

// crop cuts an assembled window line, which starts at PaddingLeft, down to
// the visible span. Cells partly scrolled off are cut mid-cell.
func (g *Grid) crop(line string, width int) string {
	offset := g.window.ScrollLeft - g.window.PaddingLeft
	return fit(ansi.Cut(line, offset, offset+width), width)
}

func (g *Grid) renderHeader() string {
	st := g.cfg.Styles
	var b strings.Builder
	for x := g.window.ColStart; x < g.window.ColEnd; x++ {
		h := g.state.headers[x]
		style := st.Header
		if !g.state.IsColumnEditable(x) {
			style = st.HeaderLocked
		}
		b.WriteString(style.Render(fitPlain(h.Name, h.Width-1)))
		b.WriteString(st.Separator.Render(separator))
	}
	return b.String()
}

func (g *Grid) renderRow(y int, first bool) string {
	st := g.cfg.Styles
	var b strings.Builder
	for x := g.window.ColStart; x < g.window.ColEnd; x++ {
		width := g.state.headers[x].Width - 1
		if first && g.editor.Active() && g.state.IsEditingCell(y, x) {
			b.WriteString(g.editor.View(width, st))
			b.WriteString(st.Separator.Render(separator))
			continue
		}

		v, _ := g.state.Value(y, x)
		text := ""
		if first {
			text = g.state.Format(v)
		}

		style := g.cellStyle(y, x, v)
		b.WriteString(style.Render(fitPlain(text, width)))
		b.WriteString(st.Separator.Render(separator))
	}
	return b.String()
}

// cellStyle picks the style of cell (y, x). Focus and selection set the
// background; an unsaved change keeps its foreground on top of either.
func (g *Grid) cellStyle(y, x int, v any) lipgloss.Style {
	st := g.cfg.Styles
	var base lipgloss.Style
	switch {
	case g.state.IsFocused(y, x) && g.focused:
		base = st.Focused
	case g.state.IsCellSelected(y, x):
		base = st.Selected
	case g.state.IsCellChanged(y, x):
		return st.ChangedCell
	case g.state.IsRowChanged(y):
		return st.ChangedRow
	case v == nil:
		return st.Null
	default:
		return st.Cell
	}

	switch {
	case g.state.IsCellChanged(y, x):
		return base.
			Foreground(st.ChangedCell.GetForeground()).
			Bold(st.ChangedCell.GetBold())
	case g.state.IsRowChanged(y):
		return base.Foreground(st.ChangedRow.GetForeground())
	}
	return base
}

func (g *Grid) renderHScroll(width int) string {
	st := g.cfg.Styles
	start, size := scrollThumb(width, g.window.TotalWidth, g.window.ScrollLeft)
	if size == 0 {
		return strings.Repeat(" ", width)
	}
	return st.Scrollbar.Render(strings.Repeat("─", start)) +
		st.Thumb.Render(strings.Repeat("━", size)) +
		st.Scrollbar.Render(strings.Repeat("─", width-start-size))
}
