package grid

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// hit is a pointer position translated into grid coordinates.
type hit struct {
	header bool
	body   bool
	row    int
	col    int
	// offset is the pointer's x inside the full, unscrolled grid.
	offset int
}

// hitTest maps a pointer position, relative to the grid's top-left corner,
// onto a header cell or a body cell. It uses the offsets of the painted
// window, which trail the scroll offsets while a frame is pending.
func (g *Grid) hitTest(x, y int) hit {
	h := hit{row: -1, col: -1}
	cx := x - gutterWidth
	if cx < 0 || cx >= g.bodyWidth() {
		return h
	}
	h.offset = g.window.ScrollLeft + cx
	h.col = g.layout.ColumnAt(h.offset)

	switch {
	case y == 0:
		h.header = true
	case y >= 1 && y <= g.bodyHeight():
		row := (g.window.ScrollTop + y - 1) / g.cfg.RowHeight
		if row < g.state.RowCount() {
			h.body = true
			h.row = row
		}
	}
	return h
}

// onBoundary reports whether offset is on the right edge of column x, where
// the header draws its separator.
func (g *Grid) onBoundary(x, offset int) bool {
	if x < 0 {
		return false
	}
	return offset == g.layout.Left(x)+g.layout.Width(x)-1
}

// HandleMouse applies a mouse event. Coordinates must be relative to the
// grid's top-left corner.
func (g *Grid) HandleMouse(msg tea.MouseMsg) tea.Cmd {
	g.refreshLayout()

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if msg.Shift {
			return g.scrollBy(0, -wheelStep)
		}
		return g.scrollBy(-wheelStep*g.cfg.RowHeight, 0)
	case tea.MouseButtonWheelDown:
		if msg.Shift {
			return g.scrollBy(0, wheelStep)
		}
		return g.scrollBy(wheelStep*g.cfg.RowHeight, 0)
	case tea.MouseButtonWheelLeft:
		return g.scrollBy(0, -wheelStep)
	case tea.MouseButtonWheelRight:
		return g.scrollBy(0, wheelStep)
	}

	switch msg.Action {
	case tea.MouseActionRelease:
		g.interaction.End()
		return nil
	case tea.MouseActionMotion:
		return g.handleDrag(msg)
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return nil
		}
		return g.handlePress(msg)
	}
	return nil
}

func (g *Grid) handlePress(msg tea.MouseMsg) tea.Cmd {
	h := g.hitTest(msg.X, msg.Y)

	if h.header {
		if g.onBoundary(h.col, h.offset) {
			g.commitEdit()
			// The separator is the column's last cell, so the pointer
			// sitting on it must map to the current width.
			edge := g.layout.Left(h.col) - g.window.ScrollLeft + gutterWidth - 1
			g.interaction.BeginResize(h.col, edge, msg.X)
		}
		return nil
	}
	if !h.body || h.col < 0 {
		return nil
	}

	if g.editor.Active() {
		t := g.editor.Target()
		if t.Y == h.row && t.X == h.col {
			return nil
		}
		g.commitEdit()
	}

	now := g.now()
	double := h.row == g.lastClickCell.Y && h.col == g.lastClickCell.X &&
		!g.lastClick.IsZero() && now.Sub(g.lastClick) <= g.cfg.DoubleClick
	g.lastClick = now
	g.lastClickCell = Coord{Y: h.row, X: h.col}

	if double {
		g.lastClick = time.Time{}
		g.interaction.Abort()
		return g.startEditAt(h.row, h.col)
	}

	if msg.Shift {
		g.state.SetSelection(h.row, h.col)
	} else {
		g.state.SetFocus(h.row, h.col)
	}
	g.interaction.BeginSelect(msg.X)
	if g.framePending {
		// The pending scroll may have moved past the clicked cell.
		g.ScrollToFocus()
		return nil
	}
	g.ensureWindow()
	return nil
}

func (g *Grid) handleDrag(msg tea.MouseMsg) tea.Cmd {
	switch {
	case g.interaction.Resizing():
		g.interaction.Resize(msg.X)
		g.clampScroll()
		g.ensureWindow()
	case g.interaction.Selecting():
		if msg.Button != tea.MouseButtonLeft {
			g.interaction.Abort()
			return nil
		}
		top := g.window.ScrollTop
		row := (top + msg.Y - 1) / g.cfg.RowHeight
		if msg.Y < 1 {
			row = top/g.cfg.RowHeight - 1
		}
		offset := g.window.ScrollLeft + msg.X - gutterWidth
		col := g.layout.ColumnAt(offset)
		if col < 0 {
			if offset < 0 {
				col = 0
			} else {
				col = g.state.ColumnCount() - 1
			}
		}
		g.interaction.Select(row, col)
		g.ensureWindow()
	}
	return nil
}
