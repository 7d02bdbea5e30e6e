package grid

import "sort"

// Viewport is the visible region of the grid body and what it scrolls over.
// All lengths are in cells; RowHeight is the height of one data row.
type Viewport struct {
	ScrollTop  int
	ScrollLeft int
	Height     int
	Width      int
	RowHeight  int
	RowCount   int
	Overscan   int
}

// Layout holds the left edge of every column as prefix sums of the widths.
// prefix[i] is the left edge of column i; prefix[len] is the total width.
type Layout struct {
	prefix []int
}

// NewLayout builds the prefix sums for the given widths.
func NewLayout(widths []int) Layout {
	prefix := make([]int, len(widths)+1)
	for i, w := range widths {
		prefix[i+1] = prefix[i] + w
	}
	return Layout{prefix: prefix}
}

// Columns returns the number of columns.
func (l Layout) Columns() int { return max(len(l.prefix)-1, 0) }

// TotalWidth returns the sum of all column widths.
func (l Layout) TotalWidth() int {
	if len(l.prefix) == 0 {
		return 0
	}
	return l.prefix[len(l.prefix)-1]
}

// Left returns the left edge of column x.
func (l Layout) Left(x int) int {
	if len(l.prefix) == 0 {
		return 0
	}
	return l.prefix[clamp(x, 0, len(l.prefix)-1)]
}

// Width returns the width of column x, or 0 out of range.
func (l Layout) Width(x int) int {
	if x < 0 || x >= l.Columns() {
		return 0
	}
	return l.prefix[x+1] - l.prefix[x]
}

// ColumnAt returns the column that contains offset, or -1 when offset lies
// outside every column.
func (l Layout) ColumnAt(offset int) int {
	n := l.Columns()
	if n <= 0 || offset < 0 || offset >= l.TotalWidth() {
		return -1
	}
	return sort.Search(n, func(i int) bool { return l.prefix[i+1] > offset })
}

// Window is the slice of rows and columns that must be rendered.
// Ranges are half-open: [RowStart, RowEnd) and [ColStart, ColEnd).
type Window struct {
	RowStart, RowEnd int
	ColStart, ColEnd int

	// PaddingTop and PaddingLeft are the offsets of the first rendered
	// row and column inside the full grid.
	PaddingTop  int
	PaddingLeft int

	TotalHeight int
	TotalWidth  int

	// ScrollTop and ScrollLeft are the input offsets after clamping.
	ScrollTop  int
	ScrollLeft int
}

// Rows returns the number of rows in the window.
func (w Window) Rows() int { return w.RowEnd - w.RowStart }

// Cols returns the number of columns in the window.
func (w Window) Cols() int { return w.ColEnd - w.ColStart }

// ContainsRow reports whether row y is rendered.
func (w Window) ContainsRow(y int) bool { return y >= w.RowStart && y < w.RowEnd }

// ContainsCol reports whether column x is rendered.
func (w Window) ContainsCol(x int) bool { return x >= w.ColStart && x < w.ColEnd }

// Compute returns the window of rows and columns that intersect the
// viewport, widened by the overscan and clamped to the grid.
func Compute(vp Viewport, layout Layout) Window {
	rh := vp.RowHeight
	if rh < 1 {
		rh = 1
	}
	rows := max(vp.RowCount, 0)
	height := max(vp.Height, 0)
	width := max(vp.Width, 0)
	overscan := max(vp.Overscan, 0)

	w := Window{
		TotalHeight: rows * rh,
		TotalWidth:  layout.TotalWidth(),
	}
	w.ScrollTop = clamp(vp.ScrollTop, 0, max(w.TotalHeight-height, 0))
	w.ScrollLeft = clamp(vp.ScrollLeft, 0, max(w.TotalWidth-width, 0))

	if rows > 0 && height > 0 {
		first := w.ScrollTop / rh
		last := (w.ScrollTop + height + rh - 1) / rh
		w.RowStart = clamp(first-overscan, 0, rows)
		w.RowEnd = clamp(last+overscan, 0, rows)
	}
	w.PaddingTop = w.RowStart * rh

	cols := layout.Columns()
	if cols > 0 && width > 0 {
		left := w.ScrollLeft
		right := left + width
		first := sort.Search(cols, func(i int) bool { return layout.prefix[i+1] > left })
		last := sort.Search(cols, func(i int) bool { return layout.prefix[i] >= right })
		w.ColStart = clamp(first-overscan, 0, cols)
		w.ColEnd = clamp(last+overscan, 0, cols)
	}
	w.PaddingLeft = layout.Left(w.ColStart)
	return w
}

// ScrollIntoView returns the smallest offset change that makes the span
// [start, start+size) visible inside a viewport of length view at offset.
func ScrollIntoView(offset, view, start, size int) int {
	if view <= 0 {
		return offset
	}
	end := start + size
	if start < offset {
		return start
	}
	if end > offset+view {
		if size >= view {
			return start
		}
		return end - view
	}
	return offset
}
