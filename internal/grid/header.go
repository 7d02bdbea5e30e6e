package grid

// DefaultMinColumnWidth is the narrowest a column may become, in cells.
const DefaultMinColumnWidth = 4

// DefaultColumnWidth is used for headers built from bare column names.
const DefaultColumnWidth = 16

// Header describes one column of the grid.
// The slice order is the display order; the index is the column's x.
type Header struct {
	Name  string
	Width int
}

// HeadersFromNames builds headers of equal width for the given column names.
func HeadersFromNames(names []string, width int) []Header {
	headers := make([]Header, len(names))
	for i, name := range names {
		headers[i] = Header{Name: name, Width: width}
	}
	return headers
}

// clampWidth forces w to at least minWidth. Zero and negative widths come from
// pointer glitches (a drag past the header's left edge) and become minWidth.
func clampWidth(w, minWidth int) int {
	if minWidth < 1 {
		minWidth = 1
	}
	if w < minWidth {
		return minWidth
	}
	return w
}
