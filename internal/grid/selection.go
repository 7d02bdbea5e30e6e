package grid

// Coord addresses one cell. Both indices are zero-based.
type Coord struct {
	Y int
	X int
}

// Rect is a normalized selection rectangle with inclusive bounds.
type Rect struct {
	MinY, MaxY int
	MinX, MaxX int
}

// NewRect normalizes the rectangle spanned by two corners.
func NewRect(a, b Coord) Rect {
	r := Rect{MinY: a.Y, MaxY: b.Y, MinX: a.X, MaxX: b.X}
	if r.MinY > r.MaxY {
		r.MinY, r.MaxY = r.MaxY, r.MinY
	}
	if r.MinX > r.MaxX {
		r.MinX, r.MaxX = r.MaxX, r.MinX
	}
	return r
}

// Contains reports whether (y, x) lies inside the rectangle.
func (r Rect) Contains(y, x int) bool {
	return y >= r.MinY && y <= r.MaxY && x >= r.MinX && x <= r.MaxX
}

// Rows returns the number of rows spanned.
func (r Rect) Rows() int { return r.MaxY - r.MinY + 1 }

// Cols returns the number of columns spanned.
func (r Rect) Cols() int { return r.MaxX - r.MinX + 1 }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
