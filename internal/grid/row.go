package grid

// Row is one record of the Row Model.
// raw is never written after load; edits live in change, keyed by column index.
type Row struct {
	raw    []any
	change map[int]any
}

func newRow(values []any, columns int) Row {
	raw := make([]any, columns)
	copy(raw, values)
	return Row{raw: raw}
}

// value returns the effective value of column x.
func (r *Row) value(x int) any {
	if v, ok := r.change[x]; ok {
		return v
	}
	return r.raw[x]
}

func (r *Row) changed() bool {
	return len(r.change) > 0
}

func (r *Row) cellChanged(x int) bool {
	_, ok := r.change[x]
	return ok
}

// set writes v into the overlay. When v displays the same as the raw value
// the overlay entry is dropped so change only holds real differences.
func (r *Row) set(x int, v any, format Formatter) {
	if format(v) == format(r.raw[x]) && (v == nil) == (r.raw[x] == nil) {
		delete(r.change, x)
		return
	}
	if r.change == nil {
		r.change = make(map[int]any)
	}
	r.change[x] = v
}
