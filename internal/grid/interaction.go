package grid

// DragKind identifies what a pointer drag is doing.
type DragKind int

const (
	DragNone DragKind = iota
	DragResize
	DragSelect
)

func (k DragKind) String() string {
	switch k {
	case DragResize:
		return "resize"
	case DragSelect:
		return "select"
	default:
		return "none"
	}
}

// Drag describes an active drag. HeaderLeft is the x just left of the column
// being resized, in the same coordinate space as pointer x, so that
// pointerX-HeaderLeft is the width that ends under the pointer.
type Drag struct {
	Kind       DragKind
	Column     int
	StartX     int
	HeaderLeft int
}

// Interaction tracks pointer drags over one State. It is Idle until a Begin
// call and returns to Idle on End or Abort. It holds no state beyond the
// current drag, so dropping an Interaction cannot leave anything behind.
type Interaction struct {
	state *State
	drag  Drag
}

// NewInteraction returns an idle controller for s.
func NewInteraction(s *State) *Interaction {
	return &Interaction{state: s}
}

// Idle reports whether no drag is in progress.
func (in *Interaction) Idle() bool { return in.drag.Kind == DragNone }

// Drag returns the active drag.
func (in *Interaction) Drag() Drag { return in.drag }

// Resizing reports whether a column resize is in progress.
func (in *Interaction) Resizing() bool { return in.drag.Kind == DragResize }

// Selecting reports whether a selection drag is in progress.
func (in *Interaction) Selecting() bool { return in.drag.Kind == DragSelect }

// BeginResize starts resizing column x. Any previous drag is dropped.
func (in *Interaction) BeginResize(x, headerLeft, pointerX int) {
	if x < 0 || x >= in.state.ColumnCount() {
		in.Abort()
		return
	}
	in.drag = Drag{Kind: DragResize, Column: x, StartX: pointerX, HeaderLeft: headerLeft}
}

// BeginSelect starts a selection drag.
func (in *Interaction) BeginSelect(pointerX int) {
	in.drag = Drag{Kind: DragSelect, Column: -1, StartX: pointerX}
}

// Resize applies a pointer move to the active resize. The new width is the
// distance from HeaderLeft to the pointer; State clamps it.
func (in *Interaction) Resize(pointerX int) bool {
	if in.drag.Kind != DragResize {
		return false
	}
	in.state.SetHeaderWidth(in.drag.Column, pointerX-in.drag.HeaderLeft)
	return true
}

// Select applies a pointer move to the active selection drag.
func (in *Interaction) Select(y, x int) bool {
	if in.drag.Kind != DragSelect {
		return false
	}
	in.state.SetSelection(y, x)
	return true
}

// End finishes the current drag.
func (in *Interaction) End() { in.drag = Drag{} }

// Abort cancels the current drag. Safe to call at any time.
func (in *Interaction) Abort() { in.drag = Drag{} }
