package grid

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// DefaultFrameInterval is how long wheel scrolling is coalesced before
	// the window is recomputed.
	DefaultFrameInterval = 16 * time.Millisecond
	// DefaultDoubleClick is the longest gap between two presses on the same
	// cell that still counts as a double click.
	DefaultDoubleClick = 400 * time.Millisecond
	// DefaultOverscan is the number of extra rows and columns rendered on
	// each side of the viewport.
	DefaultOverscan = 2

	wheelStep   = 3
	gutterWidth = 1
)

// Config holds the tunables of the grid component.
type Config struct {
	RowHeight     int
	Overscan      int
	FrameInterval time.Duration
	DoubleClick   time.Duration
	KeyMap        KeyMap
	Styles        Styles
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RowHeight:     1,
		Overscan:      DefaultOverscan,
		FrameInterval: DefaultFrameInterval,
		DoubleClick:   DefaultDoubleClick,
		KeyMap:        DefaultKeyMap(),
		Styles:        DefaultStyles(),
	}
}

var gridIDs atomic.Int64

// frameMsg asks a grid to recompute its window after coalesced scrolling.
type frameMsg struct{ id int64 }

type cacheKey struct {
	revision uint64
	viewport Viewport
}

// Grid is the bubbletea component that renders a State. Only the rows and
// columns inside the current window are rendered.
type Grid struct {
	id          int64
	state       *State
	unsubscribe func()
	cfg         Config
	editor      Editor
	interaction *Interaction

	width, height         int
	scrollTop, scrollLeft int

	layout    Layout
	layoutRev uint64
	hasLayout bool
	window    Window
	key       cacheKey
	computed  bool
	frames    int

	framePending bool
	focused      bool

	lastClick     time.Time
	lastClickCell Coord
	now           func() time.Time
}

// New returns a grid component showing s.
func New(s *State, cfg Config) *Grid {
	if cfg.RowHeight < 1 {
		cfg.RowHeight = 1
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.DoubleClick <= 0 {
		cfg.DoubleClick = DefaultDoubleClick
	}
	g := &Grid{
		id:     gridIDs.Add(1),
		cfg:    cfg,
		editor: NewEditor(cfg.KeyMap),
		now:    time.Now,
	}
	g.attach(s)
	return g
}

func (g *Grid) attach(s *State) {
	g.state = s
	g.interaction = NewInteraction(s)
	g.unsubscribe = s.Subscribe(g.onEvent)
	g.scrollTop, g.scrollLeft = 0, 0
	g.computed = false
	g.hasLayout = false
}

func (g *Grid) onEvent(ev Event) {
	switch ev.Kind {
	case EventReloaded:
		g.interaction.Abort()
		g.editor.Close()
		g.scrollTop, g.scrollLeft = 0, 0
	case EventEditEnded:
		if !g.state.IsEditing() {
			g.editor.Close()
		}
	}
}

// SetState replaces the grid's state. The open edit and any drag are
// dropped; nothing of the old state reaches the new one.
func (g *Grid) SetState(s *State) {
	g.interaction.Abort()
	g.editor.Close()
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
	g.attach(s)
	g.ensureWindow()
}

// Close detaches the grid from its state.
func (g *Grid) Close() {
	g.interaction.Abort()
	g.editor.Close()
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
}

// State returns the state being rendered.
func (g *Grid) State() *State { return g.state }

// KeyMap returns the grid bindings, for help views.
func (g *Grid) KeyMap() KeyMap { return g.cfg.KeyMap }

// Window returns the window used by the last render.
func (g *Grid) Window() Window { return g.window }

// Frames returns how many times the window has been recomputed.
func (g *Grid) Frames() int { return g.frames }

// Scroll returns the current scroll offsets.
func (g *Grid) Scroll() (top, left int) { return g.scrollTop, g.scrollLeft }

// Editing reports whether the cell editor is mounted.
func (g *Grid) Editing() bool { return g.editor.Active() }

// Focused reports whether the grid has keyboard focus.
func (g *Grid) Focused() bool { return g.focused }

// Focus gives the grid keyboard focus.
func (g *Grid) Focus() { g.focused = true }

// Blur removes keyboard focus. An open edit is committed in place.
func (g *Grid) Blur() {
	g.focused = false
	g.interaction.Abort()
	g.commitEdit()
}

// SetSize sets the outer size of the grid, scrollbars included.
func (g *Grid) SetSize(width, height int) {
	if width == g.width && height == g.height {
		return
	}
	g.width, g.height = width, height
	g.interaction.Abort()
	g.clampScroll()
	g.ensureWindow()
}

// SetOverscan changes how many rows and columns are rendered off screen.
func (g *Grid) SetOverscan(n int) {
	g.cfg.Overscan = max(n, 0)
	g.ensureWindow()
}

// SetFrameInterval changes the wheel coalescing interval.
func (g *Grid) SetFrameInterval(d time.Duration) {
	if d > 0 {
		g.cfg.FrameInterval = d
	}
}

// SetDoubleClick changes the double click window.
func (g *Grid) SetDoubleClick(d time.Duration) {
	if d > 0 {
		g.cfg.DoubleClick = d
	}
}

func (g *Grid) bodyWidth() int  { return max(g.width-gutterWidth-1, 0) }
func (g *Grid) bodyHeight() int { return max(g.height-2, 0) }

// PageRows returns how many rows fit in the body.
func (g *Grid) PageRows() int {
	return max(g.bodyHeight()/g.cfg.RowHeight, 1)
}

func (g *Grid) viewport() Viewport {
	return Viewport{
		ScrollTop:  g.scrollTop,
		ScrollLeft: g.scrollLeft,
		Height:     g.bodyHeight(),
		Width:      g.bodyWidth(),
		RowHeight:  g.cfg.RowHeight,
		RowCount:   g.state.RowCount(),
		Overscan:   g.cfg.Overscan,
	}
}

// ensureWindow recomputes the window when the state revision, the size or
// the scroll offsets changed since the last computation.
func (g *Grid) ensureWindow() {
	k := cacheKey{revision: g.state.Revision(), viewport: g.viewport()}
	if g.computed && k == g.key {
		return
	}
	g.refreshLayout()
	g.window = Compute(k.viewport, g.layout)
	g.scrollTop, g.scrollLeft = g.window.ScrollTop, g.window.ScrollLeft
	k.viewport.ScrollTop, k.viewport.ScrollLeft = g.scrollTop, g.scrollLeft
	g.key = k
	g.computed = true
	g.frames++
}

// refreshLayout rebuilds the column prefix sums after the state changed.
func (g *Grid) refreshLayout() {
	if g.hasLayout && g.layoutRev == g.state.Revision() {
		return
	}
	g.layout = NewLayout(g.state.ColumnWidths())
	g.layoutRev = g.state.Revision()
	g.hasLayout = true
}

func (g *Grid) totalWidth() int {
	g.refreshLayout()
	return g.layout.TotalWidth()
}

func (g *Grid) clampScroll() {
	g.scrollTop = clamp(g.scrollTop, 0, max(g.state.RowCount()*g.cfg.RowHeight-g.bodyHeight(), 0))
	g.scrollLeft = clamp(g.scrollLeft, 0, max(g.totalWidth()-g.bodyWidth(), 0))
}

// scrollBy moves the scroll offsets and schedules one frame. Further
// scrolling before the frame fires only accumulates.
func (g *Grid) scrollBy(dy, dx int) tea.Cmd {
	g.scrollTop += dy
	g.scrollLeft += dx
	g.clampScroll()
	if g.framePending {
		return nil
	}
	g.framePending = true
	id := g.id
	return tea.Tick(g.cfg.FrameInterval, func(time.Time) tea.Msg {
		return frameMsg{id: id}
	})
}

// ScrollToFocus scrolls the smallest distance that shows the focused cell.
func (g *Grid) ScrollToFocus() {
	c, ok := g.state.Focus()
	if !ok {
		return
	}
	rh := g.cfg.RowHeight
	g.scrollTop = ScrollIntoView(g.scrollTop, g.bodyHeight(), c.Y*rh, rh)
	g.refreshLayout()
	g.scrollLeft = ScrollIntoView(g.scrollLeft, g.bodyWidth(), g.layout.Left(c.X), g.layout.Width(c.X))
	g.clampScroll()
	g.ensureWindow()
}

// Update handles key, mouse and frame messages.
func (g *Grid) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case frameMsg:
		if msg.id != g.id {
			return nil
		}
		g.framePending = false
		g.ensureWindow()
		return nil
	case tea.KeyMsg:
		_, cmd := g.HandleKey(msg)
		return cmd
	case tea.MouseMsg:
		return g.HandleMouse(msg)
	default:
		return g.editor.Forward(msg)
	}
}

// HandleKey applies a key to the grid. handled is false for keys the grid
// has no use for, so the caller can treat them as global shortcuts. Plain
// text is always handled.
func (g *Grid) HandleKey(msg tea.KeyMsg) (handled bool, cmd tea.Cmd) {
	if g.editor.Active() {
		return true, g.handleEditKey(msg)
	}

	s := g.state
	km := g.cfg.KeyMap
	switch {
	case key.Matches(msg, km.Up):
		s.MoveFocus(-1, 0)
	case key.Matches(msg, km.Down):
		s.MoveFocus(1, 0)
	case key.Matches(msg, km.Left):
		s.MoveFocus(0, -1)
	case key.Matches(msg, km.Right):
		s.MoveFocus(0, 1)
	case key.Matches(msg, km.PageUp):
		s.MoveFocus(-g.PageRows(), 0)
	case key.Matches(msg, km.PageDown):
		s.MoveFocus(g.PageRows(), 0)
	case key.Matches(msg, km.Home):
		c, _ := s.Focus()
		s.SetFocus(0, c.X)
	case key.Matches(msg, km.End):
		c, _ := s.Focus()
		s.SetFocus(s.RowCount()-1, c.X)
	case key.Matches(msg, km.ExtendUp):
		g.extend(-1, 0)
	case key.Matches(msg, km.ExtendDown):
		g.extend(1, 0)
	case key.Matches(msg, km.ExtendLeft):
		g.extend(0, -1)
	case key.Matches(msg, km.ExtendRight):
		g.extend(0, 1)
	case key.Matches(msg, km.Edit):
		return true, g.startEdit()
	case (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace) && !msg.Alt:
		// Text typed at a cell that can't take it is dropped, never
		// passed on as a shortcut.
		if c, ok := s.Focus(); !ok || !s.CanEdit(c.Y, c.X) {
			return true, nil
		}
		cmd := g.startEdit()
		_, fwd := g.editor.Update(msg)
		return true, tea.Batch(cmd, fwd)
	default:
		return false, nil
	}
	g.ScrollToFocus()
	return true, nil
}

func (g *Grid) extend(dy, dx int) {
	c, ok := g.state.SelectionCorner()
	if !ok {
		g.state.MoveFocus(0, 0)
		c, _ = g.state.SelectionCorner()
	}
	g.state.SetSelection(c.Y+dy, c.X+dx)
}

func (g *Grid) handleEditKey(msg tea.KeyMsg) tea.Cmd {
	res, cmd := g.editor.Update(msg)
	switch res.Action {
	case EditCommit:
		g.commitEdit()
		if res.DY != 0 || res.DX != 0 {
			g.state.MoveFocus(res.DY, res.DX)
		}
		g.ScrollToFocus()
	case EditCancel:
		g.cancelEdit()
	}
	return cmd
}

// startEdit opens the editor on the focused cell.
func (g *Grid) startEdit() tea.Cmd {
	if !g.state.EnterEditMode() {
		return nil
	}
	return g.openEditor()
}

// startEditAt opens the editor on (y, x). An edit on another cell is
// committed first.
func (g *Grid) startEditAt(y, x int) tea.Cmd {
	if g.editor.Active() {
		t := g.editor.Target()
		if t.Y == y && t.X == x {
			return nil
		}
		g.commitEdit()
	}
	if !g.state.EnterEditModeAt(y, x) {
		return nil
	}
	return g.openEditor()
}

func (g *Grid) openEditor() tea.Cmd {
	t, _ := g.state.EditTarget()
	g.ScrollToFocus()
	v, _ := g.state.Value(t.Y, t.X)
	text := ""
	if v != nil {
		text = g.state.Format(v)
	}
	return g.editor.Open(t, text)
}

// commitEdit writes the buffer into the edit target and leaves edit mode.
// An untouched buffer writes nothing.
func (g *Grid) commitEdit() {
	if !g.editor.Active() {
		return
	}
	t := g.editor.Target()
	value := g.editor.Value()
	modified := g.editor.Modified()
	g.editor.Close()
	if modified && g.state.IsEditingCell(t.Y, t.X) {
		g.state.ChangeValue(t.Y, t.X, value)
	}
	g.state.ExitEditMode()
}

func (g *Grid) cancelEdit() {
	g.editor.Close()
	g.state.ExitEditMode()
}

// CommitEdit commits an open edit without moving focus.
func (g *Grid) CommitEdit() { g.commitEdit() }

// CancelEdit drops an open edit.
func (g *Grid) CancelEdit() { g.cancelEdit() }
