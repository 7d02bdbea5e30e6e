package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"

	"github.com/johan-st/dbgrid/internal/config"
	"github.com/johan-st/dbgrid/internal/database"
	"github.com/johan-st/dbgrid/internal/grid"
	"github.com/johan-st/dbgrid/internal/history"
)

// Focus represents which pane is focused
type Focus int

const (
	FocusConnections Focus = iota
	FocusTables
	FocusData
)

const (
	queryTimeout = 30 * time.Second
	historySize  = 100 // queries kept for the SQL bar
	sizeSample   = 100 // rows measured when sizing columns
)

var (
	errUnsaved     = errors.New("unsaved changes: ^s to save, ^z to discard")
	errQuitUnsaved = errors.New("unsaved changes: q again to quit without saving")
	errReadOnly    = errors.New("table is read-only")
	errNoDatabase  = errors.New("no connection selected")
)

// App is the main TUI application model.
type App struct {
	// Dependencies
	manager *database.Manager
	store   *history.Store
	cfg     *config.Config
	logger  *log.Logger
	ctx     context.Context

	// Window size
	width, height int

	// Lists
	focus         Focus
	connections   []database.ConnectionInfo
	selectedConn  int
	tables        []database.TableInfo
	tablesConn    string
	selectedTable int
	initial       string

	// Data pane. connection and table name the requested data; source
	// names what the grid currently shows.
	grid       *grid.Grid
	connection string
	table      string
	source     string
	structure  *database.TableStructure
	pkColumn   string
	offset     int
	totalRows  int64
	where      string
	loading    bool

	// SQL bar
	queryInput        textinput.Model
	queryActive       bool
	queryHistory      []string // most recent first
	queryHistoryIdx   int      // -1 = current input
	queryHistoryDraft string

	// Filter bar
	filterInput  textinput.Model
	filterActive bool

	// Delete confirmation
	confirmDelete bool
	pendingDelete []any

	// UI state
	showHelp   bool
	showSchema bool
	help       help.Model
	status     string
	err        error
	quitArmed  bool

	keys KeyMap
}

// NewApp creates a new TUI application. store may be nil when history is
// disabled.
func NewApp(manager *database.Manager, store *history.Store, cfg *config.Config, logger *log.Logger, width, height int) *App {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	a := &App{
		manager:         manager,
		store:           store,
		cfg:             cfg,
		logger:          logger.WithPrefix("tui"),
		ctx:             context.Background(),
		width:           width,
		height:          height,
		queryInput:      newInput("SELECT ..."),
		filterInput:     newInput("id > 10 AND name LIKE 'a%'"),
		queryHistoryIdx: -1,
		help:            help.New(),
		keys:            DefaultKeyMap(),
	}
	a.grid = grid.New(grid.NewState(nil, nil), a.gridConfig())
	a.updateSizes()
	return a
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.TextStyle = queryInputStyle
	return ti
}

func (a *App) gridConfig() grid.Config {
	gc := a.cfg.GetGrid()
	c := grid.DefaultConfig()
	c.Overscan = gc.Overscan
	c.FrameInterval = gc.FrameIntervalDuration()
	c.DoubleClick = gc.DoubleClickDuration()
	return c
}

// Open selects the named connection once the connection list is loaded.
func (a *App) Open(name string) {
	a.initial = name
}

// Init loads the connection list and the query history.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadConnections, a.loadQueryHistory)
}

func (a *App) loadConnections() tea.Msg {
	return ConnectionsLoadedMsg{Connections: a.manager.ListConnections()}
}

func (a *App) loadQueryHistory() tea.Msg {
	if a.store == nil {
		return QueryHistoryLoadedMsg{}
	}
	queries, err := a.store.RecentQueries(historySize)
	if err != nil {
		a.logger.Warn("loading query history failed", "err", err)
	}
	return QueryHistoryLoadedMsg{Queries: queries}
}

func (a *App) loadTables(conn string) tea.Cmd {
	a.tablesConn = conn
	ctx := a.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		tables, err := a.manager.ListTables(ctx, conn)
		return TablesLoadedMsg{Connection: conn, Tables: tables, Error: err}
	}
}

// loadData fetches one page of table, filtered by where.
func (a *App) loadData(conn, table string, offset int, where string) tea.Cmd {
	a.connection, a.table = conn, table
	a.loading = true
	info, _ := a.manager.GetConnection(conn)
	limit := a.cfg.GetGrid().PageSize
	ctx := a.ctx

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		msg := DataLoadedMsg{Connection: conn, Table: table, Offset: offset}
		structure, err := a.manager.GetTableStructure(ctx, conn, table)
		if err != nil {
			msg.Error = err
			return msg
		}
		opts := database.SelectOptions{Where: where, Limit: limit, Offset: offset}
		if pk, ok := structure.EditKey(); ok {
			opts.OrderBy = info.Driver.QuoteIdent(pk)
		}
		result, err := a.manager.Select(ctx, conn, table, opts)
		if err != nil {
			msg.Error = err
			return msg
		}
		total, err := a.manager.CountRows(ctx, conn, table, where)
		if err != nil {
			msg.Error = err
			return msg
		}
		msg.Structure, msg.Result, msg.Total = structure, result, total
		return msg
	}
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.updateSizes()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		return a, a.handleMouse(msg)

	case ConnectionsLoadedMsg:
		return a, a.setConnections(msg.Connections)

	case ConnectionsChangedMsg:
		return a, a.loadConnections

	case TablesLoadedMsg:
		if msg.Connection != a.tablesConn {
			return a, nil
		}
		if msg.Error != nil {
			a.err = msg.Error
			a.tables = nil
			return a, nil
		}
		prev := a.selectedTableName()
		a.tables = msg.Tables
		a.selectedTable = 0
		for i, t := range a.tables {
			if t.Name == prev {
				a.selectedTable = i
			}
		}
		return a, nil

	case DataLoadedMsg:
		if msg.Connection != a.connection || msg.Table != a.table {
			return a, nil
		}
		a.loading = false
		if msg.Error != nil {
			a.err = msg.Error
			return a, nil
		}
		a.applyData(msg)
		return a, nil

	case QueryExecutedMsg:
		return a, a.applyQueryResult(msg)

	case QueryHistoryLoadedMsg:
		a.queryHistory = msg.Queries
		return a, nil

	case ChangesSavedMsg:
		if msg.Error != nil {
			a.err = fmt.Errorf("save failed: %w", msg.Error)
			return a, nil
		}
		a.status = fmt.Sprintf("saved %d row(s)", msg.Rows)
		return a, a.loadData(a.connection, a.table, a.offset, a.where)

	case RowsDeletedMsg:
		if msg.Error != nil {
			a.err = fmt.Errorf("delete failed: %w", msg.Error)
			return a, nil
		}
		a.status = fmt.Sprintf("deleted %d row(s)", msg.Rows)
		return a, a.loadData(a.connection, a.table, a.offset, a.where)

	case CopiedMsg:
		if msg.Error != nil {
			a.err = fmt.Errorf("copy failed: %w", msg.Error)
			return a, nil
		}
		a.status = fmt.Sprintf("copied %d row(s)", msg.Rows)
		return a, nil

	case ConfigReloadedMsg:
		return a, a.applyConfig(msg.Config)

	case ErrorMsg:
		a.err = msg.Error
		return a, nil
	}

	// Frame ticks for the grid, cursor messages for the open input.
	cmds := []tea.Cmd{a.grid.Update(msg)}
	if a.queryActive {
		var cmd tea.Cmd
		a.queryInput, cmd = a.queryInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	if a.filterActive {
		var cmd tea.Cmd
		a.filterInput, cmd = a.filterInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) setConnections(conns []database.ConnectionInfo) tea.Cmd {
	prev := a.selectedConnectionName()
	initial := a.initial
	a.initial = ""
	if initial != "" {
		prev = initial
	}

	a.connections = conns
	a.selectedConn = 0
	for i, c := range conns {
		if c.Name == prev {
			a.selectedConn = i
		}
	}

	name := a.selectedConnectionName()
	switch {
	case name == "":
		a.tables = nil
		a.tablesConn = ""
		return nil
	case initial != "" && name == initial:
		a.setFocus(FocusTables)
	case name == a.tablesConn:
		return nil
	}
	return a.loadTables(name)
}

// applyData builds a fresh grid state for a loaded page. The grid is
// editable only when the table has a single-column primary key and the
// connection allows writes.
func (a *App) applyData(msg DataLoadedMsg) {
	info, _ := a.manager.GetConnection(msg.Connection)
	a.structure = msg.Structure
	a.totalRows = msg.Total
	a.offset = msg.Offset

	pk, editable := msg.Structure.EditKey()
	pkIndex := -1
	if editable {
		for i, c := range msg.Result.Columns {
			if c == pk {
				pkIndex = i
			}
		}
	}
	a.pkColumn = ""
	if pkIndex >= 0 {
		a.pkColumn = pk
	}
	readOnly := pkIndex < 0 || info.ReadOnly

	source := msg.Connection + "/" + msg.Table
	keep := source == a.source
	a.source = source
	a.setGridState(a.newState(msg.Result.Columns, msg.Result.Rows, pkIndex, readOnly), keep)
	a.logger.Debug("data loaded", "connection", msg.Connection, "table", msg.Table,
		"rows", len(msg.Result.Rows), "total", msg.Total, "offset", msg.Offset)
}

func (a *App) newState(columns []string, rows [][]any, pk int, readOnly bool) *grid.State {
	gc := a.cfg.GetGrid()
	headers := grid.HeadersFromNames(columns, gc.DefaultColumnWidth)
	if len(rows) > 0 {
		fitWidths(headers, rows, gc.MaxColumnWidth)
	}

	opts := []grid.Option{
		grid.WithFormatter(database.FormatValue),
		grid.WithMinColumnWidth(gc.MinColumnWidth),
	}
	if pk >= 0 {
		opts = append(opts, grid.WithPrimaryKey(pk))
	}
	if readOnly {
		opts = append(opts, grid.WithReadOnly())
	}
	return grid.NewState(headers, rows, opts...)
}

// fitWidths sizes each column to its header and the first rows, capped at
// maxWidth.
func fitWidths(headers []grid.Header, rows [][]any, maxWidth int) {
	for x := range headers {
		w := runewidth.StringWidth(headers[x].Name)
		for _, row := range rows[:min(len(rows), sizeSample)] {
			if x < len(row) {
				w = max(w, runewidth.StringWidth(database.FormatValue(row[x])))
			}
		}
		w += 2
		if maxWidth > 0 && w > maxWidth {
			w = maxWidth
		}
		headers[x].Width = w
	}
}

// setGridState swaps the grid's state. With keep, focus stays on the same
// cell (clamped) so a reload after saving does not jump.
func (a *App) setGridState(s *grid.State, keep bool) {
	prev, hadFocus := a.grid.State().Focus()
	a.grid.SetState(s)
	if keep && hadFocus {
		s.SetFocus(prev.Y, prev.X)
		a.grid.ScrollToFocus()
	} else if a.focus == FocusData {
		s.SetFocus(0, 0)
	}
}

func (a *App) applyQueryResult(msg QueryExecutedMsg) tea.Cmd {
	if msg.Error != nil {
		a.err = msg.Error
		return nil
	}
	r := msg.Result
	if !r.IsSelect && !msg.Explain {
		a.status = fmt.Sprintf("%d row(s) affected in %s", r.RowsAffected, r.Duration.Round(time.Millisecond))
		return a.refresh()
	}

	a.connection = a.selectedConnectionName()
	a.table = ""
	a.source = ""
	a.structure = nil
	a.pkColumn = ""
	a.offset = 0
	a.where = ""
	a.totalRows = int64(len(r.Rows))
	a.setFocus(FocusData)
	a.setGridState(a.newState(r.Columns, r.Rows, -1, true), false)
	a.status = fmt.Sprintf("%d row(s) in %s", len(r.Rows), r.Duration.Round(time.Millisecond))
	return nil
}

func (a *App) applyConfig(cfg *config.Config) tea.Cmd {
	a.cfg = cfg
	gc := cfg.GetGrid()
	a.grid.SetOverscan(gc.Overscan)
	a.grid.SetFrameInterval(gc.FrameIntervalDuration())
	a.grid.SetDoubleClick(gc.DoubleClickDuration())
	a.grid.State().SetMinColumnWidth(gc.MinColumnWidth)
	a.logger.Info("config applied")

	return func() tea.Msg {
		if err := a.manager.Reload(cfg); err != nil {
			return ErrorMsg{Error: err}
		}
		return ConnectionsChangedMsg{}
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	// Modal states
	switch {
	case a.showHelp:
		if key.Matches(msg, a.keys.Help, a.keys.Back) {
			a.showHelp = false
		}
		return a, nil
	case a.showSchema:
		if key.Matches(msg, a.keys.Schema, a.keys.Back) {
			a.showSchema = false
		}
		return a, nil
	case a.confirmDelete:
		a.confirmDelete = false
		if msg.String() == "y" {
			return a, a.deleteRows()
		}
		a.pendingDelete = nil
		a.status = "delete cancelled"
		return a, nil
	case a.queryActive:
		return a.handleQueryInput(msg)
	case a.filterActive:
		return a.handleFilterInput(msg)
	}

	a.err = nil
	a.status = ""
	armed := a.quitArmed
	a.quitArmed = false

	if a.focus == FocusData {
		if handled, cmd := a.handleDataKey(msg); handled {
			return a, cmd
		}
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		if a.dirty() && !armed {
			a.quitArmed = true
			a.err = errQuitUnsaved
			return a, nil
		}
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.showHelp = true
	case key.Matches(msg, a.keys.Schema):
		a.showSchema = a.structure != nil
	case key.Matches(msg, a.keys.Query):
		return a, a.openQueryBar()
	case key.Matches(msg, a.keys.Refresh):
		return a, a.refresh()
	case key.Matches(msg, a.keys.NextPane):
		a.setFocus((a.focus + 1) % 3)
	case key.Matches(msg, a.keys.PrevPane):
		a.setFocus((a.focus + 2) % 3)
	case key.Matches(msg, a.keys.Up):
		a.moveSelection(-1)
	case key.Matches(msg, a.keys.Down):
		a.moveSelection(1)
	case key.Matches(msg, a.keys.Select, a.keys.Right):
		return a, a.handleSelect()
	case key.Matches(msg, a.keys.Left, a.keys.Back):
		if a.focus > FocusConnections {
			a.setFocus(a.focus - 1)
		}
	}
	return a, nil
}

// handleDataKey gives the data pane's actions and the grid first pick of a
// key. It reports false for keys left to the global bindings.
func (a *App) handleDataKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if a.grid.Editing() {
		if key.Matches(msg, a.keys.Save) {
			a.grid.CommitEdit()
			return true, a.saveChanges()
		}
		_, cmd := a.grid.HandleKey(msg)
		return true, cmd
	}

	switch {
	case key.Matches(msg, a.keys.Save):
		return true, a.saveChanges()
	case key.Matches(msg, a.keys.Discard):
		return true, a.discardChanges()
	case key.Matches(msg, a.keys.Delete):
		a.promptDelete()
		return true, nil
	case key.Matches(msg, a.keys.Copy):
		return true, a.copySelection()
	case key.Matches(msg, a.keys.NextPage):
		return true, a.changePage(1)
	case key.Matches(msg, a.keys.PrevPage):
		return true, a.changePage(-1)
	case key.Matches(msg, a.keys.Filter):
		return true, a.openFilterBar()
	case msg.Type == tea.KeyLeft:
		if c, ok := a.grid.State().Focus(); !ok || c.X == 0 {
			a.setFocus(FocusTables)
			return true, nil
		}
	}
	return a.grid.HandleKey(msg)
}

func (a *App) setFocus(f Focus) {
	a.focus = f
	if f != FocusData {
		a.grid.Blur()
		return
	}
	a.grid.Focus()
	s := a.grid.State()
	if _, ok := s.Focus(); !ok {
		s.SetFocus(0, 0)
	}
}

func (a *App) moveSelection(delta int) {
	switch a.focus {
	case FocusConnections:
		a.selectedConn = clampIndex(a.selectedConn+delta, len(a.connections))
	case FocusTables:
		a.selectedTable = clampIndex(a.selectedTable+delta, len(a.tables))
	case FocusData:
		a.grid.State().MoveFocus(delta, 0)
		a.grid.ScrollToFocus()
	}
}

func clampIndex(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (a *App) handleSelect() tea.Cmd {
	switch a.focus {
	case FocusConnections:
		name := a.selectedConnectionName()
		if name == "" {
			return nil
		}
		a.tables = nil
		a.selectedTable = 0
		a.setFocus(FocusTables)
		return a.loadTables(name)

	case FocusTables:
		table := a.selectedTableName()
		if table == "" {
			return nil
		}
		if a.dirty() {
			a.err = errUnsaved
			return nil
		}
		a.where = ""
		a.setFocus(FocusData)
		return a.loadData(a.tablesConn, table, 0, "")
	}
	return nil
}

func (a *App) selectedConnectionName() string {
	if a.selectedConn < len(a.connections) {
		return a.connections[a.selectedConn].Name
	}
	return ""
}

func (a *App) selectedTableName() string {
	if a.selectedTable < len(a.tables) {
		return a.tables[a.selectedTable].Name
	}
	return ""
}

func (a *App) currentConnection() (database.ConnectionInfo, bool) {
	if a.connection == "" {
		return a.manager.GetConnection(a.selectedConnectionName())
	}
	return a.manager.GetConnection(a.connection)
}

func (a *App) dirty() bool {
	return a.grid.State().ChangedRowCount() > 0
}

// refresh reloads the table list and the current page.
func (a *App) refresh() tea.Cmd {
	var cmds []tea.Cmd
	if a.tablesConn != "" {
		cmds = append(cmds, a.loadTables(a.tablesConn))
	}
	if a.table != "" {
		if a.dirty() {
			a.err = errUnsaved
		} else {
			cmds = append(cmds, a.loadData(a.connection, a.table, a.offset, a.where))
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) changePage(dir int) tea.Cmd {
	if a.table == "" {
		return nil
	}
	next := a.offset + dir*a.cfg.GetGrid().PageSize
	if next < 0 || int64(next) >= a.totalRows {
		return nil
	}
	if a.dirty() {
		a.err = errUnsaved
		return nil
	}
	return a.loadData(a.connection, a.table, next, a.where)
}

func (a *App) saveChanges() tea.Cmd {
	if a.table == "" {
		return nil
	}
	changes, err := a.grid.State().RowChanges()
	if err != nil {
		a.err = err
		return nil
	}
	if len(changes) == 0 {
		a.status = "no changes"
		return nil
	}

	conn, table, pk := a.connection, a.table, a.pkColumn
	updates := make([]database.RowUpdate, len(changes))
	keys := make([]any, len(changes))
	for i, c := range changes {
		updates[i] = database.RowUpdate{PrimaryKey: c.PrimaryKey, Values: c.Values}
		keys[i] = c.PrimaryKey
	}
	ctx := a.ctx

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		n, err := a.manager.UpdateRows(ctx, conn, table, pk, updates)
		if err != nil {
			return ChangesSavedMsg{Error: err}
		}
		a.audit(history.ActionUpdate, conn, table, map[string]any{"rows": n, "keys": keys})
		return ChangesSavedMsg{Rows: n}
	}
}

func (a *App) discardChanges() tea.Cmd {
	if a.table == "" || !a.dirty() {
		return nil
	}
	a.status = "changes discarded"
	return a.loadData(a.connection, a.table, a.offset, a.where)
}

func (a *App) promptDelete() {
	s := a.grid.State()
	if a.table == "" || s.ReadOnly() || a.pkColumn == "" {
		a.err = errReadOnly
		return
	}
	var keys []any
	for _, y := range s.SelectedRows() {
		if pk, ok := s.PrimaryKeyValue(y); ok {
			keys = append(keys, pk)
		}
	}
	if len(keys) == 0 {
		a.err = grid.ErrNoSelection
		return
	}
	a.pendingDelete = keys
	a.confirmDelete = true
}

func (a *App) deleteRows() tea.Cmd {
	conn, table, pk, keys := a.connection, a.table, a.pkColumn, a.pendingDelete
	a.pendingDelete = nil
	ctx := a.ctx

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		n, err := a.manager.DeleteRows(ctx, conn, table, pk, keys)
		if err != nil {
			return RowsDeletedMsg{Error: err}
		}
		a.audit(history.ActionDelete, conn, table, map[string]any{"rows": n, "keys": keys})
		return RowsDeletedMsg{Rows: n}
	}
}

func (a *App) audit(action, conn, table string, details map[string]any) {
	if a.store == nil {
		return
	}
	if err := a.store.RecordAudit(action, conn, table, details); err != nil {
		a.logger.Warn("audit failed", "action", action, "err", err)
	}
}

func (a *App) copySelection() tea.Cmd {
	s := a.grid.State()
	text, err := s.SelectionText()
	if err != nil {
		a.err = err
		return nil
	}
	rows := len(s.SelectedRows())
	return func() tea.Msg {
		return CopiedMsg{Rows: rows, Error: clipboard.WriteAll(text)}
	}
}

func (a *App) openFilterBar() tea.Cmd {
	if a.table == "" {
		return nil
	}
	a.filterActive = true
	a.filterInput.SetValue(a.where)
	a.filterInput.CursorEnd()
	return a.filterInput.Focus()
}

func (a *App) closeFilterBar() {
	a.filterActive = false
	a.filterInput.Blur()
}

func (a *App) handleFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.closeFilterBar()
		return a, nil

	case tea.KeyEnter:
		a.closeFilterBar()
		if a.dirty() {
			a.err = errUnsaved
			return a, nil
		}
		a.where = strings.TrimSpace(a.filterInput.Value())
		return a, a.loadData(a.connection, a.table, 0, a.where)
	}

	var cmd tea.Cmd
	a.filterInput, cmd = a.filterInput.Update(msg)
	return a, cmd
}

func (a *App) openQueryBar() tea.Cmd {
	if a.selectedConnectionName() == "" {
		a.err = errNoDatabase
		return nil
	}
	a.queryActive = true
	a.queryHistoryIdx = -1
	return a.queryInput.Focus()
}

func (a *App) closeQueryBar() {
	a.queryActive = false
	a.queryHistoryIdx = -1
	a.queryInput.Blur()
}

func (a *App) handleQueryInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEsc:
		a.closeQueryBar()
		return a, nil

	case msg.Type == tea.KeyEnter, key.Matches(msg, a.keys.Explain):
		query := strings.TrimSpace(a.queryInput.Value())
		if query == "" {
			a.closeQueryBar()
			return a, nil
		}
		if a.dirty() {
			a.err = errUnsaved
			return a, nil
		}
		explain := msg.Type != tea.KeyEnter
		if !explain && (len(a.queryHistory) == 0 || a.queryHistory[0] != query) {
			a.queryHistory = append([]string{query}, a.queryHistory...)
			if len(a.queryHistory) > historySize {
				a.queryHistory = a.queryHistory[:historySize]
			}
		}
		a.closeQueryBar()
		a.queryInput.SetValue("")
		return a, a.executeQuery(query, explain)

	case msg.Type == tea.KeyUp:
		// Navigate to older query in history
		if len(a.queryHistory) > 0 && a.queryHistoryIdx < len(a.queryHistory)-1 {
			if a.queryHistoryIdx == -1 {
				a.queryHistoryDraft = a.queryInput.Value()
			}
			a.queryHistoryIdx++
			a.queryInput.SetValue(a.queryHistory[a.queryHistoryIdx])
			a.queryInput.CursorEnd()
		}
		return a, nil

	case msg.Type == tea.KeyDown:
		// Navigate to newer query in history
		if a.queryHistoryIdx > -1 {
			a.queryHistoryIdx--
			if a.queryHistoryIdx == -1 {
				a.queryInput.SetValue(a.queryHistoryDraft)
			} else {
				a.queryInput.SetValue(a.queryHistory[a.queryHistoryIdx])
			}
			a.queryInput.CursorEnd()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.queryInput, cmd = a.queryInput.Update(msg)
	return a, cmd
}

func (a *App) executeQuery(query string, explain bool) tea.Cmd {
	conn := a.selectedConnectionName()
	ctx := a.ctx

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		if explain {
			result, err := a.manager.Explain(ctx, conn, query)
			return QueryExecutedMsg{Query: query, Explain: true, Result: result, Error: err}
		}

		result, err := a.manager.ExecuteQuery(ctx, conn, query)
		if a.store != nil {
			rec := history.QueryRecord{Connection: conn, Query: query}
			if result != nil {
				rec.Duration = result.Duration
				rec.RowsAffected = result.RowsAffected
				if result.IsSelect {
					rec.RowsAffected = int64(len(result.Rows))
				}
			}
			if err != nil {
				rec.Error = err.Error()
			}
			if err := a.store.RecordQuery(rec); err != nil {
				a.logger.Warn("recording query failed", "err", err)
			}
		}
		return QueryExecutedMsg{Query: query, Result: result, Error: err}
	}
}

func (a *App) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if a.showHelp || a.showSchema || a.queryActive || a.filterActive || a.confirmDelete {
		return nil
	}
	l := a.layout()

	// Drags that started in the grid keep going to it outside the pane.
	inGrid := msg.X >= l.dataLeft() && msg.Y < l.contentHeight
	dragging := a.focus == FocusData && msg.Action != tea.MouseActionPress
	if inGrid || dragging {
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && a.focus != FocusData {
			a.setFocus(FocusData)
		}
		inner := msg
		inner.X -= l.dataLeft() + 2 // border and padding
		inner.Y--
		return a.grid.HandleMouse(inner)
	}

	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft || msg.Y >= l.contentHeight {
		return nil
	}
	line := msg.Y - 1
	if msg.X < l.connWidth {
		a.setFocus(FocusConnections)
		if i, ok := listIndex(line, a.selectedConn, len(a.connections), l.contentHeight-2); ok {
			a.selectedConn = i
			return a.handleSelect()
		}
		return nil
	}
	a.setFocus(FocusTables)
	if i, ok := listIndex(line, a.selectedTable, len(a.tables), l.contentHeight-2); ok {
		a.selectedTable = i
		return a.handleSelect()
	}
	return nil
}

// updateSizes resizes the grid and inputs to the window.
func (a *App) updateSizes() {
	l := a.layout()
	a.grid.SetSize(max(l.dataWidth-3, 1), max(l.contentHeight-2, 1))
	a.queryInput.Width = max(a.width-8, 1)
	a.filterInput.Width = max(a.width-10, 1)
}
