package tui

import (
	"github.com/johan-st/dbgrid/internal/config"
	"github.com/johan-st/dbgrid/internal/database"
)

// Messages for async operations

// ConnectionsLoadedMsg is sent when the connection list is loaded.
type ConnectionsLoadedMsg struct {
	Connections []database.ConnectionInfo
}

// ConnectionsChangedMsg is sent when discovery finds or loses a database.
type ConnectionsChangedMsg struct{}

// TablesLoadedMsg is sent when the tables of a connection are loaded.
type TablesLoadedMsg struct {
	Connection string
	Tables     []database.TableInfo
	Error      error
}

// DataLoadedMsg is sent when a page of table data is loaded.
type DataLoadedMsg struct {
	Connection string
	Table      string
	Structure  *database.TableStructure
	Result     *database.QueryResult
	Total      int64
	Offset     int
	Error      error
}

// QueryExecutedMsg is sent when a query from the SQL bar has run.
type QueryExecutedMsg struct {
	Query   string
	Explain bool
	Result  *database.QueryResult
	Error   error
}

// QueryHistoryLoadedMsg carries the recent queries for the SQL bar.
type QueryHistoryLoadedMsg struct {
	Queries []string
}

// ChangesSavedMsg is sent when pending edits were written.
type ChangesSavedMsg struct {
	Rows  int64
	Error error
}

// RowsDeletedMsg is sent when the selected rows were deleted.
type RowsDeletedMsg struct {
	Rows  int64
	Error error
}

// CopiedMsg is sent when the selection was copied to the clipboard.
type CopiedMsg struct {
	Rows  int
	Error error
}

// ConfigReloadedMsg is sent when the config file changed on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}
