package database

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/johan-st/dbgrid/internal/config"
)

// ConnectionInfo describes a connection for listing.
type ConnectionInfo struct {
	Name        string
	Driver      Driver
	Description string
	ReadOnly    bool
	// SQLite only.
	Path    string
	Size    int64
	ModTime time.Time

	cfg config.ConnectionConfig
}

// Manager resolves connection names to open connections. SQLite entries
// that name a directory or glob are expanded through discovery.
type Manager struct {
	cfg         *config.Config
	logger      *log.Logger
	discovery   *Discovery
	connections map[string]*Connection
	mu          sync.RWMutex
}

// NewManager creates a new database manager.
func NewManager(cfg *config.Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	discovery, err := NewDiscovery(cfg.GetConnections(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery: %w", err)
	}

	return &Manager{
		cfg:         cfg,
		logger:      logger.WithPrefix("database"),
		discovery:   discovery,
		connections: make(map[string]*Connection),
	}, nil
}

// Start starts database discovery.
func (m *Manager) Start() error {
	return m.discovery.Start()
}

// Stop stops discovery and closes every open connection.
func (m *Manager) Stop() {
	m.discovery.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, conn := range m.connections {
		if err := conn.Close(); err != nil {
			m.logger.Warn("close failed", "connection", name, "err", err)
		}
	}
	m.connections = make(map[string]*Connection)
}

// Reload applies a new connection list: discovery is rescanned and open
// connections whose settings changed or disappeared are closed.
func (m *Manager) Reload(cfg *config.Config) error {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	if err := m.discovery.UpdateSources(cfg.GetConnections()); err != nil {
		return err
	}

	current := make(map[string]config.ConnectionConfig)
	for _, info := range m.ListConnections() {
		current[info.Name] = info.cfg
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, conn := range m.connections {
		c, ok := current[name]
		if ok && c.ReadOnly == conn.ReadOnly {
			continue
		}
		conn.Close()
		delete(m.connections, name)
		m.logger.Debug("connection closed on reload", "connection", name)
	}
	return nil
}

// OnChange registers a callback for discovered databases appearing or
// disappearing.
func (m *Manager) OnChange(callback func(added, removed []*DiscoveredDatabase)) {
	m.discovery.OnChange(callback)
}

// ListConnections returns every configured connection, with SQLite
// directories and globs expanded to their files, sorted by name.
func (m *Manager) ListConnections() []ConnectionInfo {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	var out []ConnectionInfo
	for _, c := range cfg.GetConnections() {
		d, err := ParseDriver(c.Driver)
		if err != nil || d == SQLite {
			continue
		}
		out = append(out, ConnectionInfo{
			Name:        c.Name,
			Driver:      d,
			Description: c.Description,
			ReadOnly:    c.ReadOnly,
			cfg:         c,
		})
	}
	for _, db := range m.discovery.GetDatabases() {
		out = append(out, ConnectionInfo{
			Name:        db.Name,
			Driver:      SQLite,
			Description: db.Description,
			ReadOnly:    db.Source.ReadOnly,
			Path:        db.Path,
			Size:        db.Size,
			ModTime:     db.ModTime,
			cfg:         db.Source,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetConnection looks up a connection by name, or by path for SQLite.
func (m *Manager) GetConnection(name string) (ConnectionInfo, bool) {
	for _, info := range m.ListConnections() {
		if info.Name == name || (info.Path != "" && info.Path == name) {
			return info, true
		}
	}
	return ConnectionInfo{}, false
}

// Open returns the open connection for name, opening it on first use.
func (m *Manager) Open(ctx context.Context, name string) (*Connection, error) {
	info, ok := m.GetConnection(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[info.Name]; ok {
		return conn, nil
	}

	start := time.Now()
	conn, err := Open(ctx, info.cfg)
	if err != nil {
		m.logger.Error("open failed", "connection", info.Name, "driver", info.Driver, "err", err)
		return nil, err
	}
	m.logger.Info("connected", "connection", info.Name, "driver", info.Driver, "took", time.Since(start))

	m.connections[info.Name] = conn
	return conn, nil
}

// CloseConnection closes the named connection if it is open.
func (m *Manager) CloseConnection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[name]; ok {
		delete(m.connections, name)
		return conn.Close()
	}
	return nil
}

// ListTables lists the tables and views of a connection.
func (m *Manager) ListTables(ctx context.Context, name string) ([]TableInfo, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewSchema(conn).ListTables(ctx)
}

// GetTableStructure returns the columns and primary key of a table.
func (m *Manager) GetTableStructure(ctx context.Context, name, table string) (*TableStructure, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewSchema(conn).GetTableStructure(ctx, table)
}

// Select reads a page of rows from a table.
func (m *Manager) Select(ctx context.Context, name, table string, opts SelectOptions) (*QueryResult, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	result, err := Select(ctx, conn, table, opts)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("select", "connection", name, "table", table,
		"offset", opts.Offset, "rows", len(result.Rows), "took", result.Duration)
	return result, nil
}

// CountRows counts the rows of a table matching where.
func (m *Manager) CountRows(ctx context.Context, name, table, where string, args ...any) (int64, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	return CountRows(ctx, conn, table, where, args...)
}

// ExecuteQuery runs arbitrary SQL. Statements that write are refused on
// read-only connections.
func (m *Manager) ExecuteQuery(ctx context.Context, name, query string) (*QueryResult, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if conn.ReadOnly && !isReadOnlyQuery(query) {
		return nil, ErrReadOnly
	}

	result, err := Query(ctx, conn, query)
	if err != nil {
		m.logger.Warn("query failed", "connection", name, "err", err)
		return result, err
	}
	m.logger.Debug("query", "connection", name, "select", result.IsSelect,
		"rows", len(result.Rows), "affected", result.RowsAffected, "took", result.Duration)
	return result, nil
}

// Explain returns the query plan for query.
func (m *Manager) Explain(ctx context.Context, name, query string) (*QueryResult, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return Explain(ctx, conn, query)
}

// UpdateRows writes row updates in one transaction.
func (m *Manager) UpdateRows(ctx context.Context, name, table, pkColumn string, updates []RowUpdate) (int64, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := UpdateRows(ctx, conn, table, pkColumn, updates)
	if err != nil {
		m.logger.Error("update failed", "connection", name, "table", table, "err", err)
		return 0, err
	}
	m.logger.Info("rows updated", "connection", name, "table", table, "rows", n)
	return n, nil
}

// UpdateRow updates a single row.
func (m *Manager) UpdateRow(ctx context.Context, name, table, pkColumn string, pkValue any, values map[string]any) (int64, error) {
	return m.UpdateRows(ctx, name, table, pkColumn, []RowUpdate{{PrimaryKey: pkValue, Values: values}})
}

// DeleteRows deletes rows by primary key.
func (m *Manager) DeleteRows(ctx context.Context, name, table, pkColumn string, pkValues []any) (int64, error) {
	conn, err := m.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := DeleteRows(ctx, conn, table, pkColumn, pkValues)
	if err != nil {
		m.logger.Error("delete failed", "connection", name, "table", table, "err", err)
		return 0, err
	}
	m.logger.Info("rows deleted", "connection", name, "table", table, "rows", n)
	return n, nil
}
