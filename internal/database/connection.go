// Package database handles connections to SQLite, PostgreSQL and MySQL
// databases and the queries the browser runs against them.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/johan-st/dbgrid/internal/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver
)

const busyTimeoutMillis = 5000

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrUnsupportedDriver  = errors.New("unsupported driver")
	ErrNoPrimaryKey       = errors.New("table has no primary key")
	ErrTableNotFound      = errors.New("table not found")
	ErrReadOnly           = errors.New("connection is read-only")
)

// Connection wraps a database handle with its dialect.
type Connection struct {
	DB       *sql.DB
	Name     string
	Driver   Driver
	ReadOnly bool

	tunnel *Tunnel
}

// Open opens and pings the database described by cfg. A connection with an
// ssh section is reached through a Tunnel that lives as long as it does.
func Open(ctx context.Context, cfg config.ConnectionConfig) (*Connection, error) {
	driver, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	tunnel, err := startTunnel(ctx, driver, &cfg)
	if err != nil {
		return nil, err
	}
	conn, err := open(ctx, driver, cfg)
	if err != nil {
		if tunnel != nil {
			tunnel.Close()
		}
		return nil, err
	}
	conn.tunnel = tunnel
	return conn, nil
}

func open(ctx context.Context, driver Driver, cfg config.ConnectionConfig) (*Connection, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver.sqlDriver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == SQLite {
		// A single connection serializes writers; SQLite would otherwise
		// return SQLITE_BUSY under concurrent writes.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	return &Connection{
		DB:       db,
		Name:     cfg.Name,
		Driver:   driver,
		ReadOnly: cfg.ReadOnly,
	}, nil
}

// OpenSQLite opens a SQLite file.
func OpenSQLite(ctx context.Context, path string, readOnly bool) (*Connection, error) {
	return Open(ctx, config.ConnectionConfig{
		Name:     path,
		Driver:   string(SQLite),
		Path:     path,
		ReadOnly: readOnly,
	})
}

// Close closes the database connection and its tunnel.
func (c *Connection) Close() error {
	var err error
	if c.DB != nil {
		err = c.DB.Close()
	}
	if c.tunnel != nil {
		err = errors.Join(err, c.tunnel.Close())
	}
	return err
}

// Exec runs a statement that doesn't return rows.
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.DB.ExecContext(ctx, query, args...)
}

// Query runs a query that returns rows.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.DB.QueryContext(ctx, query, args...)
}

// QueryRow runs a query that returns at most one row.
func (c *Connection) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn inside a transaction, rolling back if fn fails or panics.
func (c *Connection) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// quote quotes an identifier for this connection's dialect.
func (c *Connection) quote(name string) string {
	return c.Driver.QuoteIdent(name)
}
