package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/johan-st/dbgrid/internal/config"
)

// Driver identifies a database dialect.
type Driver string

const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
	MySQL    Driver = "mysql"
)

// ParseDriver maps a config driver name to a Driver. An empty name means
// SQLite.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, name)
}

func (d Driver) String() string { return string(d) }

// sqlDriver is the name registered with database/sql.
func (d Driver) sqlDriver() string {
	switch d {
	case Postgres:
		return "pgx"
	case MySQL:
		return "mysql"
	}
	return "sqlite"
}

func (d Driver) defaultPort() int {
	switch d {
	case Postgres:
		return 5432
	case MySQL:
		return 3306
	}
	return 0
}

// QuoteIdent quotes an identifier for the dialect.
func (d Driver) QuoteIdent(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns the bind parameter for the n-th argument (1-based).
func (d Driver) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// DSN builds the data source name for cfg.
func DSN(cfg config.ConnectionConfig) (string, error) {
	d, err := ParseDriver(cfg.Driver)
	if err != nil {
		return "", err
	}
	switch d {
	case Postgres:
		return postgresDSN(cfg)
	case MySQL:
		return mysqlDSN(cfg)
	}
	if cfg.Path == "" {
		return "", fmt.Errorf("connection %q: no database path", cfg.Name)
	}
	mode := "rwc"
	if cfg.ReadOnly {
		mode = "ro"
	}
	return fmt.Sprintf("file:%s?mode=%s&_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON",
		cfg.Path, mode, busyTimeoutMillis), nil
}

func postgresDSN(cfg config.ConnectionConfig) (string, error) {
	var u *url.URL
	if cfg.DSN != "" {
		parsed, err := url.Parse(cfg.DSN)
		if err != nil || parsed.Scheme == "" {
			// key=value form; pgx parses it as is.
			if cfg.ReadOnly {
				return cfg.DSN + " default_transaction_read_only=on", nil
			}
			return cfg.DSN, nil
		}
		u = parsed
	} else {
		host := cfg.Host
		if cfg.Port != 0 {
			host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		}
		u = &url.URL{Scheme: "postgres", Host: host, Path: "/" + cfg.Database}
		if cfg.User != "" {
			if cfg.Password != "" {
				u.User = url.UserPassword(cfg.User, cfg.Password)
			} else {
				u.User = url.User(cfg.User)
			}
		}
	}

	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	if cfg.ReadOnly {
		q.Set("default_transaction_read_only", "on")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func mysqlDSN(cfg config.ConnectionConfig) (string, error) {
	var c *mysql.Config
	switch {
	case strings.HasPrefix(cfg.DSN, "mysql://"):
		u, err := url.Parse(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid mysql url: %w", err)
		}
		c = mysql.NewConfig()
		c.Net = "tcp"
		c.Addr = u.Host
		if u.Port() == "" {
			c.Addr = net.JoinHostPort(u.Hostname(), "3306")
		}
		c.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			c.User = u.User.Username()
			c.Passwd, _ = u.User.Password()
		}
	case cfg.DSN != "":
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		c = parsed
	default:
		c = mysql.NewConfig()
		c.Net = "tcp"
		port := cfg.Port
		if port == 0 {
			port = MySQL.defaultPort()
		}
		c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		c.User = cfg.User
		c.Passwd = cfg.Password
		c.DBName = cfg.Database
	}
	c.ParseTime = true
	return c.FormatDSN(), nil
}

// ParseTarget turns a command line target into a connection. Targets are
// postgres:// or mysql:// URLs or SQLite paths (files, directories or
// globs).
func ParseTarget(target string) (config.ConnectionConfig, error) {
	switch {
	case strings.HasPrefix(target, "postgres://"), strings.HasPrefix(target, "postgresql://"):
		u, err := url.Parse(target)
		if err != nil {
			return config.ConnectionConfig{}, fmt.Errorf("invalid postgres url: %w", err)
		}
		return config.ConnectionConfig{
			Name:   targetName(u),
			Driver: string(Postgres),
			DSN:    target,
		}, nil
	case strings.HasPrefix(target, "mysql://"):
		u, err := url.Parse(target)
		if err != nil {
			return config.ConnectionConfig{}, fmt.Errorf("invalid mysql url: %w", err)
		}
		return config.ConnectionConfig{
			Name:   targetName(u),
			Driver: string(MySQL),
			DSN:    target,
		}, nil
	case strings.Contains(target, "://"):
		return config.ConnectionConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedDriver, target)
	}
	return config.ConnectionConfig{
		Name:   target,
		Driver: string(SQLite),
		Path:   target,
	}, nil
}

func targetName(u *url.URL) string {
	name := u.Hostname()
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		name += "/" + db
	}
	return name
}
