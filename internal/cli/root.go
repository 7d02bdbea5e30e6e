// Package cli implements the dbgrid command line: the interactive browser
// and one-shot commands for scripting.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/johan-st/dbgrid/internal/config"
	"github.com/johan-st/dbgrid/internal/database"
	"github.com/johan-st/dbgrid/internal/history"
	"github.com/johan-st/dbgrid/internal/logging"
)

const queryTimeout = 30 * time.Second

// Build information, set at build time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// env carries what the commands share for one invocation. The config is
// loaded before any command runs; the manager is started on first use.
type env struct {
	configPath string
	verbose    bool

	cfg     *config.Config
	logger  *log.Logger
	closer  io.Closer
	manager *database.Manager
	store   *history.Store

	// adhoc is the connection built from a command line target that is
	// not in the config file.
	adhoc *config.ConnectionConfig
}

// Execute runs the root command with os.Args.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// NewRootCommand builds the dbgrid command tree.
func NewRootCommand() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "dbgrid [target]",
		Short: "Browse and edit database tables in the terminal",
		Long: `dbgrid is a terminal browser for SQLite, PostgreSQL and MySQL databases.

A target is a connection name from the config file, a SQLite file,
directory or glob, or a postgres:// or mysql:// URL. Without a target
every configured connection is listed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return runTUI(cmd, e, target)
		}),
	}

	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", config.DefaultPath(), "config file")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log to stderr")
	root.SetVersionTemplate(fmt.Sprintf("dbgrid %s\n  commit: %s\n  built:  %s\n", Version, CommitSHA, BuildDate))

	root.AddCommand(
		newConnectionsCmd(e),
		newTablesCmd(e),
		newSchemaCmd(e),
		newQueryCmd(e),
		newExportCmd(e),
		newHistoryCmd(e),
		newAuditCmd(e),
	)
	return root
}

// load reads the config file. A missing file means defaults.
func (e *env) load() error {
	cfg, err := config.LoadOrDefault(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = logging.Discard()
	if e.verbose {
		e.logger = logging.NewWriter(os.Stderr, "debug")
	}
	return nil
}

// resolve maps a command line target to a connection name, registering
// paths and URLs as connections for this run.
func (e *env) resolve(target string) (string, error) {
	if target == "" {
		return "", nil
	}
	for _, c := range e.cfg.GetConnections() {
		if c.Name == target {
			return target, nil
		}
	}

	conn, err := database.ParseTarget(target)
	if err != nil {
		return "", err
	}
	if conn.Driver == string(database.SQLite) {
		if _, err := os.Stat(conn.Path); err != nil && !hasGlob(conn.Path) {
			return "", fmt.Errorf("%w: %s", database.ErrConnectionNotFound, target)
		}
	}
	e.cfg.AddConnection(conn)
	e.adhoc = &conn
	return conn.Name, nil
}

// connect resolves target and starts the manager.
func (e *env) connect(target string) (string, error) {
	name, err := e.resolve(target)
	if err != nil {
		return "", err
	}
	if e.manager != nil {
		return name, nil
	}

	m, err := database.NewManager(e.cfg, e.logger)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database manager: %w", err)
	}
	if err := m.Start(); err != nil {
		return "", fmt.Errorf("failed to start database manager: %w", err)
	}
	e.manager = m
	return name, nil
}

// openHistory opens the history store. It returns nil when history is
// disabled.
func (e *env) openHistory() (*history.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	hc := e.cfg.GetHistory()
	if !hc.Enabled {
		return nil, nil
	}
	s, err := history.NewStore(hc.DataDir, hc.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	e.store = s
	return s, nil
}

// run wraps a command body so everything it opened is released, also on
// error.
func (e *env) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer e.close()
		return fn(cmd, args)
	}
}

func (e *env) close() {
	if e.manager != nil {
		e.manager.Stop()
		e.manager = nil
	}
	if e.store != nil {
		e.store.Close()
		e.store = nil
	}
	if e.closer != nil {
		e.closer.Close()
		e.closer = nil
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, queryTimeout)
}

func hasGlob(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}
