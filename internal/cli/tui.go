package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/johan-st/dbgrid/internal/config"
	"github.com/johan-st/dbgrid/internal/database"
	"github.com/johan-st/dbgrid/internal/logging"
	"github.com/johan-st/dbgrid/internal/tui"
)

// runTUI starts the interactive browser and blocks until it quits.
func runTUI(cmd *cobra.Command, e *env, target string) error {
	// The TUI owns the terminal, so logs go to the configured file.
	if !e.verbose {
		logger, closer, err := logging.New(e.cfg.GetLog())
		if err != nil {
			return err
		}
		e.logger, e.closer = logger, closer
	}

	name, err := e.connect(target)
	if err != nil {
		return err
	}
	store, err := e.openHistory()
	if err != nil {
		// History is a convenience; browsing works without it.
		e.logger.Warn("history unavailable", "err", err)
	}

	width, height := 80, 24
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
	}

	app := tui.NewApp(e.manager, store, e.cfg, e.logger, width, height)
	if name != "" {
		app.Open(name)
	}

	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)

	e.manager.OnChange(func(added, removed []*database.DiscoveredDatabase) {
		p.Send(tui.ConnectionsChangedMsg{})
	})

	watcher, err := config.NewWatcher(e.cfg, e.logger)
	if err != nil {
		e.logger.Warn("config watcher unavailable", "err", err)
	} else {
		watcher.OnReload(func(c *config.Config) {
			// Targets from the command line are not in the file.
			if e.adhoc != nil {
				c.AddConnection(*e.adhoc)
			}
			p.Send(tui.ConfigReloadedMsg{Config: c})
		})
		if err := watcher.Start(); err != nil {
			e.logger.Warn("config watcher unavailable", "err", err)
		}
		defer watcher.Stop()
	}

	e.logger.Info("starting", "version", Version, "target", target, "size", fmt.Sprintf("%dx%d", width, height))
	_, err = p.Run()
	return err
}
