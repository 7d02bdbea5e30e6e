// dbgrid is a terminal browser and editor for SQLite, PostgreSQL and MySQL
// tables.
package main

import (
	"os"

	"github.com/johan-st/dbgrid/internal/cli"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cli.Version, cli.CommitSHA, cli.BuildDate = version, commit, buildDate
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
