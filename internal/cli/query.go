package cli

import (
	"github.com/spf13/cobra"

	"github.com/johan-st/dbgrid/internal/database"
	"github.com/johan-st/dbgrid/internal/history"
)

func newQueryCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <target> <sql>",
		Short: "Run a SQL statement",
		Long: `Runs one SQL statement and prints the result. Statements that do not
return rows print the number of affected rows. Write statements are
refused on read-only connections.`,
		Example: `  dbgrid query app.db "SELECT * FROM users"
  dbgrid query app.db "SELECT * FROM users" --format json
  dbgrid query app.db "SELECT * FROM users WHERE id = 1" --explain`,
		Args: cobra.ExactArgs(2),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, e, args[0], args[1])
		}),
	}
	cmd.Flags().StringP("format", "f", formatTable, "output format (table, csv, json)")
	cmd.Flags().Bool("explain", false, "show the query plan instead of running the query")
	return cmd
}

func runQuery(cmd *cobra.Command, e *env, target, query string) error {
	format, _ := cmd.Flags().GetString("format")
	explain, _ := cmd.Flags().GetBool("explain")
	if err := checkFormat(format, formatTable, formatCSV, formatJSON); err != nil {
		return err
	}
	name, err := e.connect(target)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if explain {
		plan, err := e.manager.Explain(ctx, name, query)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), plan, format)
	}

	result, err := e.manager.ExecuteQuery(ctx, name, query)
	if recErr := e.record(name, query, result, err); recErr != nil {
		e.logger.Warn("failed to record query", "err", recErr)
	}
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result, format)
}

// record adds a query to the history when history is enabled.
func (e *env) record(connection, query string, result *database.QueryResult, err error) error {
	store, openErr := e.openHistory()
	if openErr != nil || store == nil {
		return openErr
	}

	rec := history.QueryRecord{Connection: connection, Query: query}
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
	return store.RecordQuery(rec)
}
