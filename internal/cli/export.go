package cli

import (
	"github.com/spf13/cobra"

	"github.com/johan-st/dbgrid/internal/database"
)

func newExportCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <target> <table>",
		Short: "Write every row of a table to stdout",
		Example: `  dbgrid export app.db users > users.csv
  dbgrid export app.db users --format json --where "active = 1"`,
		Args: cobra.ExactArgs(2),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, e, args[0], args[1])
		}),
	}
	cmd.Flags().StringP("format", "f", formatCSV, "output format (csv, json)")
	cmd.Flags().StringP("where", "w", "", "SQL condition rows must match")
	return cmd
}

func runExport(cmd *cobra.Command, e *env, target, table string) error {
	format, _ := cmd.Flags().GetString("format")
	where, _ := cmd.Flags().GetString("where")
	if err := checkFormat(format, formatCSV, formatJSON); err != nil {
		return err
	}
	name, err := e.connect(target)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	opts := database.SelectOptions{Where: where}
	info, _ := e.manager.GetConnection(name)
	if ts, err := e.manager.GetTableStructure(ctx, name, table); err == nil {
		if pk, ok := ts.EditKey(); ok {
			opts.OrderBy = info.Driver.QuoteIdent(pk)
		}
	}

	// No limit: export everything.
	result, err := e.manager.Select(ctx, name, table, opts)
	if err != nil {
		return err
	}
	e.logger.Debug("exported", "connection", name, "table", table, "rows", len(result.Rows))
	return printResult(cmd.OutOrStdout(), result, format)
}
