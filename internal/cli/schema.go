package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newConnectionsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"ls"},
		Short:   "List configured connections",
		Long: `Lists every connection in the config file. SQLite directories and
globs are expanded to the database files they contain.`,
		Args: cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return runConnections(cmd, e)
		}),
	}
	cmd.Flags().StringP("format", "f", formatTable, "output format (table, json)")
	return cmd
}

func runConnections(cmd *cobra.Command, e *env) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, formatTable, formatJSON); err != nil {
		return err
	}
	if _, err := e.connect(""); err != nil {
		return err
	}

	conns := e.manager.ListConnections()
	out := cmd.OutOrStdout()

	if format == formatJSON {
		list := make([]map[string]any, 0, len(conns))
		for _, c := range conns {
			item := map[string]any{
				"name":      c.Name,
				"driver":    c.Driver.String(),
				"read_only": c.ReadOnly,
			}
			if c.Description != "" {
				item["description"] = c.Description
			}
			if c.Path != "" {
				item["path"] = c.Path
				item["size"] = c.Size
				item["mod_time"] = c.ModTime
			}
			list = append(list, item)
		}
		return printJSON(out, list)
	}

	if len(conns) == 0 {
		fmt.Fprintln(out, "No connections configured.")
		return nil
	}

	rows := make([][]string, 0, len(conns))
	for _, c := range conns {
		access := "read-write"
		if c.ReadOnly {
			access = "read-only"
		}
		size, location := "", c.Description
		if c.Path != "" {
			size = humanize.Bytes(uint64(c.Size))
			location = c.Path
		}
		rows = append(rows, []string{c.Name, c.Driver.String(), access, size, location})
	}
	printTable(out, []string{"NAME", "DRIVER", "ACCESS", "SIZE", "LOCATION"}, rows)
	return nil
}

func newTablesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <target>",
		Short: "List the tables and views of a database",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return runTables(cmd, e, args[0])
		}),
	}
	cmd.Flags().StringP("format", "f", formatTable, "output format (table, json)")
	return cmd
}

func runTables(cmd *cobra.Command, e *env, target string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, formatTable, formatJSON); err != nil {
		return err
	}
	name, err := e.connect(target)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	tables, err := e.manager.ListTables(ctx, name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == formatJSON {
		list := make([]map[string]any, 0, len(tables))
		for _, t := range tables {
			list = append(list, map[string]any{
				"name": t.Name,
				"view": t.View,
				"rows": t.RowCount,
			})
		}
		return printJSON(out, list)
	}

	rows := make([][]string, 0, len(tables))
	for _, t := range tables {
		kind := "table"
		if t.View {
			kind = "view"
		}
		count := "?"
		if t.RowCount >= 0 {
			count = humanize.Comma(t.RowCount)
		}
		rows = append(rows, []string{t.Name, kind, count})
	}
	printTable(out, []string{"NAME", "TYPE", "ROWS"}, rows)
	return nil
}

func newSchemaCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <target> <table>",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(2),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, e, args[0], args[1])
		}),
	}
	cmd.Flags().StringP("format", "f", formatTable, "output format (table, json)")
	return cmd
}

func runSchema(cmd *cobra.Command, e *env, target, table string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, formatTable, formatJSON); err != nil {
		return err
	}
	name, err := e.connect(target)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	ts, err := e.manager.GetTableStructure(ctx, name, table)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == formatJSON {
		cols := make([]map[string]any, 0, len(ts.Columns))
		for _, c := range ts.Columns {
			col := map[string]any{
				"name":        c.Name,
				"type":        c.Type,
				"nullable":    c.Nullable,
				"primary_key": c.PrimaryKey,
			}
			if c.DefaultValue.Valid {
				col["default"] = c.DefaultValue.String
			}
			cols = append(cols, col)
		}
		return printJSON(out, map[string]any{
			"table":       ts.Table,
			"primary_key": ts.PrimaryKey,
			"columns":     cols,
		})
	}

	rows := make([][]string, 0, len(ts.Columns))
	for _, c := range ts.Columns {
		null, pk, def := "", "", ""
		if c.Nullable {
			null = "yes"
		}
		if c.PrimaryKey {
			pk = "yes"
		}
		if c.DefaultValue.Valid {
			def = c.DefaultValue.String
		}
		rows = append(rows, []string{c.Name, c.Type, null, def, pk})
	}
	printTable(out, []string{"COLUMN", "TYPE", "NULL", "DEFAULT", "PK"}, rows)
	if _, ok := ts.EditKey(); !ok {
		fmt.Fprintln(out, "No single-column primary key: rows are read-only in the browser.")
	}
	return nil
}
