package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("history is disabled in the config")

func newHistoryCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed queries",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, e)
		}),
	}
	cmd.Flags().StringP("format", "f", formatTable, "output format (table, json)")
	cmd.Flags().String("connection", "", "only queries run against this connection")
	cmd.Flags().IntP("limit", "n", 50, "maximum number of entries")
	return cmd
}

func runHistory(cmd *cobra.Command, e *env) error {
	format, _ := cmd.Flags().GetString("format")
	connection, _ := cmd.Flags().GetString("connection")
	limit, _ := cmd.Flags().GetInt("limit")
	if err := checkFormat(format, formatTable, formatJSON); err != nil {
		return err
	}

	store, err := e.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	records, err := store.ListQueryHistory(connection, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == formatJSON {
		list := make([]map[string]any, 0, len(records))
		for _, r := range records {
			item := map[string]any{
				"time":          r.CreatedAt,
				"session_id":    r.SessionID,
				"connection":    r.Connection,
				"query":         r.Query,
				"duration_ms":   r.Duration.Milliseconds(),
				"rows_affected": r.RowsAffected,
			}
			if r.Error != "" {
				item["error"] = r.Error
			}
			list = append(list, item)
		}
		return printJSON(out, list)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No queries recorded.")
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := humanize.Comma(r.RowsAffected)
		if r.Error != "" {
			status = "error"
		}
		rows = append(rows, []string{
			humanize.Time(r.CreatedAt),
			r.Connection,
			oneLine(r.Query, 60),
			r.Duration.Round(time.Millisecond).String(),
			status,
		})
	}
	printTable(out, []string{"WHEN", "CONNECTION", "QUERY", "TOOK", "ROWS"}, rows)
	return nil
}

func newAuditCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show saved edits and deleted rows",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, e)
		}),
	}
	cmd.Flags().StringP("format", "f", formatTable, "output format (table, json)")
	cmd.Flags().String("action", "", "only entries for this action (update, delete)")
	cmd.Flags().IntP("limit", "n", 50, "maximum number of entries")
	return cmd
}

func runAudit(cmd *cobra.Command, e *env) error {
	format, _ := cmd.Flags().GetString("format")
	action, _ := cmd.Flags().GetString("action")
	limit, _ := cmd.Flags().GetInt("limit")
	if err := checkFormat(format, formatTable, formatJSON); err != nil {
		return err
	}

	store, err := e.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	records, err := store.ListAuditLog(action, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == formatJSON {
		return printJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No audit entries.")
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			humanize.Time(r.CreatedAt),
			r.Action,
			r.Connection,
			r.TableName,
			r.Details,
		})
	}
	printTable(out, []string{"WHEN", "ACTION", "CONNECTION", "TABLE", "DETAILS"}, rows)
	return nil
}

// oneLine collapses whitespace and cuts s to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
