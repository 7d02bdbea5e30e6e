package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/johan-st/dbgrid/internal/database"
)

// Output formats.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (use %s)", format, strings.Join(allowed, ", "))
}

// printTable renders rows with a rounded border. Styles come from a
// renderer bound to w so redirected output carries no escape codes.
func printTable(w io.Writer, headers []string, rows [][]string) {
	r := lipgloss.NewRenderer(w)
	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)
	nullStyle := cellStyle.Foreground(lipgloss.Color("#626262"))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("#626262"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == "NULL":
				return nullStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func printCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes a query result in the requested format.
func printResult(w io.Writer, result *database.QueryResult, format string) error {
	switch format {
	case formatJSON:
		return printJSON(w, resultObjects(result))
	case formatCSV:
		return printCSV(w, result.Columns, resultStrings(result))
	}

	if len(result.Columns) == 0 {
		fmt.Fprintf(w, "%d row(s) affected (%s)\n", result.RowsAffected, result.Duration.Round(time.Millisecond))
		return nil
	}
	printTable(w, result.Columns, resultStrings(result))
	fmt.Fprintf(w, "(%d row(s), %s)\n", len(result.Rows), result.Duration.Round(time.Millisecond))
	return nil
}

func resultStrings(result *database.QueryResult) [][]string {
	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = database.FormatValue(v)
		}
	}
	return rows
}

// resultObjects maps each row to a column keyed object. Blobs become
// strings instead of base64.
func resultObjects(result *database.QueryResult) []map[string]any {
	out := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		m := make(map[string]any, len(result.Columns))
		for i, col := range result.Columns {
			if i >= len(row) {
				break
			}
			if b, ok := row[i].([]byte); ok {
				m[col] = string(b)
				continue
			}
			m[col] = row[i]
		}
		out = append(out, m)
	}
	return out
}
