package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pitabwire/crmconsole/internal/export"
	"github.com/pitabwire/crmconsole/internal/kanban"
	"github.com/pitabwire/crmconsole/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable prints t as aligned columns.
func writeTable(w io.Writer, t export.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "\n", " ")
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func writePagination(w io.Writer, p model.Pagination, show bool) {
	if !show {
		fmt.Fprintf(w, "%d total\n", p.Total)
		return
	}
	fmt.Fprintf(w, "Page %d of %d (%d total)\n", p.Page, p.TotalPages, p.Total)
}

// writeBoard prints one block per column with a card per line.
func writeBoard[T any](w io.Writer, cols []kanban.Column[T], card func(T) string) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s (%d)\n", col.Label, len(col.Items))
		for _, item := range col.Items {
			fmt.Fprintf(w, "  %s\n", card(item))
		}
	}
}

func complaintCard(c model.Complaint) string {
	return fmt.Sprintf("[%s] %s  %s  %s", c.ID, c.Subject, c.Priority, c.User.DisplayName())
}

func leadCard(l model.Lead) string {
	return fmt.Sprintf("[%s] %s  %s  %s", l.ID, l.Name, l.Phone, l.AssignedTo.DisplayName())
}

// withIDs prepends an ID column to t.
func withIDs(t export.Table, ids []string) export.Table {
	out := export.Table{Headers: append([]string{"ID"}, t.Headers...)}
	for i, row := range t.Rows {
		out.Rows = append(out.Rows, append([]string{ids[i]}, row...))
	}
	return out
}
