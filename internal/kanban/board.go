// Package kanban partitions records into status columns and turns drops
// between columns into status updates. Column membership always follows the
// last fetched status; a drop never moves a card by itself.
package kanban

import (
	"slices"

	"github.com/pitabwire/crmconsole/model"
)

// Column is one status lane of the board.
type Column[T any] struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Items  []T    `json:"items"`
}

// Columns partitions items by statusOf in the order of statuses. Items with
// a status outside the list are left off the board.
func Columns[T any](items []T, statuses []model.Option, statusOf func(T) string) []Column[T] {
	cols := make([]Column[T], len(statuses))
	for i, s := range statuses {
		cols[i] = Column[T]{Status: s.Value, Label: s.Label, Items: []T{}}
	}
	for _, item := range items {
		st := statusOf(item)
		if i := slices.IndexFunc(statuses, func(o model.Option) bool { return o.Value == st }); i >= 0 {
			cols[i].Items = append(cols[i].Items, item)
		}
	}
	return cols
}

// ComplaintColumns lays complaints out by status.
func ComplaintColumns(items []model.Complaint) []Column[model.Complaint] {
	return Columns(items, model.ComplaintStatuses, func(c model.Complaint) string { return string(c.Status) })
}

// LeadColumns lays leads out by status.
func LeadColumns(items []model.Lead) []Column[model.Lead] {
	return Columns(items, model.LeadStatuses, func(l model.Lead) string { return string(l.Status) })
}
