// Package editform builds minimal update payloads for the detail dialogs
// and keeps local edits from being overwritten by background refetches.
package editform

import (
	"strings"

	"github.com/pitabwire/crmconsole/model"
)

// Kind selects how a field is compared.
type Kind int

const (
	// Text fields compare trimmed. A blank edit clears the field.
	Text Kind = iota
	// Enum fields compare exactly. A blank edit means "unchanged".
	Enum
	// Ref fields hold an id and compare exactly. A blank edit clears the
	// reference.
	Ref
)

// Field describes one editable field.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Values holds field values by name.
type Values map[string]string

// Diff returns the fields of edits whose value differs from snapshot. Only
// fields present in edits are considered.
func Diff(snapshot, edits Values, fields []Field) model.Patch {
	patch := model.Patch{}
	for _, f := range fields {
		edited, ok := edits[f.Name]
		if !ok {
			continue
		}
		current := snapshot[f.Name]

		switch f.Kind {
		case Text:
			edited, current = strings.TrimSpace(edited), strings.TrimSpace(current)
			if edited == current {
				continue
			}
			if edited == "" {
				patch[f.Name] = nil
				continue
			}
			patch[f.Name] = edited
		case Enum:
			if edited == "" || edited == current {
				continue
			}
			patch[f.Name] = edited
		case Ref:
			if edited == current {
				continue
			}
			if edited == "" {
				patch[f.Name] = nil
				continue
			}
			patch[f.Name] = edited
		}
	}
	return patch
}

// ComplaintFields are editable in the complaint dialog.
var ComplaintFields = []Field{
	{Name: "status", Kind: Enum},
	{Name: "priority", Kind: Enum},
	{Name: "internalNotes", Kind: Text},
	{Name: "assignedTo", Kind: Ref},
}

// LeadFields are editable in the lead dialog.
var LeadFields = []Field{
	{Name: "name", Kind: Text, Required: true},
	{Name: "phone", Kind: Text, Required: true},
	{Name: "email", Kind: Text},
	{Name: "company", Kind: Text},
	{Name: "status", Kind: Enum},
	{Name: "source", Kind: Enum},
	{Name: "notes", Kind: Text},
	{Name: "assignedTo", Kind: Ref},
}

// ComplaintValues extracts the editable fields of c.
func ComplaintValues(c *model.Complaint) Values {
	return Values{
		"status":        string(c.Status),
		"priority":      string(c.Priority),
		"internalNotes": c.InternalNotes,
		"assignedTo":    refID(c.AssignedTo),
	}
}

// LeadValues extracts the editable fields of l.
func LeadValues(l *model.Lead) Values {
	return Values{
		"name":       l.Name,
		"phone":      l.Phone,
		"email":      l.Email,
		"company":    l.Company,
		"status":     string(l.Status),
		"source":     string(l.Source),
		"notes":      l.Notes,
		"assignedTo": refID(l.AssignedTo),
	}
}

func refID(u *model.UserRef) string {
	if u == nil {
		return ""
	}
	return u.ID
}
