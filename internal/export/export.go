// Package export renders record tables as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pitabwire/crmconsole/model"
)

// DateLayout formats timestamps in exported rows.
const DateLayout = "2006-01-02 15:04"

// Table is a header row plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ComplaintTable lays complaints out as Subject, User, Status, Priority,
// Product, Created.
func ComplaintTable(items []model.Complaint) Table {
	t := Table{Headers: []string{"Subject", "User", "Status", "Priority", "Product", "Created"}}
	for _, c := range items {
		t.Rows = append(t.Rows, []string{
			c.Subject,
			c.User.DisplayName(),
			string(c.Status),
			string(c.Priority),
			c.ProductModel,
			formatTime(c.CreatedAt),
		})
	}
	return t
}

// LeadTable lays leads out as Name, Phone, Email, Company, Status, Source,
// Assigned to, Created.
func LeadTable(items []model.Lead) Table {
	t := Table{Headers: []string{"Name", "Phone", "Email", "Company", "Status", "Source", "Assigned to", "Created"}}
	for _, l := range items {
		t.Rows = append(t.Rows, []string{
			l.Name,
			l.Phone,
			l.Email,
			l.Company,
			string(l.Status),
			string(l.Source),
			l.AssignedTo.DisplayName(),
			formatTime(l.CreatedAt),
		})
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// Write renders t in format.
func Write(w io.Writer, format model.ExportFormat, sheet string, t Table) error {
	switch format {
	case model.ExportCSV:
		return WriteCSV(w, t)
	case model.ExportXLSX:
		return WriteXLSX(w, sheet, t)
	default:
		return fmt.Errorf("export: unsupported format %q", format)
	}
}

// WriteCSV writes t as CSV with LF line endings. Fields containing a comma,
// quote or line break are quoted.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("export: writing csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("export: writing csv rows: %w", err)
	}
	return nil
}

// WriteXLSX writes t to a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, sheet string, t Table) error {
	if sheet == "" {
		sheet = "Sheet1"
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("export: naming sheet: %w", err)
	}

	if err := setRow(f, sheet, 1, t.Headers); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: creating header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("export: styling header: %w", err)
	}
	for i, row := range t.Rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("export: row %d: %w", n, err)
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("export: row %d: %w", n, err)
	}
	return nil
}

// Filename appends the format's extension to name unless already present.
func Filename(name string, format model.ExportFormat) string {
	ext := "." + string(format)
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	return name + ext
}

// DatedFilename returns "<prefix>-YYYY-MM-DD.<ext>".
func DatedFilename(prefix string, now time.Time, format model.ExportFormat) string {
	return Filename(prefix+"-"+now.Format("2006-01-02"), format)
}

// ContentType returns the MIME type of format.
func ContentType(format model.ExportFormat) string {
	if format == model.ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}
