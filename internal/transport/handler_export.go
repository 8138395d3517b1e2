package transport

import (
	"bytes"
	"net/http"

	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/export"
	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/model"
)

// maxUploadBytes bounds bulk upload spreadsheets.
const maxUploadBytes = 10 << 20

func exportFormat(r *http.Request) model.ExportFormat {
	if f := r.URL.Query().Get("format"); f != "" {
		return model.ExportFormat(f)
	}
	return model.ExportCSV
}

// exportLeads streams the server-side lead export for the current filters.
func (h *handlers) exportLeads(w http.ResponseWriter, r *http.Request) {
	blob, err := h.services.Leads.Export(r.Context(), exportFormat(r), leadFilters(r.URL.Query()))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteBlob(w, blob)
}

// exportComplaints renders the complaints matching the current filters.
// The CRM API has no complaint export, so the file is built here from one
// list read bounded by the kanban limit.
func (h *handlers) exportComplaints(w http.ResponseWriter, r *http.Request) {
	format := exportFormat(r)
	if !format.Valid() {
		WriteValidationError(w, "format", "oneof", "Format must be one of: csv, xlsx")
		return
	}

	resp, err := h.services.Complaints.List(r.Context(), resources.ComplaintQuery{
		ComplaintFilters: complaintFilters(r.URL.Query()),
		Page:             resources.Page{Page: 1, Limit: h.kanbanLimit},
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, "Complaints", export.ComplaintTable(resp.Data)); err != nil {
		WriteError(w, err)
		return
	}
	WriteBlob(w, &apiclient.Blob{
		Body:        buf.Bytes(),
		Filename:    export.DatedFilename("complaints", h.now(), format),
		ContentType: export.ContentType(format),
	})
}

// bulkUploadLeads forwards a spreadsheet upload to the CRM API.
func (h *handlers) bulkUploadLeads(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteValidationError(w, resources.BulkUploadField, "required", "Select a CSV or XLSX file")
		return
	}
	file, header, err := r.FormFile(resources.BulkUploadField)
	if err != nil {
		WriteValidationError(w, resources.BulkUploadField, "required", "Select a CSV or XLSX file")
		return
	}
	defer file.Close()

	res, err := h.services.Leads.BulkUpload(r.Context(), apiclient.File{Name: header.Filename, Reader: file})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
