package resources

import (
	"context"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/validation"
	"github.com/pitabwire/crmconsole/model"
)

// BulkUploadField is the multipart field of lead spreadsheet uploads.
const BulkUploadField = "file"

// BulkUploadExtensions are the spreadsheet types the import accepts.
var BulkUploadExtensions = []string{".csv", ".xlsx"}

// LeadQuery is the parameter tuple of a lead list read.
type LeadQuery struct {
	model.LeadFilters
	Page
}

// Values renders the query. Search is trimmed and dropped when blank.
func (q LeadQuery) Values() url.Values {
	v := filterValues(q.LeadFilters)
	q.Page.apply(v)
	return v
}

func filterValues(f model.LeadFilters) url.Values {
	v := url.Values{}
	setIf(v, "status", string(f.Status))
	setIf(v, "assignedTo", f.AssignedTo)
	setIf(v, "search", strings.TrimSpace(f.Search))
	return v
}

// Leads covers /leads.
type Leads struct {
	base
}

// List reads one page of leads.
func (s *Leads) List(ctx context.Context, q LeadQuery) (*model.ListResponse[model.Lead], error) {
	params := q.Values()
	return read(ctx, s.base, querycache.ListKey(ResourceLeads, params), func(ctx context.Context) (*model.ListResponse[model.Lead], error) {
		var out model.ListResponse[model.Lead]
		if err := s.api.Get(ctx, "/leads", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Get reads one lead.
func (s *Leads) Get(ctx context.Context, id string) (*model.Lead, error) {
	key := s.key(ctx, querycache.DetailKey(ResourceLeads, id))
	return querycache.Fetch(ctx, s.cache, key, detailTTL, func(ctx context.Context) (*model.Lead, error) {
		var out model.Lead
		if err := s.api.Get(ctx, "/leads/"+escape(id), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Create adds a lead.
func (s *Leads) Create(ctx context.Context, p model.CreateLeadPayload) (*model.Lead, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	p.Company = strings.TrimSpace(p.Company)
	p.Notes = strings.TrimSpace(p.Notes)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}

	var out model.Lead
	if err := s.api.Post(ctx, "/leads", p, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceLeads)
	return &out, nil
}

// Update sends a partial update. An empty patch is not sent and yields a
// nil record.
func (s *Leads) Update(ctx context.Context, id string, patch model.Patch) (*model.Lead, error) {
	if patch.Empty() {
		return nil, nil
	}
	var out model.Lead
	if err := s.api.Patch(ctx, "/leads/"+escape(id), patch, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceLeads)
	return &out, nil
}

// UpdateStatus moves a lead to status.
func (s *Leads) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := s.Update(ctx, id, model.StatusPatch(status))
	return err
}

// Delete removes a lead.
func (s *Leads) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, "/leads/"+escape(id), nil); err != nil {
		return err
	}
	s.invalidate(ResourceLeads)
	return nil
}

// BulkUpload imports a CSV or XLSX spreadsheet of leads.
func (s *Leads) BulkUpload(ctx context.Context, file apiclient.File) (*model.BulkUploadResult, error) {
	if file.Reader == nil {
		return nil, model.NewValidationError([]model.FieldError{{Field: BulkUploadField, Code: "required", Message: "Select a CSV or XLSX file"}})
	}
	if !slices.Contains(BulkUploadExtensions, strings.ToLower(filepath.Ext(file.Name))) {
		return nil, model.NewValidationError([]model.FieldError{{Field: BulkUploadField, Code: "filetype", Message: "Only .csv and .xlsx files are accepted"}})
	}
	file.Field = BulkUploadField
	var out model.BulkUploadResult
	if err := s.api.Upload(ctx, "/leads/bulk-upload", []apiclient.File{file}, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceLeads)
	return &out, nil
}

// Export downloads the leads matching filters. Exports are never cached.
func (s *Leads) Export(ctx context.Context, format model.ExportFormat, filters model.LeadFilters) (*apiclient.Blob, error) {
	if !format.Valid() {
		return nil, model.NewValidationError([]model.FieldError{{Field: "format", Code: "oneof", Message: "Format must be one of: csv, xlsx"}})
	}
	params := filterValues(filters)
	params.Set("format", string(format))
	return s.api.Download(ctx, "/leads/export", params, "leads_export."+string(format))
}

// AssignableUsers lists users a lead can be assigned to.
func (s *Leads) AssignableUsers(ctx context.Context) ([]model.UserRef, error) {
	return assignableUsers(ctx, s.base, ResourceLeads)
}
