package model

import "time"

// LeadStatus is the pipeline stage of a lead.
type LeadStatus string

// Lead statuses, in kanban column order.
const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadProposal  LeadStatus = "proposal"
	LeadClosed    LeadStatus = "closed"
)

// LeadStatuses lists every lead status with its display label.
var LeadStatuses = []Option{
	{Value: string(LeadNew), Label: "New"},
	{Value: string(LeadContacted), Label: "Contacted"},
	{Value: string(LeadProposal), Label: "Proposal"},
	{Value: string(LeadClosed), Label: "Closed"},
}

// LeadSource records where a lead came from.
type LeadSource string

const (
	SourceWebsite  LeadSource = "website"
	SourceReferral LeadSource = "referral"
	SourceColdCall LeadSource = "cold_call"
	SourceCampaign LeadSource = "campaign"
	SourceOther    LeadSource = "other"
)

// LeadSources lists every lead source with its display label.
var LeadSources = []Option{
	{Value: string(SourceWebsite), Label: "Website"},
	{Value: string(SourceReferral), Label: "Referral"},
	{Value: string(SourceColdCall), Label: "Cold call"},
	{Value: string(SourceCampaign), Label: "Campaign"},
	{Value: string(SourceOther), Label: "Other"},
}

// Lead is a sales lead as returned by the CRM API.
type Lead struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email,omitempty"`
	Company    string     `json:"company,omitempty"`
	Status     LeadStatus `json:"status"`
	Source     LeadSource `json:"source,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	AssignedTo *UserRef   `json:"assignedTo,omitempty"`
	CreatedBy  *UserRef   `json:"createdBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt,omitzero"`
	UpdatedAt  time.Time  `json:"updatedAt,omitzero"`
}

// CreateLeadPayload is the body of POST /leads.
type CreateLeadPayload struct {
	Name       string     `json:"name" validate:"notblank"`
	Phone      string     `json:"phone" validate:"notblank"`
	Email      string     `json:"email,omitempty" validate:"omitempty,email"`
	Company    string     `json:"company,omitempty"`
	Status     LeadStatus `json:"status,omitempty" validate:"omitempty,oneof=new contacted proposal closed"`
	Source     LeadSource `json:"source,omitempty" validate:"omitempty,oneof=website referral cold_call campaign other"`
	Notes      string     `json:"notes,omitempty"`
	AssignedTo string     `json:"assignedTo,omitempty"`
}

// LeadFilters are the list filters of the lead view.
type LeadFilters struct {
	Status     LeadStatus `json:"status,omitempty"`
	AssignedTo string     `json:"assignedTo,omitempty"`
	Search     string     `json:"search,omitempty"`
}

// BulkUploadResult is returned by POST /leads/bulk-upload.
type BulkUploadResult struct {
	Created int              `json:"created"`
	Failed  int              `json:"failed"`
	Errors  []BulkUploadFail `json:"errors,omitempty"`
}

// BulkUploadFail describes one rejected spreadsheet row.
type BulkUploadFail struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ExportFormat is the file format of a lead export.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// Valid reports whether f is a supported export format.
func (f ExportFormat) Valid() bool {
	return f == ExportCSV || f == ExportXLSX
}

// SearchTerm returns the committed search text.
func (f LeadFilters) SearchTerm() string { return f.Search }

// WithSearch returns a copy with the search text replaced.
func (f LeadFilters) WithSearch(s string) LeadFilters {
	f.Search = s
	return f
}

// WithoutStatus returns a copy with the status filter cleared.
func (f LeadFilters) WithoutStatus() LeadFilters {
	f.Status = ""
	return f
}
