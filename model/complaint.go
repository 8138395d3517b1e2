package model

import "time"

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

// Complaint statuses, in kanban column order.
const (
	ComplaintOpen       ComplaintStatus = "open"
	ComplaintInProgress ComplaintStatus = "in_progress"
	ComplaintResolved   ComplaintStatus = "resolved"
	ComplaintClosed     ComplaintStatus = "closed"
)

// ComplaintStatuses lists every complaint status with its display label.
var ComplaintStatuses = []Option{
	{Value: string(ComplaintOpen), Label: "Open"},
	{Value: string(ComplaintInProgress), Label: "In progress"},
	{Value: string(ComplaintResolved), Label: "Resolved"},
	{Value: string(ComplaintClosed), Label: "Closed"},
}

// AcceptsImages reports whether images may be attached to a complaint in
// this status.
func (s ComplaintStatus) AcceptsImages() bool {
	return s == ComplaintInProgress || s == ComplaintResolved
}

// AcceptsImages reports whether images may be attached to c.
func (c *Complaint) AcceptsImages() bool {
	return c.Status.AcceptsImages()
}

// ComplaintPriority ranks complaints.
type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
)

// ComplaintPriorities lists every priority with its display label.
var ComplaintPriorities = []Option{
	{Value: string(PriorityLow), Label: "Low"},
	{Value: string(PriorityMedium), Label: "Medium"},
	{Value: string(PriorityHigh), Label: "High"},
}

// Complaint is a customer complaint as returned by the CRM API.
type Complaint struct {
	ID             string            `json:"_id"`
	User           *UserRef          `json:"user,omitempty"`
	AssignedTo     *UserRef          `json:"assignedTo,omitempty"`
	Subject        string            `json:"subject"`
	Description    string            `json:"description"`
	Status         ComplaintStatus   `json:"status"`
	Priority       ComplaintPriority `json:"priority"`
	ProductModel   string            `json:"productModel,omitempty"`
	SerialNumber   string            `json:"serialNumber,omitempty"`
	OrderReference string            `json:"orderReference,omitempty"`
	InternalNotes  string            `json:"internalNotes,omitempty"`
	Images         []string          `json:"images,omitempty"`
	Comments       []Comment         `json:"comments,omitempty"`
	CreatedAt      time.Time         `json:"createdAt,omitzero"`
	UpdatedAt      time.Time         `json:"updatedAt,omitzero"`
}

// Comment is a note attached to a complaint.
type Comment struct {
	ID        string    `json:"_id"`
	Author    *UserRef  `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// CreateComplaintPayload is the body of POST /complaints.
type CreateComplaintPayload struct {
	Subject        string            `json:"subject" validate:"notblank"`
	Description    string            `json:"description" validate:"notblank"`
	Priority       ComplaintPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	ProductModel   string            `json:"productModel,omitempty"`
	SerialNumber   string            `json:"serialNumber,omitempty"`
	OrderReference string            `json:"orderReference,omitempty"`
	AssignedTo     string            `json:"assignedTo,omitempty"`
}

// CommentPayload is the body of POST /complaints/{id}/comments.
type CommentPayload struct {
	Text string `json:"text" validate:"notblank"`
}

// ComplaintFilters are the list filters of the complaint view. Empty fields
// are omitted from the request.
type ComplaintFilters struct {
	Status     ComplaintStatus   `json:"status,omitempty"`
	Priority   ComplaintPriority `json:"priority,omitempty"`
	AssignedTo string            `json:"assignedTo,omitempty"`
	Search     string            `json:"search,omitempty"`
	DateFrom   string            `json:"dateFrom,omitempty"`
	DateTo     string            `json:"dateTo,omitempty"`
}

// SearchTerm returns the committed search text.
func (f ComplaintFilters) SearchTerm() string { return f.Search }

// WithSearch returns a copy with the search text replaced.
func (f ComplaintFilters) WithSearch(s string) ComplaintFilters {
	f.Search = s
	return f
}

// WithoutStatus returns a copy with the status filter cleared.
func (f ComplaintFilters) WithoutStatus() ComplaintFilters {
	f.Status = ""
	return f
}
