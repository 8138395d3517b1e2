package resources

import (
	"context"
	"net/url"
	"strings"

	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/validation"
	"github.com/pitabwire/crmconsole/model"
)

// ImagesField is the multipart field of complaint image uploads.
const ImagesField = "images"

// ComplaintQuery is the parameter tuple of a complaint list read.
type ComplaintQuery struct {
	model.ComplaintFilters
	Page
}

// Values renders the query. Search is trimmed and dropped when blank.
func (q ComplaintQuery) Values() url.Values {
	v := url.Values{}
	setIf(v, "status", string(q.Status))
	setIf(v, "priority", string(q.Priority))
	setIf(v, "assignedTo", q.AssignedTo)
	setIf(v, "search", strings.TrimSpace(q.Search))
	setIf(v, "dateFrom", q.DateFrom)
	setIf(v, "dateTo", q.DateTo)
	q.Page.apply(v)
	return v
}

// Complaints covers /complaints.
type Complaints struct {
	base
}

// List reads one page of complaints.
func (s *Complaints) List(ctx context.Context, q ComplaintQuery) (*model.ListResponse[model.Complaint], error) {
	params := q.Values()
	return read(ctx, s.base, querycache.ListKey(ResourceComplaints, params), func(ctx context.Context) (*model.ListResponse[model.Complaint], error) {
		var out model.ListResponse[model.Complaint]
		if err := s.api.Get(ctx, "/complaints", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Get reads one complaint.
func (s *Complaints) Get(ctx context.Context, id string) (*model.Complaint, error) {
	key := s.key(ctx, querycache.DetailKey(ResourceComplaints, id))
	return querycache.Fetch(ctx, s.cache, key, detailTTL, func(ctx context.Context) (*model.Complaint, error) {
		var out model.Complaint
		if err := s.api.Get(ctx, "/complaints/"+escape(id), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Create files a complaint.
func (s *Complaints) Create(ctx context.Context, p model.CreateComplaintPayload) (*model.Complaint, error) {
	p.Subject = strings.TrimSpace(p.Subject)
	p.Description = strings.TrimSpace(p.Description)
	p.ProductModel = strings.TrimSpace(p.ProductModel)
	p.SerialNumber = strings.TrimSpace(p.SerialNumber)
	p.OrderReference = strings.TrimSpace(p.OrderReference)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}

	var out model.Complaint
	if err := s.api.Post(ctx, "/complaints", p, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceComplaints)
	return &out, nil
}

// Update sends a partial update. An empty patch is not sent and yields a
// nil record.
func (s *Complaints) Update(ctx context.Context, id string, patch model.Patch) (*model.Complaint, error) {
	if patch.Empty() {
		return nil, nil
	}
	var out model.Complaint
	if err := s.api.Patch(ctx, "/complaints/"+escape(id), patch, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceComplaints)
	return &out, nil
}

// UpdateStatus moves a complaint to status.
func (s *Complaints) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := s.Update(ctx, id, model.StatusPatch(status))
	return err
}

// Delete removes a complaint.
func (s *Complaints) Delete(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, "/complaints/"+escape(id), nil); err != nil {
		return err
	}
	s.invalidate(ResourceComplaints)
	return nil
}

// AddComment appends a comment and returns the updated complaint.
func (s *Complaints) AddComment(ctx context.Context, id string, p model.CommentPayload) (*model.Complaint, error) {
	p.Text = strings.TrimSpace(p.Text)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	var out model.Complaint
	if err := s.api.Post(ctx, "/complaints/"+escape(id)+"/comments", p, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceComplaints)
	return &out, nil
}

// UploadImages attaches images to a complaint. Every file is sent under
// ImagesField regardless of its Field. The complaint is read uncached first
// and must be in progress or resolved.
func (s *Complaints) UploadImages(ctx context.Context, id string, files []apiclient.File) (*model.Complaint, error) {
	if len(files) == 0 {
		return nil, model.NewValidationError([]model.FieldError{{Field: ImagesField, Code: "required", Message: "Select at least one image"}})
	}
	var current model.Complaint
	if err := s.api.Get(ctx, "/complaints/"+escape(id), nil, &current); err != nil {
		return nil, err
	}
	if !current.AcceptsImages() {
		return nil, model.NewValidationError([]model.FieldError{{
			Field:   "status",
			Code:    "images_not_accepted",
			Message: "Images can only be added to complaints that are in progress or resolved",
		}})
	}
	parts := make([]apiclient.File, len(files))
	for i, f := range files {
		f.Field = ImagesField
		parts[i] = f
	}
	var out model.Complaint
	if err := s.api.Upload(ctx, "/complaints/"+escape(id)+"/images", parts, &out); err != nil {
		return nil, err
	}
	s.invalidate(ResourceComplaints)
	return &out, nil
}

// AssignableUsers lists users a complaint can be assigned to.
func (s *Complaints) AssignableUsers(ctx context.Context) ([]model.UserRef, error) {
	return assignableUsers(ctx, s.base, ResourceComplaints)
}

func assignableUsers(ctx context.Context, b base, resource string) ([]model.UserRef, error) {
	key := querycache.Key{Resource: resource, Operation: "users"}
	return read(ctx, b, key, func(ctx context.Context) ([]model.UserRef, error) {
		var out model.DataResponse[model.UserRef]
		if err := b.api.Get(ctx, "/"+resource+"/users", nil, &out); err != nil {
			return nil, err
		}
		return out.Data, nil
	})
}
