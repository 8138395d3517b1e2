package listview

import (
	"context"

	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/model"
)

// Complaints is the complaint list controller.
type Complaints = Controller[model.ComplaintFilters, model.Complaint]

// Leads is the lead list controller.
type Leads = Controller[model.LeadFilters, model.Lead]

// NewComplaints creates a complaint list over the complaints resource.
func NewComplaints(svc *resources.Complaints, opts ...Option) *Complaints {
	fetch := func(ctx context.Context, p Params[model.ComplaintFilters]) (*model.ListResponse[model.Complaint], error) {
		return svc.List(ctx, resources.ComplaintQuery{
			ComplaintFilters: p.Filters,
			Page:             resources.Page{Page: p.Page, Limit: p.Limit},
		})
	}
	return New(resources.ResourceComplaints, fetch, opts...)
}

// NewLeads creates a lead list over the leads resource.
func NewLeads(svc *resources.Leads, opts ...Option) *Leads {
	fetch := func(ctx context.Context, p Params[model.LeadFilters]) (*model.ListResponse[model.Lead], error) {
		return svc.List(ctx, resources.LeadQuery{
			LeadFilters: p.Filters,
			Page:        resources.Page{Page: p.Page, Limit: p.Limit},
		})
	}
	return New(resources.ResourceLeads, fetch, opts...)
}
