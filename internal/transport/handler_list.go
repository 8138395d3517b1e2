package transport

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/pitabwire/crmconsole/internal/kanban"
	"github.com/pitabwire/crmconsole/internal/listview"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/model"
)

// listResponse is a list screen. List mode fills Data and Pagination;
// kanban mode fills Columns.
type listResponse[F any, T any] struct {
	View           listview.ViewMode  `json:"view"`
	Params         listview.Params[F] `json:"params"`
	Data           []T                `json:"data"`
	Pagination     *model.Pagination  `json:"pagination,omitempty"`
	ShowPagination bool               `json:"showPagination"`
	Columns        []kanban.Column[T] `json:"columns,omitempty"`
}

// listQuery is the view state carried in the query string.
type listQuery struct {
	view listview.ViewMode
	page int
}

func parseListQuery(q url.Values) (listQuery, error) {
	lq := listQuery{view: listview.ModeList, page: 1}
	if v := q.Get("view"); v != "" {
		lq.view = listview.ViewMode(v)
		if !lq.view.Valid() {
			return lq, invalidParam("view", "View must be list or kanban")
		}
	}
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return lq, invalidParam("page", "Page must be a positive number")
		}
		lq.page = n
	}
	return lq, nil
}

func invalidParam(field, msg string) error {
	return model.NewValidationError([]model.FieldError{{Field: field, Code: "invalid", Message: msg}})
}

func complaintFilters(q url.Values) model.ComplaintFilters {
	return model.ComplaintFilters{
		Status:     model.ComplaintStatus(q.Get("status")),
		Priority:   model.ComplaintPriority(q.Get("priority")),
		AssignedTo: q.Get("assignedTo"),
		Search:     q.Get("search"),
		DateFrom:   q.Get("dateFrom"),
		DateTo:     q.Get("dateTo"),
	}
}

func leadFilters(q url.Values) model.LeadFilters {
	return model.LeadFilters{
		Status:     model.LeadStatus(q.Get("status")),
		AssignedTo: q.Get("assignedTo"),
		Search:     q.Get("search"),
	}
}

// serveList loads one list screen through a fresh controller so the fetch
// parameters are derived exactly as the console derives them.
func serveList[F listview.Filters[F], T any](
	w http.ResponseWriter,
	r *http.Request,
	c *listview.Controller[F, T],
	filters F,
	columns func([]T) []kanban.Column[T],
) {
	lq, err := parseListQuery(r.URL.Query())
	if err != nil {
		WriteError(w, err)
		return
	}

	observability.Annotate(r.Context(), observability.AttrViewMode.String(string(lq.view)))
	c.SetViewMode(lq.view)
	c.SetFilters(filters)
	c.SetPage(lq.page)

	res := c.Refresh(r.Context())
	if res.Status == listview.StatusFailure {
		WriteError(w, res.Err)
		return
	}

	resp := listResponse[F, T]{View: lq.view, Params: c.Params()}
	if lq.view == listview.ModeKanban {
		resp.Columns = columns(res.Items)
	} else {
		resp.Data = res.Items
		resp.Pagination = &res.Pagination
		resp.ShowPagination = c.ShowPagination()
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) listComplaints(w http.ResponseWriter, r *http.Request) {
	serveList(w, r, listview.NewComplaints(h.services.Complaints, h.listOptions()...),
		complaintFilters(r.URL.Query()), kanban.ComplaintColumns)
}

func (h *handlers) listLeads(w http.ResponseWriter, r *http.Request) {
	serveList(w, r, listview.NewLeads(h.services.Leads, h.listOptions()...),
		leadFilters(r.URL.Query()), kanban.LeadColumns)
}
