package transport

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/crmconsole/internal/editform"
	"github.com/pitabwire/crmconsole/internal/kanban"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/model"
)

// records serves the per-record routes shared by complaints and leads.
type records[T any] struct {
	fields  []editform.Field
	get     func(ctx context.Context, id string) (*T, error)
	values  func(*T) editform.Values
	status  func(*T) string
	session func() *editform.Session
	board   *kanban.Engine
	remove  func(ctx context.Context, id string) error
}

func (rs *records[T]) detail(w http.ResponseWriter, r *http.Request) {
	id := recordID(r)
	rec, err := rs.get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// recordID reads the {id} route parameter and tags the request span with it.
func recordID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	observability.Annotate(r.Context(), observability.AttrRecordID.String(id))
	return id
}

type editRequest struct {
	Edits map[string]string `json:"edits"`
}

type editResponse[T any] struct {
	Changed bool        `json:"changed"`
	Patch   model.Patch `json:"patch,omitempty"`
	Record  *T          `json:"record,omitempty"`
}

// edit applies the submitted edits against the record as read through the
// request cache, which may lag other users' changes by the detail TTL, and
// sends only the fields that differ. Nothing is sent when the diff is empty.
func (rs *records[T]) edit(w http.ResponseWriter, r *http.Request) {
	id := recordID(r)
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	for name := range req.Edits {
		if !slices.ContainsFunc(rs.fields, func(f editform.Field) bool { return f.Name == name }) {
			WriteValidationError(w, name, "unknown", "Field "+name+" cannot be edited")
			return
		}
	}

	snapshot, err := rs.get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	s := rs.session()
	s.Open(id)
	s.Observe(id, rs.values(snapshot))
	for name, value := range req.Edits {
		s.Set(name, value)
	}

	patch, err := s.Save(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	if patch.Empty() {
		WriteJSON(w, http.StatusOK, editResponse[T]{Changed: false, Record: snapshot})
		return
	}

	updated, err := rs.get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, editResponse[T]{Changed: true, Patch: patch, Record: updated})
}

type moveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type moveResponse struct {
	Outcome  kanban.Outcome `json:"outcome"`
	Updating bool           `json:"updating"`
}

// move applies a kanban drop. Without a from status the record's current
// status is fetched.
func (rs *records[T]) move(w http.ResponseWriter, r *http.Request) {
	id := recordID(r)
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	from := req.From
	if from == "" {
		rec, err := rs.get(r.Context(), id)
		if err != nil {
			WriteError(w, err)
			return
		}
		from = rs.status(rec)
	}

	outcome, err := rs.board.Drop(r.Context(), id, from, req.To)
	if errors.Is(err, kanban.ErrUnknownStatus) {
		WriteValidationError(w, "to", "oneof", "Unknown status "+req.To)
		return
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	status := http.StatusOK
	if outcome == kanban.OutcomeQueued {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, moveResponse{Outcome: outcome, Updating: rs.board.UpdatingRecord(id)})
}

func (rs *records[T]) delete(w http.ResponseWriter, r *http.Request) {
	if err := rs.remove(r.Context(), recordID(r)); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) complaintRecords() *records[model.Complaint] {
	svc := h.services.Complaints
	return &records[model.Complaint]{
		fields:  editform.ComplaintFields,
		get:     svc.Get,
		values:  editform.ComplaintValues,
		status:  func(c *model.Complaint) string { return string(c.Status) },
		session: func() *editform.Session { return editform.NewComplaintSession(svc, h.metrics) },
		board:   h.complaintBoard,
		remove:  svc.Delete,
	}
}

func (h *handlers) leadRecords() *records[model.Lead] {
	svc := h.services.Leads
	return &records[model.Lead]{
		fields:  editform.LeadFields,
		get:     svc.Get,
		values:  editform.LeadValues,
		status:  func(l *model.Lead) string { return string(l.Status) },
		session: func() *editform.Session { return editform.NewLeadSession(svc, h.metrics) },
		board:   h.leadBoard,
		remove:  svc.Delete,
	}
}

func (h *handlers) createComplaint(w http.ResponseWriter, r *http.Request) {
	var p model.CreateComplaintPayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.services.Complaints.Create(r.Context(), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

func (h *handlers) addComment(w http.ResponseWriter, r *http.Request) {
	var p model.CommentPayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	c, err := h.services.Complaints.AddComment(r.Context(), recordID(r), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

func (h *handlers) createLead(w http.ResponseWriter, r *http.Request) {
	var p model.CreateLeadPayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	l, err := h.services.Leads.Create(r.Context(), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, l)
}

func (h *handlers) assignableUsers(list func(context.Context) ([]model.UserRef, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := list(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, model.DataResponse[model.UserRef]{Data: users})
	}
}
