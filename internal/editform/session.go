package editform

import (
	"context"
	"maps"
	"strings"
	"sync"

	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/internal/validation"
	"github.com/pitabwire/crmconsole/model"
)

// Saver sends a partial update of record id.
type Saver func(ctx context.Context, id string, patch model.Patch) error

// Session is the edit state of one open detail dialog. Edits are seeded from
// the first snapshot of the opened record; later snapshots do not touch
// them until a save succeeds. Only fields changed through Set are diffed, so
// untouched fields never carry a stale seed back to the server.
type Session struct {
	resource string
	fields   []Field
	save     Saver
	metrics  *observability.Metrics

	mu       sync.Mutex
	id       string
	seeded   bool
	snapshot Values
	edits    Values
	touched  map[string]bool
	dirty    bool
}

// NewSession creates a Session over fields.
func NewSession(resource string, fields []Field, save Saver, metrics *observability.Metrics) *Session {
	return &Session{resource: resource, fields: fields, save: save, metrics: metrics}
}

// NewComplaintSession edits complaints.
func NewComplaintSession(svc *resources.Complaints, metrics *observability.Metrics) *Session {
	return NewSession(resources.ResourceComplaints, ComplaintFields, func(ctx context.Context, id string, p model.Patch) error {
		_, err := svc.Update(ctx, id, p)
		return err
	}, metrics)
}

// NewLeadSession edits leads.
func NewLeadSession(svc *resources.Leads, metrics *observability.Metrics) *Session {
	return NewSession(resources.ResourceLeads, LeadFields, func(ctx context.Context, id string, p model.Patch) error {
		_, err := svc.Update(ctx, id, p)
		return err
	}, metrics)
}

// Open starts editing record id and forgets any previous record.
func (s *Session) Open(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.seeded = false
	s.snapshot = nil
	s.edits = nil
	s.touched = nil
	s.dirty = false
}

// ID returns the open record id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Observe records a fetched snapshot of record id. The first snapshot seeds
// the edits; later ones only update the comparison base. Snapshots of a
// record that is not open are ignored.
func (s *Session) Observe(id string, snapshot Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.id {
		return
	}
	s.snapshot = maps.Clone(snapshot)
	if !s.seeded {
		s.edits = maps.Clone(snapshot)
		s.seeded = true
	}
}

// Seeded reports whether the edits have been seeded.
func (s *Session) Seeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeded
}

// Set changes one edited value and marks the session dirty.
func (s *Session) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edits == nil {
		s.edits = Values{}
	}
	if s.touched == nil {
		s.touched = map[string]bool{}
	}
	s.edits[name] = value
	s.touched[name] = true
	s.dirty = true
}

// Value returns the edited value of name.
func (s *Session) Value(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edits[name]
}

// Dirty reports whether there are unsaved edits.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Patch returns the payload a save would send now.
func (s *Session) Patch() model.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patchLocked()
}

func (s *Session) patchLocked() model.Patch {
	changed := make(Values, len(s.touched))
	for name := range s.touched {
		changed[name] = s.edits[name]
	}
	return Diff(s.snapshot, changed, s.fields)
}

// Save sends the diff against the latest snapshot. A clean session or an
// empty diff sends nothing and clears the dirty flag. On success the next
// snapshot re-seeds the edits; on failure the edits stay dirty.
func (s *Session) Save(ctx context.Context) (model.Patch, error) {
	s.mu.Lock()
	id := s.id
	if !s.dirty {
		s.mu.Unlock()
		return nil, nil
	}
	if err := s.checkRequiredLocked(); err != nil {
		s.mu.Unlock()
		s.metrics.RecordEditSave(s.resource, "invalid")
		return nil, err
	}
	patch := s.patchLocked()
	if patch.Empty() {
		s.dirty = false
		s.mu.Unlock()
		s.metrics.RecordEditSave(s.resource, "noop")
		return nil, nil
	}
	s.mu.Unlock()

	if err := s.save(ctx, id, patch); err != nil {
		s.metrics.RecordEditSave(s.resource, "failed")
		return patch, err
	}

	s.mu.Lock()
	if s.id == id {
		s.dirty = false
		s.seeded = false
		s.touched = nil
	}
	s.mu.Unlock()
	s.metrics.RecordEditSave(s.resource, "saved")
	return patch, nil
}

func (s *Session) checkRequiredLocked() error {
	var details []model.FieldError
	for _, f := range s.fields {
		if !f.Required {
			continue
		}
		if v, ok := s.edits[f.Name]; ok && strings.TrimSpace(v) == "" {
			details = append(details, model.FieldError{
				Field:   f.Name,
				Code:    "notblank",
				Message: validation.Humanize(f.Name) + " is required",
			})
		}
	}
	if len(details) > 0 {
		return model.NewValidationError(details)
	}
	return nil
}
