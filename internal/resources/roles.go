package resources

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/validation"
	"github.com/pitabwire/crmconsole/model"
)

var rolesConfigKey = querycache.Key{Resource: ResourceConfig, Operation: "roles"}

// Roles covers /roles and the role-and-module configuration.
type Roles struct {
	base

	mu        sync.Mutex
	onChanges []func()
}

// OnChange registers fn to run after every successful role mutation.
func (s *Roles) OnChange(fn func()) {
	s.mu.Lock()
	s.onChanges = append(s.onChanges, fn)
	s.mu.Unlock()
}

func (s *Roles) changed() {
	s.invalidate(ResourceRoles, ResourceConfig)
	s.mu.Lock()
	fns := slices.Clone(s.onChanges)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// List reads every role.
func (s *Roles) List(ctx context.Context) ([]model.RoleRecord, error) {
	return read(ctx, s.base, querycache.Key{Resource: ResourceRoles, Operation: "list"}, func(ctx context.Context) ([]model.RoleRecord, error) {
		var out model.DataResponse[model.RoleRecord]
		if err := s.api.Get(ctx, "/roles", nil, &out); err != nil {
			return nil, err
		}
		return out.Data, nil
	})
}

// Create adds a role. The name is lower-cased and a wildcard grant replaces
// any other module ids.
func (s *Roles) Create(ctx context.Context, p model.CreateRolePayload) (*model.RoleRecord, error) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.Label = strings.TrimSpace(p.Label)
	p.ModuleIDs = normalizeModuleIDs(p.ModuleIDs)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	var out model.RoleRecord
	if err := s.api.Post(ctx, "/roles", p, &out); err != nil {
		return nil, err
	}
	s.changed()
	return &out, nil
}

// Update changes a role's label or module grants.
func (s *Roles) Update(ctx context.Context, id string, p model.UpdateRolePayload) (*model.RoleRecord, error) {
	if p.Label != nil {
		label := strings.TrimSpace(*p.Label)
		if label == "" {
			return nil, model.NewValidationError([]model.FieldError{{Field: "label", Code: "notblank", Message: "Label is required"}})
		}
		p.Label = &label
	}
	if p.ModuleIDs != nil {
		ids := normalizeModuleIDs(*p.ModuleIDs)
		p.ModuleIDs = &ids
	}
	var out model.RoleRecord
	if err := s.api.Patch(ctx, "/roles/"+escape(id), p, &out); err != nil {
		return nil, err
	}
	s.changed()
	return &out, nil
}

func normalizeModuleIDs(ids []string) []string {
	if slices.Contains(ids, model.Wildcard) {
		return []string{model.Wildcard}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

// RolesConfig reads the server's role labels and module list.
func (s *Roles) RolesConfig(ctx context.Context) (model.RolesConfig, error) {
	cfg, err := read(ctx, s.base, rolesConfigKey, func(ctx context.Context) (*model.RolesConfig, error) {
		var out model.RolesConfig
		if err := s.api.Get(ctx, "/config/roles", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return model.RolesConfig{}, err
	}
	return *cfg, nil
}
