// Package access decides which console modules a user may open. Decisions
// use the server-supplied grant list when present and a static role table
// otherwise. Roles missing from the static table are allowed; the CRM API
// enforces access on every request.
package access

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/crmconsole/model"
)

// Role is a known console role.
type Role string

// Known roles.
const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleViewer     Role = "viewer"
	RoleTechnician Role = "technician"
)

// KnownRoles lists the roles of the static table in display order.
var KnownRoles = []Role{RoleAdmin, RoleUser, RoleViewer, RoleTechnician}

// EmptyLabel is shown for a missing role.
const EmptyLabel = "—"

// Policy is the static fallback table consulted when the server supplies no
// explicit grant list.
type Policy struct {
	Roles  map[Role]model.ModuleGrants `yaml:"roles"`
	Labels map[Role]string             `yaml:"labels"`
}

// DefaultPolicy returns the compiled-in role table.
func DefaultPolicy() *Policy {
	return &Policy{
		Roles: map[Role]model.ModuleGrants{
			RoleAdmin:      {model.Wildcard},
			RoleUser:       {ModuleDashboard, ModuleComplaints, ModuleLeads},
			RoleViewer:     {ModuleDashboard},
			RoleTechnician: {ModuleDashboard, ModuleComplaints},
		},
		Labels: map[Role]string{
			RoleAdmin:      "Admin",
			RoleUser:       "User",
			RoleViewer:     "Viewer",
			RoleTechnician: "Technician",
		},
	}
}

var defaultPolicy = DefaultPolicy()

// LoadPolicy reads a YAML role table from path.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("access: reading policy file %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("access: parsing policy file %s: %w", path, err)
	}
	if len(p.Roles) == 0 {
		return nil, fmt.Errorf("access: policy file %s defines no roles", path)
	}
	for role, grants := range p.Roles {
		if grants == nil {
			// A role listed with no modules grants nothing.
			p.Roles[role] = model.ModuleGrants{}
		}
	}
	return &p, nil
}

// CanAccess reports whether role may open moduleID. When grants were
// supplied by the server they are authoritative, and an empty list grants
// nothing. Otherwise an empty or unknown role is allowed and a known role is
// checked against the table.
func (p *Policy) CanAccess(role, moduleID string, grants model.ModuleGrants) bool {
	if grants.Supplied() {
		return grants.Has(moduleID)
	}
	if role == "" {
		return true
	}
	entry, ok := p.Roles[Role(role)]
	switch {
	case !ok:
		return true
	default:
		return entry.Has(moduleID)
	}
}

// Label returns the static label of role, or "" when unknown.
func (p *Policy) Label(role string) string {
	return p.Labels[Role(role)]
}

// RoleOptions returns the table as role options, known roles first.
func (p *Policy) RoleOptions() []model.RoleOption {
	var roles []Role
	for role := range p.Roles {
		roles = append(roles, role)
	}
	slices.SortFunc(roles, func(a, b Role) int {
		ia, ib := slices.Index(KnownRoles, a), slices.Index(KnownRoles, b)
		switch {
		case ia >= 0 && ib >= 0:
			return ia - ib
		case ia >= 0:
			return -1
		case ib >= 0:
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})

	out := make([]model.RoleOption, 0, len(roles))
	for _, role := range roles {
		label := p.Label(string(role))
		if label == "" {
			label = string(role)
		}
		out = append(out, model.RoleOption{ID: string(role), Label: label, ModuleIDs: p.Roles[role]})
	}
	return out
}

// CanAccessModule checks role against the compiled-in table.
func CanAccessModule(role, moduleID string, grants model.ModuleGrants) bool {
	return defaultPolicy.CanAccess(role, moduleID, grants)
}

// RoleLabel returns the label of role from the server-provided list, then
// the static table, then the raw role. An empty role yields EmptyLabel.
func RoleLabel(role string, rolesFromAPI []model.RoleOption) string {
	return defaultPolicy.RoleLabel(role, rolesFromAPI)
}

// RoleLabel is the policy-bound form of the package-level RoleLabel.
func (p *Policy) RoleLabel(role string, rolesFromAPI []model.RoleOption) string {
	if role == "" {
		return EmptyLabel
	}
	for _, r := range rolesFromAPI {
		if r.ID == role && r.Label != "" {
			return r.Label
		}
	}
	if label := p.Label(role); label != "" {
		return label
	}
	return role
}
