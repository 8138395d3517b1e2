package access

import (
	"strings"

	"github.com/pitabwire/crmconsole/model"
)

// Module ids.
const (
	ModuleDashboard  = "dashboard"
	ModuleUsers      = "users"
	ModuleRoles      = "roles"
	ModuleComplaints = "complaints"
	ModuleLeads      = "leads"
)

// Console routes outside the module registry.
const (
	HomePath  = "/dashboard"
	LoginPath = "/login"
)

// Module is a navigable console area.
type Module struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path"`
	// End marks a module whose nav item is active only on an exact match.
	End bool `json:"end,omitempty"`
}

// Modules is the registry in navigation order.
var Modules = []Module{
	{ID: ModuleDashboard, Label: "Dashboard", Path: "/dashboard", End: true},
	{ID: ModuleUsers, Label: "User management", Path: "/dashboard/users"},
	{ID: ModuleRoles, Label: "Role management", Path: "/dashboard/roles"},
	{ID: ModuleComplaints, Label: "Complaint management", Path: "/dashboard/complaints"},
	{ID: ModuleLeads, Label: "Lead management", Path: "/dashboard/leads"},
}

// ModuleOptions returns the registry as id/label pairs.
func ModuleOptions() []model.ModuleOption {
	out := make([]model.ModuleOption, len(Modules))
	for i, m := range Modules {
		out[i] = model.ModuleOption{ID: m.ID, Label: m.Label}
	}
	return out
}

// ModuleIDFromPath returns the module owning path: the longest registered
// path that equals path or is followed by "/".
func ModuleIDFromPath(path string) (string, bool) {
	best := -1
	for i, m := range Modules {
		if path != m.Path && !strings.HasPrefix(path, m.Path+"/") {
			continue
		}
		if best < 0 || len(m.Path) > len(Modules[best].Path) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return Modules[best].ID, true
}

// VisibleModules returns the modules user may open, in registry order.
func (p *Policy) VisibleModules(user *model.SessionUser) []Module {
	var out []Module
	for _, m := range Modules {
		if p.canUserAccess(user, m.ID) {
			out = append(out, m)
		}
	}
	return out
}

// Decision is the outcome of guarding a console path.
type Decision struct {
	Path     string `json:"path"`
	ModuleID string `json:"moduleId,omitempty"`
	Allowed  bool   `json:"allowed"`
	// Redirect is where the console should navigate instead; empty when the
	// path is allowed or no safe target exists.
	Redirect string `json:"redirect,omitempty"`
}

// Guard decides whether user may stay on path. Anonymous users go to the
// login page; a denied module sends the user home. Paths outside the
// registry are always allowed.
func (p *Policy) Guard(user *model.SessionUser, path string) Decision {
	d := Decision{Path: path}
	if user == nil {
		d.Redirect = LoginPath
		return d
	}

	moduleID, ok := ModuleIDFromPath(path)
	if !ok {
		d.Allowed = true
		return d
	}
	d.ModuleID = moduleID

	if p.canUserAccess(user, moduleID) {
		d.Allowed = true
		return d
	}
	if moduleID != ModuleDashboard {
		d.Redirect = HomePath
	}
	return d
}

func (p *Policy) canUserAccess(user *model.SessionUser, moduleID string) bool {
	if user == nil {
		return false
	}
	return p.CanAccess(user.Role, moduleID, user.RoleModules)
}

// VisibleModules filters the registry with the compiled-in table.
func VisibleModules(user *model.SessionUser) []Module {
	return defaultPolicy.VisibleModules(user)
}

// Guard guards path with the compiled-in table.
func Guard(user *model.SessionUser, path string) Decision {
	return defaultPolicy.Guard(user, path)
}
