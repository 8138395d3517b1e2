package model

import "time"

// RoleRecord is a role managed through /roles.
type RoleRecord struct {
	ID        string       `json:"_id"`
	Name      string       `json:"name"`
	Label     string       `json:"label"`
	ModuleIDs ModuleGrants `json:"moduleIds"`
	CreatedAt time.Time    `json:"createdAt,omitzero"`
	UpdatedAt time.Time    `json:"updatedAt,omitzero"`
}

// CreateRolePayload is the body of POST /roles.
type CreateRolePayload struct {
	Name      string   `json:"name" validate:"notblank,rolename"`
	Label     string   `json:"label" validate:"notblank"`
	ModuleIDs []string `json:"moduleIds"`
}

// UpdateRolePayload is the body of PATCH /roles/{id}. A nil ModuleIDs leaves
// the grants alone; a pointer to an empty list revokes every module.
type UpdateRolePayload struct {
	Label     *string   `json:"label,omitempty"`
	ModuleIDs *[]string `json:"moduleIds,omitempty"`
}

// RoleOption is a role id with its server-side display label.
type RoleOption struct {
	ID        string       `json:"id"`
	Label     string       `json:"label"`
	ModuleIDs ModuleGrants `json:"moduleIds"`
}

// ModuleOption is a module id with its display label.
type ModuleOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RolesConfig is returned by GET /config/roles.
type RolesConfig struct {
	Roles   []RoleOption   `json:"roles"`
	Modules []ModuleOption `json:"modules"`
}
