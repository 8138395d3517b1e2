package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// SessionUser is the authenticated user as returned by /auth/me and the login
// and signup endpoints.
type SessionUser struct {
	ID          string       `json:"id"`
	FullName    string       `json:"fullName"`
	Email       string       `json:"email"`
	Role        string       `json:"role"`
	RoleModules ModuleGrants `json:"roleModules"`
}

// UserRef is a user embedded in a complaint or lead. The CRM API sends either
// a populated object or a bare id string; both decode into UserRef.
type UserRef struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// UnmarshalJSON accepts an object, a string id, or null.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*u = UserRef{ID: id}
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	type plain UserRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = UserRef(p)
	return nil
}

// DisplayName is the name shown in tables and exports.
func (u *UserRef) DisplayName() string {
	if u == nil {
		return "—"
	}
	if u.FullName != "" {
		return u.FullName
	}
	if u.Email != "" {
		return u.Email
	}
	if u.ID != "" {
		return u.ID
	}
	return "—"
}

// UserRecord is an entry of the user management list.
type UserRecord struct {
	ID        string    `json:"_id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// CreateUserPayload is the body of POST /users.
type CreateUserPayload struct {
	FullName string `json:"fullName" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UpdateUserPayload is the body of PATCH /users/{id}. Nil fields are omitted.
type UpdateUserPayload struct {
	FullName *string `json:"fullName,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// LoginPayload is the body of POST /auth/login.
type LoginPayload struct {
	Email    string `json:"email" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

// SignupPayload is the body of POST /auth/signup.
type SignupPayload struct {
	FullName string `json:"fullName" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone,omitempty"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	Message string      `json:"message,omitempty"`
	User    SessionUser `json:"user"`
	Token   string      `json:"token"`
}

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	User SessionUser `json:"user"`
}
