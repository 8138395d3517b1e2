package transport

import (
	"net/http"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/model"
)

type sessionResponse struct {
	User      *model.SessionUser `json:"user"`
	RoleLabel string             `json:"roleLabel"`
}

func handleSession(resolver *access.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := model.MustRequestContext(r.Context()).User
		WriteJSON(w, http.StatusOK, sessionResponse{
			User:      user,
			RoleLabel: resolver.RoleLabel(r.Context(), user.Role),
		})
	}
}

func handleNavigation(resolver *access.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := model.MustRequestContext(r.Context()).User
		WriteJSON(w, http.StatusOK, resolver.Navigation(r.Context(), user, r.URL.Query().Get("path")))
	}
}

func handleAccess(resolver *access.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteValidationError(w, "path", "required", "Path is required")
			return
		}
		user := model.MustRequestContext(r.Context()).User
		WriteJSON(w, http.StatusOK, resolver.Guard(user, path))
	}
}

type optionsResponse struct {
	ComplaintStatuses   []model.Option       `json:"complaintStatuses"`
	ComplaintPriorities []model.Option       `json:"complaintPriorities"`
	LeadStatuses        []model.Option       `json:"leadStatuses"`
	LeadSources         []model.Option       `json:"leadSources"`
	Modules             []model.ModuleOption `json:"modules"`
	Roles               []model.RoleOption   `json:"roles"`
}

// handleOptions serves the select options of the console forms. Roles and
// modules come from the server configuration when it is reachable.
func handleOptions(resolver *access.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := resolver.Config(r.Context())
		WriteJSON(w, http.StatusOK, optionsResponse{
			ComplaintStatuses:   model.ComplaintStatuses,
			ComplaintPriorities: model.ComplaintPriorities,
			LeadStatuses:        model.LeadStatuses,
			LeadSources:         model.LeadSources,
			Modules:             cfg.Modules,
			Roles:               cfg.Roles,
		})
	}
}

func handleLogin(auth *resources.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p model.LoginPayload
		if err := decodeJSON(r, &p); err != nil {
			WriteError(w, err)
			return
		}
		resp, err := auth.Login(r.Context(), p)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleSignup(auth *resources.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p model.SignupPayload
		if err := decodeJSON(r, &p); err != nil {
			WriteError(w, err)
			return
		}
		resp, err := auth.Signup(r.Context(), p)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}
