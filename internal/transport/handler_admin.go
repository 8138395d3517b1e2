package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/crmconsole/model"
)

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.services.Users.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, model.DataResponse[model.UserRecord]{Data: users})
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var p model.CreateUserPayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	u, err := h.services.Users.Create(r.Context(), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, u)
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var p model.UpdateUserPayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	u, err := h.services.Users.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

func (h *handlers) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.services.Roles.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, model.DataResponse[model.RoleRecord]{Data: roles})
}

func (h *handlers) createRole(w http.ResponseWriter, r *http.Request) {
	var p model.CreateRolePayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	role, err := h.services.Roles.Create(r.Context(), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, role)
}

func (h *handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	var p model.UpdateRolePayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	role, err := h.services.Roles.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, role)
}

func (h *handlers) messageThread(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.services.Messages.Thread(r.Context(), r.URL.Query().Get("toUserId"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, model.DataResponse[model.MessageRecord]{Data: msgs})
}

func (h *handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	var p model.SendMessagePayload
	if err := decodeJSON(r, &p); err != nil {
		WriteError(w, err)
		return
	}
	msg, err := h.services.Messages.Send(r.Context(), p)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, msg)
}
