package resources

import (
	"context"
	"strings"

	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/tokenstore"
	"github.com/pitabwire/crmconsole/internal/validation"
	"github.com/pitabwire/crmconsole/model"
)

// Auth covers the session endpoints.
type Auth struct {
	base
	tokens tokenstore.Store
}

var meKey = querycache.Key{Resource: ResourceAuth, Operation: "me"}

// Me fetches the current session user.
func (a *Auth) Me(ctx context.Context) (*model.SessionUser, error) {
	resp, err := read(ctx, a.base, meKey, func(ctx context.Context) (*model.MeResponse, error) {
		var out model.MeResponse
		if err := a.api.Get(ctx, "/auth/me", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	user := resp.User
	return &user, nil
}

// Login exchanges credentials for a token and stores it.
func (a *Auth) Login(ctx context.Context, p model.LoginPayload) (*model.AuthResponse, error) {
	p.Email = strings.TrimSpace(p.Email)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	return a.authenticate(ctx, "/auth/login", p)
}

// Signup registers an account and stores its token.
func (a *Auth) Signup(ctx context.Context, p model.SignupPayload) (*model.AuthResponse, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	return a.authenticate(ctx, "/auth/signup", p)
}

func (a *Auth) authenticate(ctx context.Context, path string, body any) (*model.AuthResponse, error) {
	var out model.AuthResponse
	if err := a.api.Post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	if a.tokens != nil && out.Token != "" {
		if err := a.tokens.Set(ctx, out.Token); err != nil {
			return nil, model.NewInternalError(err)
		}
	}
	a.invalidate(ResourceAuth)
	return &out, nil
}

// Logout clears the stored token and every cached read.
func (a *Auth) Logout(ctx context.Context) error {
	if a.tokens != nil {
		if err := a.tokens.Clear(ctx); err != nil {
			return model.NewInternalError(err)
		}
	}
	a.cache.Clear()
	return nil
}
