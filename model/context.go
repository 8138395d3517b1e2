package model

import (
	"context"
	"errors"
)

// RequestContext carries the caller's credential and identity for the
// lifetime of a console request. The BFF builds one per HTTP request; the CLI
// builds one per invocation.
type RequestContext struct {
	// Token is the bearer credential forwarded verbatim to the CRM API.
	Token         string
	User          *SessionUser
	CorrelationID string
	TraceID       string
	SpanID        string
}

// Validate checks that a credential is present.
func (rc *RequestContext) Validate() error {
	if rc.Token == "" {
		return errors.New("Token is required")
	}
	return nil
}

// Role returns the current user's role, or "" before the session is loaded.
func (rc *RequestContext) Role() string {
	if rc.User == nil {
		return ""
	}
	return rc.User.Role
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}

// MustRequestContext extracts the RequestContext from the context, panicking if
// it is not present. Only call it in handlers mounted behind the auth
// middleware.
func MustRequestContext(ctx context.Context) *RequestContext {
	rctx := RequestContextFrom(ctx)
	if rctx == nil {
		panic("model: RequestContext not found in context")
	}
	return rctx
}
