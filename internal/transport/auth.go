package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/internal/tokenstore"
	"github.com/pitabwire/crmconsole/model"
)

// SessionLoader resolves the user behind the forwarded credential.
type SessionLoader interface {
	Me(ctx context.Context) (*model.SessionUser, error)
}

// ForwardCredential requires a bearer token and stores it in a
// RequestContext for the API client to forward. The token is not verified
// here; the CRM API does that. A token whose exp claim has already passed is
// rejected without a round trip.
func ForwardCredential(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, model.NewAuthError(http.StatusUnauthorized, "Missing authorization header"))
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				WriteError(w, model.NewAuthError(http.StatusUnauthorized, "Invalid authorization header format"))
				return
			}
			if tokenstore.Expired(token, now()) {
				WriteError(w, model.NewAuthError(http.StatusUnauthorized, "Token expired"))
				return
			}

			ctx := r.Context()
			rctx := &model.RequestContext{
				Token:         token,
				CorrelationID: CorrelationIDFrom(ctx),
				TraceID:       observability.TraceIDFromContext(ctx),
				SpanID:        observability.SpanIDFromContext(ctx),
			}
			next.ServeHTTP(w, r.WithContext(model.WithRequestContext(ctx, rctx)))
		})
	}
}

// LoadSession fetches the current user once per request and attaches it to
// the RequestContext. The lookup goes through the request cache, so repeated
// requests with one credential cost a single upstream call per TTL.
func LoadSession(loader SessionLoader, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rctx := model.RequestContextFrom(r.Context())
			if rctx == nil {
				WriteError(w, model.NewAuthError(http.StatusUnauthorized, "Missing authorization header"))
				return
			}
			user, err := loader.Me(r.Context())
			if err != nil {
				observability.RequestLogger(r.Context(), logger).Debug("session lookup failed", zap.Error(err))
				WriteError(w, err)
				return
			}
			rctx.User = user
			observability.Annotate(r.Context(), observability.AttrRole.String(user.Role))
			next.ServeHTTP(w, r)
		})
	}
}

// RequireModule rejects callers whose role may not open moduleID.
func RequireModule(policy *access.Policy, moduleID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rctx := model.RequestContextFrom(r.Context())
			if rctx == nil || rctx.User == nil {
				WriteError(w, model.NewAuthError(http.StatusUnauthorized, "Not signed in"))
				return
			}
			if !policy.CanAccess(rctx.User.Role, moduleID, rctx.User.RoleModules) {
				WriteError(w, model.NewAuthError(http.StatusForbidden, "You do not have access to this module"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
