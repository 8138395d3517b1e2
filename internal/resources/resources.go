// Package resources wraps the CRM API endpoints of each entity with request
// caching and the invalidation rules that keep cached reads consistent after
// mutations.
//
// Invalidation table:
//
//	complaint create, update, delete, comment, image upload -> "complaints"
//	lead create, update, delete, bulk upload                -> "leads"
//	user create, update                                     -> "users"
//	role create, update                                     -> "roles", "config"
//	message send                                            -> "messages/thread/{toUserId}"
//	logout                                                  -> everything
//
// A resource tag covers its detail entries ("complaints/detail/{id}"), so an
// update also drops the record it changed. Lists are keyed by their full
// parameter tuple and different tuples never invalidate each other.
package resources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"

	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/tokenstore"
	"github.com/pitabwire/crmconsole/model"
)

// Resource names, which double as cache tags.
const (
	ResourceAuth       = "auth"
	ResourceComplaints = "complaints"
	ResourceLeads      = "leads"
	ResourceUsers      = "users"
	ResourceRoles      = "roles"
	ResourceConfig     = "config"
	ResourceMessages   = "messages"
)

// API is the subset of the HTTP adapter the resource modules use.
type API interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
	Download(ctx context.Context, path string, params url.Values, fallbackName string) (*apiclient.Blob, error)
	Upload(ctx context.Context, path string, files []apiclient.File, out any) error
}

// Services bundles every resource module over one adapter and cache.
type Services struct {
	Auth       *Auth
	Complaints *Complaints
	Leads      *Leads
	Users      *Users
	Roles      *Roles
	Messages   *Messages
}

// New wires the resource modules. tokens may be nil when the caller does not
// own the credential, as in the console server which forwards it.
func New(api API, cache *querycache.Cache, tokens tokenstore.Store) *Services {
	b := base{api: api, cache: cache}
	return &Services{
		Auth:       &Auth{base: b, tokens: tokens},
		Complaints: &Complaints{base: b},
		Leads:      &Leads{base: b},
		Users:      &Users{base: b},
		Roles:      &Roles{base: b},
		Messages:   &Messages{base: b},
	}
}

type base struct {
	api   API
	cache *querycache.Cache
}

// key scopes k to the caller's credential.
func (b base) key(ctx context.Context, k querycache.Key) querycache.Key {
	k.Scope = scopeOf(ctx)
	return k
}

func (b base) invalidate(tags ...string) {
	for _, tag := range tags {
		b.cache.Invalidate(tag)
	}
}

// read fetches through the cache with the default TTL.
func read[T any](ctx context.Context, b base, k querycache.Key, fn func(context.Context) (T, error)) (T, error) {
	return querycache.Fetch(ctx, b.cache, b.key(ctx, k), 0, fn)
}

// scopeOf derives the cache scope from the forwarded credential. The CLI has
// no request context and shares the unscoped namespace.
func scopeOf(ctx context.Context) string {
	rctx := model.RequestContextFrom(ctx)
	if rctx == nil || rctx.Token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(rctx.Token))
	return hex.EncodeToString(sum[:8])
}

// Page selects a page of a list. Zero fields are omitted from the request.
type Page struct {
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

func (p Page) apply(v url.Values) {
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// detailTTL is shorter than the list TTL so an open detail view converges
// quickly on changes made elsewhere.
const detailTTL = 10 * time.Second

func escape(id string) string {
	return url.PathEscape(id)
}
