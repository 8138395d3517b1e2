package access

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/model"
)

// ConfigSource fetches the server's role and module configuration.
type ConfigSource interface {
	RolesConfig(ctx context.Context) (model.RolesConfig, error)
}

// Resolver caches the server role configuration for a TTL and falls back to
// the static policy when the server cannot supply it.
type Resolver struct {
	source  ConfigSource
	policy  *Policy
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	cached  model.RolesConfig
	expires time.Time
}

// NewResolver creates a Resolver. A nil policy selects DefaultPolicy.
func NewResolver(source ConfigSource, policy *Policy, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Resolver {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:  source,
		policy:  policy,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Policy returns the static table backing the resolver.
func (r *Resolver) Policy() *Policy {
	return r.policy
}

// Config returns the role configuration. Server results are cached for the
// TTL; failures are logged and answered from the static policy without
// being cached.
func (r *Resolver) Config(ctx context.Context) model.RolesConfig {
	r.mu.RLock()
	if r.now().Before(r.expires) {
		cfg := r.cached
		r.mu.RUnlock()
		return cfg
	}
	r.mu.RUnlock()

	if r.source != nil {
		cfg, err := r.source.RolesConfig(ctx)
		if err == nil {
			if len(cfg.Modules) == 0 {
				cfg.Modules = ModuleOptions()
			}
			r.mu.Lock()
			r.cached = cfg
			r.expires = r.now().Add(r.ttl)
			r.mu.Unlock()
			return cfg
		}
		observability.LoggerFrom(ctx, r.logger).Warn("role configuration unavailable, using static policy",
			zap.Error(err),
		)
	}

	r.metrics.RecordRoleConfigFallback()
	return r.fallback()
}

func (r *Resolver) fallback() model.RolesConfig {
	return model.RolesConfig{
		Roles:   r.policy.RoleOptions(),
		Modules: ModuleOptions(),
	}
}

// Invalidate drops the cached configuration. Role mutations call it.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.expires = time.Time{}
	r.mu.Unlock()
}

// RoleLabel labels role using the current configuration.
func (r *Resolver) RoleLabel(ctx context.Context, role string) string {
	return r.policy.RoleLabel(role, r.Config(ctx).Roles)
}

// NavItem is a visible navigation entry.
type NavItem struct {
	Module
	Active bool `json:"active"`
}

// Navigation is the navigation view of a session.
type Navigation struct {
	User      *model.SessionUser `json:"user"`
	RoleLabel string             `json:"roleLabel"`
	Items     []NavItem          `json:"items"`
}

// Navigation builds the nav entries visible to user, labelled with the
// server's module names when known. currentPath marks the active entry.
func (r *Resolver) Navigation(ctx context.Context, user *model.SessionUser, currentPath string) Navigation {
	cfg := r.Config(ctx)
	labels := make(map[string]string, len(cfg.Modules))
	for _, m := range cfg.Modules {
		labels[m.ID] = m.Label
	}
	current, _ := ModuleIDFromPath(currentPath)

	nav := Navigation{User: user, Items: []NavItem{}}
	if user != nil {
		nav.RoleLabel = r.policy.RoleLabel(user.Role, cfg.Roles)
	}
	for _, m := range r.policy.VisibleModules(user) {
		if l := labels[m.ID]; l != "" {
			m.Label = l
		}
		active := m.ID == current
		if m.End {
			active = currentPath == m.Path
		}
		nav.Items = append(nav.Items, NavItem{Module: m, Active: active})
	}
	return nav
}

// Guard guards path with the resolver's policy.
func (r *Resolver) Guard(user *model.SessionUser, path string) Decision {
	return r.policy.Guard(user, path)
}
