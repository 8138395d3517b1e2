package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/config"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/internal/tokenstore"
	"github.com/pitabwire/crmconsole/model"
)

// app is the dependency graph shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	client   *apiclient.Client
	tokens   tokenstore.Store
	services *resources.Services
	access   *access.Resolver
}

// buildApp wires config, telemetry, the API client, the request cache and
// the resource modules. A nil store means the credential is forwarded from
// the request context instead of read from the local slot.
func buildApp(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer, store tokenstore.Store) (*app, error) {
	metrics := observability.InitMetrics(reg)

	var source apiclient.TokenSource = apiclient.ForwardedToken{}
	if store != nil {
		source = store
	}
	client := apiclient.New(cfg.API, source,
		apiclient.WithMetrics(metrics),
		apiclient.WithLogger(logger),
	)

	cache := querycache.New(cfg.QueryCache.TTL, cfg.QueryCache.MaxEntries, metrics)
	services := resources.New(client, cache, store)

	policy := access.DefaultPolicy()
	if cfg.Access.PolicyFile != "" {
		p, err := access.LoadPolicy(cfg.Access.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy = p
	}
	resolver := access.NewResolver(services.Roles, policy, cfg.Access.Cache.TTL, metrics, logger)
	services.Roles.OnChange(resolver.Invalidate)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		client:   client,
		tokens:   store,
		services: services,
		access:   resolver,
	}, nil
}

// cliApp builds the app for an interactive command: console logging, a
// private metrics registry and the configured credential slot.
func cliApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewCLILogger(cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	store, err := tokenstore.Open(cfg.Session)
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, logger, prometheus.NewRegistry(), store)
}

// session loads the current user and attaches a RequestContext so log lines
// carry the user. A credential past its exp claim is reported before any
// request is made.
func (a *app) session(ctx context.Context) (context.Context, *model.SessionUser, error) {
	token, err := a.tokens.Get(ctx)
	if err != nil {
		return ctx, nil, err
	}
	if token == "" {
		return ctx, nil, errNotLoggedIn
	}
	if tokenstore.Expired(token, time.Now()) {
		a.logger.Warn("stored credential has expired, log in again")
	}

	rctx := &model.RequestContext{Token: token}
	ctx = model.WithRequestContext(ctx, rctx)
	user, err := a.services.Auth.Me(ctx)
	if err != nil {
		return ctx, nil, err
	}
	rctx.User = user
	return observability.WithLogger(ctx, a.logger), user, nil
}

// requireModule fails when the user's role may not open moduleID.
func (a *app) requireModule(user *model.SessionUser, moduleID string) error {
	if a.access.Policy().CanAccess(user.Role, moduleID, user.RoleModules) {
		return nil
	}
	return fmt.Errorf("role %q has no access to %s", user.Role, moduleID)
}

var errNotLoggedIn = errors.New("not logged in; run `console login` first")

// describeError renders console errors with their field details.
func describeError(err error) string {
	var e *model.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	msg := e.Message
	for _, d := range e.Details {
		if d.Message != e.Message {
			msg += fmt.Sprintf("\n  %s: %s", d.Field, d.Message)
		}
	}
	return msg
}
