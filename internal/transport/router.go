package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/config"
	"github.com/pitabwire/crmconsole/internal/kanban"
	"github.com/pitabwire/crmconsole/internal/listview"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/internal/resources"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
	Readiness observability.ReadinessChecks
	Services  *resources.Services
	Access    *access.Resolver
	// Now defaults to time.Now. Tests pin it.
	Now func() time.Time
}

type handlers struct {
	services       *resources.Services
	metrics        *observability.Metrics
	logger         *zap.Logger
	views          config.ViewsConfig
	kanbanLimit    int
	complaintBoard *kanban.Engine
	leadBoard      *kanban.Engine
	now            func() time.Time
}

func (h *handlers) listOptions() []listview.Option {
	return []listview.Option{
		listview.FromConfig(h.views),
		listview.WithMetrics(h.metrics),
		listview.WithLogger(h.logger),
	}
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, metrics and the credential
// exchange endpoints bypass authentication.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	kanbanLimit := deps.Config.Views.KanbanLimit
	if kanbanLimit <= 0 {
		kanbanLimit = listview.DefaultKanbanLimit
	}

	h := &handlers{
		services:       deps.Services,
		metrics:        deps.Metrics,
		logger:         logger,
		views:          deps.Config.Views,
		kanbanLimit:    kanbanLimit,
		complaintBoard: kanban.NewComplaintEngine(deps.Services.Complaints, deps.Metrics, logger),
		leadBoard:      kanban.NewLeadEngine(deps.Services.Leads, deps.Metrics, logger),
		now:            now,
	}
	policy := deps.Access.Policy()
	complaints := h.complaintRecords()
	leads := h.leadRecords()

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	r.Use(deps.Metrics.MetricsMiddleware)

	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	r.Method(http.MethodGet, "/metrics", observability.Handler(gatherer))
	r.Post("/ui/auth/login", handleLogin(deps.Services.Auth))
	r.Post("/ui/auth/signup", handleSignup(deps.Services.Auth))

	r.Group(func(r chi.Router) {
		r.Use(ForwardCredential(now))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(LoadSession(deps.Services.Auth, logger))
		r.Use(RequestLogging(logger))

		r.Get("/ui/session", handleSession(deps.Access))
		r.Get("/ui/navigation", handleNavigation(deps.Access))
		r.Get("/ui/access", handleAccess(deps.Access))
		r.Get("/ui/options", handleOptions(deps.Access))
		r.Get("/ui/messages", h.messageThread)
		r.Post("/ui/messages", h.sendMessage)

		r.Route("/ui/complaints", func(r chi.Router) {
			r.Use(RequireModule(policy, access.ModuleComplaints))
			r.Get("/", h.listComplaints)
			r.Post("/", h.createComplaint)
			r.Get("/export", h.exportComplaints)
			r.Get("/users", h.assignableUsers(deps.Services.Complaints.AssignableUsers))
			r.Get("/{id}", complaints.detail)
			r.Patch("/{id}", complaints.edit)
			r.Delete("/{id}", complaints.delete)
			r.Post("/{id}/move", complaints.move)
			r.Post("/{id}/comments", h.addComment)
		})

		r.Route("/ui/leads", func(r chi.Router) {
			r.Use(RequireModule(policy, access.ModuleLeads))
			r.Get("/", h.listLeads)
			r.Post("/", h.createLead)
			r.Get("/export", h.exportLeads)
			r.Post("/bulk-upload", h.bulkUploadLeads)
			r.Get("/users", h.assignableUsers(deps.Services.Leads.AssignableUsers))
			r.Get("/{id}", leads.detail)
			r.Patch("/{id}", leads.edit)
			r.Delete("/{id}", leads.delete)
			r.Post("/{id}/move", leads.move)
		})

		r.Route("/ui/users", func(r chi.Router) {
			r.Use(RequireModule(policy, access.ModuleUsers))
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
			r.Patch("/{id}", h.updateUser)
		})

		r.Route("/ui/roles", func(r chi.Router) {
			r.Use(RequireModule(policy, access.ModuleRoles))
			r.Get("/", h.listRoles)
			r.Post("/", h.createRole)
			r.Patch("/{id}", h.updateRole)
		})
	})

	return r
}
