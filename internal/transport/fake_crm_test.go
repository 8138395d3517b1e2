package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/config"
	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/internal/querycache"
	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/model"
)

const testToken = "browser-token"

type crmCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// fakeCRM is an in-memory CRM API.
type fakeCRM struct {
	mu         sync.Mutex
	calls      []crmCall
	user       model.SessionUser
	complaints map[string]model.Complaint
	leads      map[string]model.Lead
	srv        *httptest.Server
}

func newFakeCRM(t *testing.T, user model.SessionUser) *fakeCRM {
	t.Helper()
	f := &fakeCRM{
		user:       user,
		complaints: map[string]model.Complaint{},
		leads:      map[string]model.Lead{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, _ *http.Request) {
		writeBackend(w, http.StatusOK, map[string]any{"user": f.user})
	})
	mux.HandleFunc("GET /config/roles", func(w http.ResponseWriter, _ *http.Request) {
		writeBackend(w, http.StatusNotFound, map[string]any{"message": "Route not found"})
	})
	mux.HandleFunc("GET /complaints", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		items := make([]model.Complaint, 0, len(f.complaints))
		for _, c := range f.complaints {
			items = append(items, c)
		}
		f.mu.Unlock()
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		writeBackend(w, http.StatusOK, listOf(items, r.URL.Query()))
	})
	mux.HandleFunc("POST /complaints", func(w http.ResponseWriter, r *http.Request) {
		var c model.Complaint
		_ = json.NewDecoder(r.Body).Decode(&c)
		c.ID = "c-new"
		c.Status = model.ComplaintOpen
		writeBackend(w, http.StatusCreated, c)
	})
	mux.HandleFunc("GET /complaints/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		c, ok := f.complaints[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			writeBackend(w, http.StatusNotFound, map[string]any{"message": "Complaint not found"})
			return
		}
		writeBackend(w, http.StatusOK, c)
	})
	mux.HandleFunc("PATCH /complaints/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.mu.Lock()
		c := f.complaints[r.PathValue("id")]
		if s, ok := patch["status"].(string); ok {
			c.Status = model.ComplaintStatus(s)
		}
		if p, ok := patch["priority"].(string); ok {
			c.Priority = model.ComplaintPriority(p)
		}
		if v, ok := patch["internalNotes"]; ok {
			c.InternalNotes, _ = v.(string)
		}
		f.complaints[c.ID] = c
		f.mu.Unlock()
		writeBackend(w, http.StatusOK, c)
	})
	mux.HandleFunc("DELETE /complaints/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delete(f.complaints, r.PathValue("id"))
		f.mu.Unlock()
		writeBackend(w, http.StatusOK, map[string]any{"message": "deleted"})
	})
	mux.HandleFunc("GET /leads", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		items := make([]model.Lead, 0, len(f.leads))
		for _, l := range f.leads {
			items = append(items, l)
		}
		f.mu.Unlock()
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		writeBackend(w, http.StatusOK, listOf(items, r.URL.Query()))
	})
	mux.HandleFunc("GET /leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		l, ok := f.leads[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			writeBackend(w, http.StatusNotFound, map[string]any{"message": "Lead not found"})
			return
		}
		writeBackend(w, http.StatusOK, l)
	})
	mux.HandleFunc("PATCH /leads/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.mu.Lock()
		l := f.leads[r.PathValue("id")]
		if s, ok := patch["status"].(string); ok {
			l.Status = model.LeadStatus(s)
		}
		if s, ok := patch["name"].(string); ok {
			l.Name = s
		}
		f.leads[l.ID] = l
		f.mu.Unlock()
		writeBackend(w, http.StatusOK, l)
	})
	mux.HandleFunc("GET /leads/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="leads-2026.`+r.URL.Query().Get("format")+`"`)
		_, _ = io.WriteString(w, "name,phone\nAcme,555\n")
	})
	mux.HandleFunc("POST /leads/bulk-upload", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			writeBackend(w, http.StatusBadRequest, map[string]any{"message": "file missing"})
			return
		}
		writeBackend(w, http.StatusOK, model.BulkUploadResult{Created: 2})
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, _ *http.Request) {
		writeBackend(w, http.StatusOK, map[string]any{"data": []model.UserRecord{{ID: "u1", FullName: "Ada", Role: "admin"}}})
	})

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeBackend(w, http.StatusUnauthorized, map[string]any{"message": "Invalid token"})
			return
		}
		call := crmCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &call.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func listOf[T any](items []T, q url.Values) model.ListResponse[T] {
	limit := 10
	if l := q.Get("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}
	return model.ListResponse[T]{
		Data: items,
		Pagination: model.Pagination{
			Page:       1,
			Limit:      limit,
			Total:      len(items),
			TotalPages: model.TotalPagesFor(len(items), limit),
		},
	}
}

func writeBackend(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeCRM) callsTo(method, path string) []crmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []crmCall
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeCRM) addComplaint(c model.Complaint) {
	f.mu.Lock()
	f.complaints[c.ID] = c
	f.mu.Unlock()
}

func (f *fakeCRM) addLead(l model.Lead) {
	f.mu.Lock()
	f.leads[l.ID] = l
	f.mu.Unlock()
}

type testEnv struct {
	crm     *fakeCRM
	router  http.Handler
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T, role string) *testEnv {
	t.Helper()
	crm := newFakeCRM(t, model.SessionUser{ID: "u1", FullName: "Ada Lovelace", Email: "ada@example.com", Role: role})

	cfg := config.Defaults()
	cfg.API.BaseURL = crm.srv.URL
	cfg.API.Retry.MaxAttempts = 1
	cfg.Server.CORS.AllowedOrigins = []string{"https://console.example.com"}

	reg := prometheus.NewRegistry()
	metrics := observability.InitMetrics(reg)
	client := apiclient.New(cfg.API, apiclient.ForwardedToken{}, apiclient.WithMetrics(metrics))
	services := resources.New(client, querycache.New(cfg.QueryCache.TTL, cfg.QueryCache.MaxEntries, metrics), nil)
	resolver := access.NewResolver(services.Roles, access.DefaultPolicy(), time.Minute, metrics, zap.NewNop())
	services.Roles.OnChange(resolver.Invalidate)

	router := NewRouter(Dependencies{
		Config:   cfg,
		Logger:   zap.NewNop(),
		Metrics:  metrics,
		Gatherer: reg,
		Services: services,
		Access:   resolver,
		Now:      func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) },
	})
	return &testEnv{crm: crm, router: router, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error model.Error `json:"error"`
}
