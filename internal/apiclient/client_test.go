package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/crmconsole/internal/config"
	"github.com/pitabwire/crmconsole/model"
)

type staticToken string

func (s staticToken) Get(context.Context) (string, error) { return string(s), nil }

func testConfig(baseURL string) config.APIConfig {
	return config.APIConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		CircuitBreaker: config.CircuitBreakerConfig{
			FailureThreshold: 50,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
		},
		Retry: config.RetryConfig{
			MaxAttempts:       3,
			BackoffInitial:    time.Millisecond,
			BackoffMultiplier: 2,
			BackoffMax:        5 * time.Millisecond,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_Get_attachesHeadersAndQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "role": "admin"}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL+"/api/"), staticToken("tok-123"))

	var out model.MeResponse
	params := url.Values{"status": {"open"}, "page": {"2"}}
	require.NoError(t, c.Get(context.Background(), "/auth/me", params, &out))

	assert.Equal(t, "/api/auth/me", got.URL.Path)
	assert.Equal(t, "open", got.URL.Query().Get("status"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "Bearer tok-123", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.NotEmpty(t, got.Header.Get("X-Correlation-Id"))
	assert.Equal(t, "admin", out.User.Role)
}

func TestClient_noTokenNoAuthorizationHeader(t *testing.T) {
	var auth atomic.Value
	auth.Store("unset")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), staticToken(""))
	require.NoError(t, c.Delete(context.Background(), "complaints/c1", nil))
	assert.Equal(t, "", auth.Load())
}

func TestClient_forwardedTokenAndCorrelationID(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), ForwardedToken{})
	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{
		Token:         "browser-token",
		CorrelationID: "corr-77",
	})
	require.NoError(t, c.Get(ctx, "/leads", nil, nil))

	assert.Equal(t, "Bearer browser-token", got.Get("Authorization"))
	assert.Equal(t, "corr-77", got.Get("X-Correlation-Id"))
}

func TestClient_Post_sendsJSONBody(t *testing.T) {
	var body map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{"_id": "c9", "subject": body["subject"]})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), staticToken("t"))
	var out model.Complaint
	err := c.Post(context.Background(), "/complaints",
		model.CreateComplaintPayload{Subject: "Lens", Description: "Cracked"}, &out)
	require.NoError(t, err)

	assert.Contains(t, contentType, "application/json")
	assert.Equal(t, "Lens", body["subject"])
	assert.Equal(t, "c9", out.ID)
}

func TestClient_errorNormalization(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   model.ErrorKind
		wantMsg    string
		wantStatus int
	}{
		{"auth with message", 401, `{"message":"Token expired"}`, model.KindAuth, "Token expired", 401},
		{"forbidden", 403, `{"message":"Admins only"}`, model.KindAuth, "Admins only", 403},
		{"not found", 404, `{"message":"Complaint not found"}`, model.KindNotFound, "Complaint not found", 404},
		{"server validation", 400, `{"message":"Subject is required"}`, model.KindValidation, "Subject is required", 400},
		{"server error unparseable", 500, `<html>oops</html>`, model.KindServer, "Request failed", 500},
		{"server error empty body", 500, ``, model.KindServer, "Request failed", 500},
		{"json without message", 409, `{"error":"conflict"}`, model.KindServer, "Request failed", 409},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(testConfig(srv.URL), nil)
			err := c.Post(context.Background(), "/complaints", map[string]string{}, nil)
			require.Error(t, err)

			var e *model.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantMsg, e.Message)
			assert.Equal(t, tt.wantStatus, e.Status)
		})
	}
}

func TestClient_readsRetryOnGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	require.NoError(t, c.Get(context.Background(), "/leads", nil, nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_readsGiveUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	err := c.Get(context.Background(), "/leads", nil, nil)
	assert.True(t, model.IsKind(err, model.KindServer))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_readsDoNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	err := c.Get(context.Background(), "/leads/x", nil, nil)
	assert.True(t, model.IsKind(err, model.KindNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_mutationsAreNeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	err := c.Patch(context.Background(), "/leads/l1", map[string]string{"status": "closed"}, nil)
	assert.True(t, model.IsKind(err, model.KindServer))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_timeoutIsDistinctKind(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	c := New(cfg, nil)

	err := c.Get(context.Background(), "/complaints", nil, nil)
	assert.True(t, model.IsKind(err, model.KindTimeout), "got %v", err)
}

func TestClient_transportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(testConfig(base), nil)
	err := c.Post(context.Background(), "/auth/login", model.LoginPayload{Email: "a@b.c", Password: "x"}, nil)
	assert.True(t, model.IsKind(err, model.KindTransport), "got %v", err)
}

func TestClient_circuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CircuitBreaker.FailureThreshold = 2
	c := New(cfg, nil)

	for i := 0; i < 2; i++ {
		err := c.Delete(context.Background(), "/leads/l1", nil)
		require.True(t, model.IsKind(err, model.KindServer))
	}
	err := c.Delete(context.Background(), "/leads/l1", nil)
	assert.True(t, model.IsKind(err, model.KindUnavailable), "got %v", err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, BreakerOpen, c.Breaker().State())
}

func TestClient_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "xlsx" {
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename="leads_2026-01-01.xlsx"`)
		}
		_, _ = io.WriteString(w, "name,phone\n")
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), staticToken("t"))

	blob, err := c.Download(context.Background(), "/leads/export", url.Values{"format": {"xlsx"}}, "leads_export.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "leads_2026-01-01.xlsx", blob.Filename)
	assert.Equal(t, "name,phone\n", string(blob.Body))

	blob, err = c.Download(context.Background(), "/leads/export", url.Values{"format": {"csv"}}, "leads_export.csv")
	require.NoError(t, err)
	assert.Equal(t, "leads_export.csv", blob.Filename)
}

func TestFilenameFromDisposition(t *testing.T) {
	tests := []struct {
		header, want string
	}{
		{`attachment; filename="report.csv"`, "report.csv"},
		{`attachment; filename=report.xlsx`, "report.xlsx"},
		{`inline`, "fallback.csv"},
		{``, "fallback.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FilenameFromDisposition(tt.header, "fallback.csv"), tt.header)
	}
}

func TestClient_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "leads.csv", hdr.Filename)
		assert.Equal(t, "name,phone\nAda,123\n", string(data))
		writeJSON(w, http.StatusOK, model.BulkUploadResult{Created: 1})
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), staticToken("t"))
	var out model.BulkUploadResult
	err := c.Upload(context.Background(), "/leads/bulk-upload", []File{{
		Field:  "file",
		Name:   "leads.csv",
		Reader: strings.NewReader("name,phone\nAda,123\n"),
	}}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
}

func TestClient_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	assert.NoError(t, c.HealthCheck(context.Background()))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := config.RetryConfig{BackoffInitial: 100 * time.Millisecond, BackoffMultiplier: 2, BackoffMax: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, calculateBackoff(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, calculateBackoff(cfg, 2))
	assert.Equal(t, 300*time.Millisecond, calculateBackoff(cfg, 3))
}

func TestResourceOf(t *testing.T) {
	assert.Equal(t, "complaints", resourceOf("/complaints/c1/comments"))
	assert.Equal(t, "leads", resourceOf("leads?format=csv"))
	assert.Equal(t, "root", resourceOf("/"))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_WithHTTPClient(t *testing.T) {
	var calls atomic.Int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"user":{"id":"u1","role":"agent"}}`)),
			Request:    r,
		}, nil
	})}

	c := New(testConfig("http://crm.invalid"), staticToken("tok"), WithHTTPClient(hc))

	var out model.MeResponse
	require.NoError(t, c.Get(context.Background(), "/auth/me", nil, &out))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "agent", out.User.Role)
}
