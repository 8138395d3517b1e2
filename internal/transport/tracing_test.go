package transport

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/crmconsole/model"
)

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	prev := otel.GetTracerProvider()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	m := make(map[string]string, len(s.Attributes))
	for _, kv := range s.Attributes {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestTracing_requestSpansCarryConsoleAttributes(t *testing.T) {
	exporter := recordSpans(t)
	env := newTestEnv(t, "admin")
	env.crm.addComplaint(model.Complaint{ID: "c1", Subject: "Printer jams", Status: model.ComplaintOpen})

	w := env.do(t, "GET", "/ui/complaints/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, "GET", "/ui/complaints?view=kanban", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var server, client []map[string]string
	for _, s := range exporter.GetSpans() {
		switch s.SpanKind {
		case trace.SpanKindServer:
			server = append(server, spanAttrs(s))
		default:
			client = append(client, spanAttrs(s))
		}
	}
	require.Len(t, server, 2)
	assert.Equal(t, "admin", server[0]["console.role"])
	assert.Equal(t, "c1", server[0]["console.record_id"])
	assert.Equal(t, "kanban", server[1]["console.view_mode"])

	require.NotEmpty(t, client)
	for _, attrs := range client {
		assert.Equal(t, "get", attrs["console.operation"])
	}
}
