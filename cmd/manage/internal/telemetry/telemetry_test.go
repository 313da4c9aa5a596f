package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/manageconsole/manage/cmd/manage/internal/config"
)

func TestInit_MetricsExposedWithoutTraceExport(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, config.ObservabilityConfig{
		ServiceName:    "manage-test",
		ServiceVersion: "test",
		Environment:    "test",
	})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(ctx) }()

	server, err := NewServerMetrics()
	require.NoError(t, err)
	server.RecordRequest(ctx, http.MethodGet, "/services/{sid}", http.StatusOK, 12)
	server.RecordRequest(ctx, http.MethodGet, "/services/{sid}", http.StatusBadGateway, 40)

	upstream, err := NewUpstreamMetrics()
	require.NoError(t, err)
	upstream.RecordCall(ctx, "access", "GetSingleUserService", http.StatusOK, 8, nil)
	upstream.RecordCall(ctx, "search", "SearchForUsers", 0, 8, errors.New("dial tcp: refused"))

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "http_server_request_count")
	assert.Contains(t, body, "http_server_error_count")
	assert.Contains(t, body, "upstream_call_error_count")
}

func TestNewResource_MergesWithSDKDefaults(t *testing.T) {
	res, err := newResource(config.ObservabilityConfig{
		ServiceName:    "manage",
		ServiceVersion: "1.2.3",
		Environment:    "staging",
	})
	require.NoError(t, err)

	assert.Equal(t, semconv.SchemaURL, res.SchemaURL())
	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "manage", name.AsString())
	env, ok := res.Set().Value(attribute.Key("deployment.environment.name"))
	require.True(t, ok)
	assert.Equal(t, "staging", env.AsString())
}

func TestRecordError_NilIsNoop(t *testing.T) {
	_, span := StartSpan(context.Background(), "manage/test", "noop")
	defer span.End()

	assert.NotPanics(t, func() { RecordError(span, nil) })
}
