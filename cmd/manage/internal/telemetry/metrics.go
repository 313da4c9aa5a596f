package telemetry

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServerMetrics holds metric instruments for HTTP server telemetry.
// Initialize once at server startup and reuse throughout the application lifecycle.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter     // Total HTTP requests
	RequestDuration metric.Float64Histogram // HTTP request latency
	InFlight        metric.Int64UpDownCounter
	ErrorCounter    metric.Int64Counter // Total HTTP errors (5xx)
}

// NewServerMetrics creates a new ServerMetrics instance with pre-configured instruments.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("manage/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s
	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		InFlight:        inFlight,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records an HTTP request with method, route, status, and duration.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route string, status int, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, strconv.Itoa(status)),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if status >= 500 {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// RequestStarted increments the in-flight gauge.
func (m *ServerMetrics) RequestStarted(ctx context.Context) {
	m.InFlight.Add(ctx, 1)
}

// RequestFinished decrements the in-flight gauge.
func (m *ServerMetrics) RequestFinished(ctx context.Context) {
	m.InFlight.Add(ctx, -1)
}

// UpstreamMetrics holds metric instruments for calls to remote services.
type UpstreamMetrics struct {
	CallCounter  metric.Int64Counter
	CallDuration metric.Float64Histogram
	CallErrors   metric.Int64Counter
}

// NewUpstreamMetrics creates metric instruments for upstream call telemetry.
func NewUpstreamMetrics() (*UpstreamMetrics, error) {
	meter := otel.Meter("manage/upstream")

	callCounter, err := meter.Int64Counter(
		"upstream.call.count",
		metric.WithDescription("Total number of calls to remote services"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	callDuration, err := meter.Float64Histogram(
		"upstream.call.duration",
		metric.WithDescription("Remote service call duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return nil, err
	}

	callErrors, err := meter.Int64Counter(
		"upstream.call.error.count",
		metric.WithDescription("Total number of failed calls to remote services"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &UpstreamMetrics{
		CallCounter:  callCounter,
		CallDuration: callDuration,
		CallErrors:   callErrors,
	}, nil
}

// RecordCall records one remote call. status is 0 when no response was received.
func (u *UpstreamMetrics) RecordCall(ctx context.Context, upstream, operation string, status int, durationMs float64, err error) {
	attrs := metric.WithAttributes(
		attribute.String(AttrUpstream, upstream),
		attribute.String(AttrUpstreamMethod, operation),
		attribute.Int(AttrUpstreamStatus, status),
	)

	u.CallCounter.Add(ctx, 1, attrs)
	u.CallDuration.Record(ctx, durationMs, attrs)

	if err != nil {
		u.CallErrors.Add(ctx, 1, attrs)
	}
}

// AuthMetrics holds metric instruments for sign-in operations.
type AuthMetrics struct {
	AuthAttempts metric.Int64Counter
	AuthFailures metric.Int64Counter
	AuthDuration metric.Float64Histogram
}

// NewAuthMetrics creates metric instruments for authentication telemetry.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("manage/auth")

	authAttempts, err := meter.Int64Counter(
		"auth.attempt.count",
		metric.WithDescription("Total number of sign-in attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	authFailures, err := meter.Int64Counter(
		"auth.failure.count",
		metric.WithDescription("Total number of failed sign-in attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	authDuration, err := meter.Float64Histogram(
		"auth.duration",
		metric.WithDescription("Sign-in callback duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		AuthAttempts: authAttempts,
		AuthFailures: authFailures,
		AuthDuration: authDuration,
	}, nil
}

// RecordAuth records a sign-in attempt with result and duration.
func (a *AuthMetrics) RecordAuth(ctx context.Context, method string, success bool, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrAuthMethod, method),
		attribute.Bool(AttrAuthSuccess, success),
	)

	a.AuthAttempts.Add(ctx, 1, attrs)
	a.AuthDuration.Record(ctx, durationMs, attrs)

	if !success {
		a.AuthFailures.Add(ctx, 1, attrs)
	}
}

// Metric attribute keys
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	AttrAuthMethod  = "auth.method"
	AttrAuthSuccess = "auth.success"
)
