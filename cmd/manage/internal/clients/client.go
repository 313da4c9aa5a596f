// Package clients calls the remote access, applications, organisations and
// search services.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/manageconsole/manage/cmd/manage/internal/telemetry"
)

// HeaderCorrelationID is forwarded on every outbound call.
const HeaderCorrelationID = "x-correlation-id"

// ErrNotFound is matched by errors.Is when a remote service answered 404.
var ErrNotFound = errors.New("not found")

// UpstreamError describes a failed call to a remote service.
type UpstreamError struct {
	Service    string
	Operation  string
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s %s: %v", e.Service, e.Operation, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %s %s returned %d", e.Service, e.Operation, e.Method, e.URL, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return e.Err
}

// Options configures a service client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *telemetry.UpstreamMetrics
}

type baseClient struct {
	name    string
	baseURL string
	http    *http.Client
	metrics *telemetry.UpstreamMetrics
}

func newBaseClient(name string, opts Options) (*baseClient, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid base url %q", name, opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &baseClient{
		name:    name,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		http:    httpClient,
		metrics: opts.Metrics,
	}, nil
}

// call performs one JSON request. in is encoded as the body when non-nil and
// out is decoded from a 2xx response when non-nil.
func (c *baseClient) call(ctx context.Context, operation, method, path string, query url.Values, correlationID string, in, out any) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "manage/clients/"+c.name, c.name+"."+operation,
		attribute.String(telemetry.AttrUpstream, c.name),
		attribute.String(telemetry.AttrCorrelationID, correlationID),
	)
	defer span.End()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	status := 0
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.Int(telemetry.AttrUpstreamStatus, status))
		telemetry.RecordError(span, err)
		if c.metrics != nil {
			c.metrics.RecordCall(ctx, c.name, operation, status, float64(time.Since(start).Milliseconds()), err)
		}
	}()

	upstreamErr := func(cause error) *UpstreamError {
		return &UpstreamError{Service: c.name, Operation: operation, Method: method, URL: target, StatusCode: status, Err: cause}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return upstreamErr(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return upstreamErr(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if correlationID != "" {
		req.Header.Set(HeaderCorrelationID, correlationID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return upstreamErr(err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		e := upstreamErr(nil)
		e.Body = string(snippet)
		return e
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return upstreamErr(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
