package observability

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTraceMiddlewareGeneratesID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no trace id in request context")
	}
	if got := recorder.Header().Get("X-Trace-ID"); got != seen {
		t.Fatalf("response header = %q, context = %q", got, seen)
	}
}

func TestTraceMiddlewarePropagatesID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "abc123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "abc123" {
		t.Fatalf("trace id = %q, want abc123", seen)
	}
}

func TestLoggingMiddlewareSkipsHealthyProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/ready" && r.URL.Query().Get("fail") == "1" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if buf.Len() != 0 {
		t.Fatalf("healthy probe requests were logged: %s", buf.String())
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ready?fail=1", nil))
	if !strings.Contains(buf.String(), "status=503") {
		t.Fatalf("failing probe not logged: %s", buf.String())
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/analyze", nil))
	if !strings.Contains(buf.String(), "/v1/analyze") {
		t.Fatalf("analyze request not logged: %s", buf.String())
	}
}

func TestWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := ContextWithTraceID(context.Background(), "abc123")
	WithTrace(ctx, logger).Info("analyzed")
	if !strings.Contains(buf.String(), "trace_id=abc123") {
		t.Fatalf("trace id missing: %s", buf.String())
	}

	buf.Reset()
	WithTrace(context.Background(), logger).Info("analyzed")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("unexpected trace id: %s", buf.String())
	}
}

func TestStatusRecorder(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	if recorder.Code != http.StatusTeapot {
		t.Fatalf("status = %d", recorder.Code)
	}
	if recorder.Body.String() != "short and stout" {
		t.Fatalf("body = %q", recorder.Body.String())
	}
}
