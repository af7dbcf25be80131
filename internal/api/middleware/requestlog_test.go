package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// serve runs one request through h and returns the log lines it produced.
func serve(t *testing.T, h echo.HandlerFunc, buf *bytes.Buffer, req *http.Request) (*httptest.ResponseRecorder, echo.Context, string) {
	t.Helper()

	before := buf.Len()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	require.NoError(t, h(c))
	return rec, c, buf.String()[before:]
}

func TestRequestLog_Fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		requestID string
		want      []string
	}{
		{
			name:   "generated request ID",
			method: http.MethodGet,
			path:   "/api/v1/runs",
			status: http.StatusOK,
			want:   []string{"level=INFO", "method=GET", "path=/api/v1/runs", "status=200", "duration_ms=", "request_id="},
		},
		{
			name:      "caller request ID is kept",
			method:    http.MethodPost,
			path:      "/api/v1/sync",
			status:    http.StatusOK,
			requestID: "sync-from-cron-7",
			want:      []string{"method=POST", "request_id=sync-from-cron-7"},
		},
		{
			name:   "conflict stays at info",
			method: http.MethodPost,
			path:   "/api/v1/sync",
			status: http.StatusConflict,
			want:   []string{"level=INFO", "status=409"},
		},
		{
			name:   "server error logged at error",
			method: http.MethodPost,
			path:   "/api/v1/sync",
			status: http.StatusInternalServerError,
			want:   []string{"level=ERROR", "status=500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			h := RequestLog(slog.New(slog.NewTextHandler(&buf, nil)))(func(c echo.Context) error {
				return c.NoContent(tt.status)
			})

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.requestID != "" {
				req.Header.Set(requestIDHeader, tt.requestID)
			}
			rec, c, out := serve(t, h, &buf, req)

			for _, field := range tt.want {
				assert.Contains(t, out, field)
			}
			assert.NotContains(t, out, "trace_id=")

			respID := rec.Header().Get(requestIDHeader)
			require.NotEmpty(t, respID)
			assert.Equal(t, respID, c.Get("request_id"))
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, respID)
			}
		})
	}
}

func TestRequestLog_ProbeSuppression(t *testing.T) {
	t.Parallel()

	type call struct {
		path   string
		status int
		logged bool
	}

	tests := []struct {
		name  string
		calls []call
	}{
		{
			name: "healthz success logged once",
			calls: []call{
				{"/healthz", http.StatusOK, true},
				{"/healthz", http.StatusOK, false},
				{"/healthz", http.StatusOK, false},
			},
		},
		{
			name: "probe failures always logged",
			calls: []call{
				{"/readyz", http.StatusServiceUnavailable, true},
				{"/readyz", http.StatusServiceUnavailable, true},
			},
		},
		{
			name: "failure after suppressed successes",
			calls: []call{
				{"/readyz", http.StatusOK, true},
				{"/readyz", http.StatusOK, false},
				{"/readyz", http.StatusServiceUnavailable, true},
				{"/readyz", http.StatusOK, false},
			},
		},
		{
			name: "probes tracked per path",
			calls: []call{
				{"/healthz", http.StatusOK, true},
				{"/readyz", http.StatusOK, true},
				{"/healthz", http.StatusOK, false},
			},
		},
		{
			name: "api paths never suppressed",
			calls: []call{
				{"/api/v1/state", http.StatusOK, true},
				{"/api/v1/state", http.StatusOK, true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			var status int
			h := RequestLog(slog.New(slog.NewTextHandler(&buf, nil)))(func(c echo.Context) error {
				return c.NoContent(status)
			})

			for i, cl := range tt.calls {
				status = cl.status
				_, _, out := serve(t, h, &buf, httptest.NewRequest(http.MethodGet, cl.path, http.NoBody))
				if !cl.logged {
					assert.Empty(t, out, "call %d", i)
					continue
				}
				assert.Contains(t, out, "path="+cl.path, "call %d", i)
				if cl.status >= http.StatusBadRequest {
					assert.Contains(t, out, "level=WARN", "call %d", i)
				}
			}
		})
	}
}

func TestRequestLog_TraceID(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	h := RequestLog(slog.New(slog.NewTextHandler(&buf, nil)))(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", http.NoBody).WithContext(ctx)
	_, _, out := serve(t, h, &buf, req)

	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "trace_id=4bf92f3577b34da6a3ce929d0e0e4736")
}
