package middleware

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-42", seen)
}

func TestRequestID_ReplacesMalformedHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("x", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", bad)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.NotEqual(t, bad, seen)
		assert.Len(t, seen, 36)
	}
}

func TestAnnotations(t *testing.T) {
	var session, course string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetSessionID(r.Context(), "sess-1")
		SetCourseTitle(r.Context(), "MCP")
		session = GetSessionID(r.Context())
		course = GetCourseTitle(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "sess-1", session)
	assert.Equal(t, "MCP", course)

	bare := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	assert.NotPanics(t, func() { SetSessionID(bare, "ignored") })
	assert.Empty(t, GetSessionID(bare))
	assert.Empty(t, GetCourseTitle(bare))
}

func TestMaxBodyBytes_RejectsDeclaredLargeBody(t *testing.T) {
	handler := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds 4 bytes")
}

func TestMaxBodyBytes_LimitsUndeclaredBody(t *testing.T) {
	var readErr error
	handler := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too large"))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	assert.True(t, errors.As(readErr, &maxErr))
}

func TestMaxBodyBytes_ZeroDisables(t *testing.T) {
	called := false
	handler := MaxBodyBytes(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("anything")))
	assert.True(t, called)
}

func TestAccessLog_WritesEntryAndKeepsFlusher(t *testing.T) {
	buf := captureLog(t)

	handler := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetSessionID(r.Context(), "sess-1")
		w.WriteHeader(http.StatusAccepted)
		require.NoError(t, http.NewResponseController(w).Flush())
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query/stream", nil))

	assert.True(t, w.Flushed)
	assert.Contains(t, buf.String(), `"path":"/api/query/stream"`)
	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), `"stream":true`)
	assert.Contains(t, buf.String(), `"session_id":"sess-1"`)
}

func TestAccessLog_SkipsHealth(t *testing.T) {
	buf := captureLog(t)

	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", clientIP(req))
}

func TestSentryMiddleware_PassesResponseThrough(t *testing.T) {
	handler := RequestID(SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "short and stout", w.Body.String())
}

func TestSentryMiddleware_RepanicsAfterReporting(t *testing.T) {
	handler := SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	assert.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/courses", nil))
	})
}

func TestSpanStatus(t *testing.T) {
	tests := map[int]sentry.SpanStatus{
		http.StatusOK:                    sentry.SpanStatusOK,
		http.StatusNoContent:             sentry.SpanStatusOK,
		http.StatusBadRequest:            sentry.SpanStatusInvalidArgument,
		http.StatusRequestEntityTooLarge: sentry.SpanStatusInvalidArgument,
		http.StatusUnauthorized:          sentry.SpanStatusUnauthenticated,
		http.StatusForbidden:             sentry.SpanStatusPermissionDenied,
		http.StatusNotFound:              sentry.SpanStatusNotFound,
		http.StatusConflict:              sentry.SpanStatusInvalidArgument,
		http.StatusInternalServerError:   sentry.SpanStatusInternalError,
		http.StatusBadGateway:            sentry.SpanStatusUnavailable,
		http.StatusGatewayTimeout:        sentry.SpanStatusDeadlineExceeded,
	}
	for status, want := range tests {
		assert.Equal(t, want, spanStatus(status), "status %d", status)
	}
}
