package middleware

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

type accessLogEntry struct {
	Timestamp   string `json:"ts"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Status      int    `json:"status"`
	Bytes       int    `json:"bytes"`
	DurationMS  int64  `json:"duration_ms"`
	Stream      bool   `json:"stream,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Principal   string `json:"principal,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	CourseTitle string `json:"course_title,omitempty"`
	RemoteAddr  string `json:"remote_addr,omitempty"`
}

// statusRecorder remembers the status, size and flushes of a response. It unwraps so
// http.ResponseController can still flush server-sent events.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	flushed bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) FlushError() error {
	r.flushed = true
	return http.NewResponseController(r.ResponseWriter).Flush()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// AccessLog writes one JSON line per request. Health checks are not logged.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		ctx := r.Context()
		payload, err := json.Marshal(accessLogEntry{
			Timestamp:   start.UTC().Format(time.RFC3339Nano),
			Method:      r.Method,
			Path:        r.URL.Path,
			Status:      rec.code(),
			Bytes:       rec.bytes,
			DurationMS:  time.Since(start).Milliseconds(),
			Stream:      rec.flushed,
			RequestID:   GetRequestID(ctx),
			Principal:   GetPrincipal(ctx),
			SessionID:   GetSessionID(ctx),
			CourseTitle: GetCourseTitle(ctx),
			RemoteAddr:  clientIP(r),
		})
		if err != nil {
			log.Printf("access log: %v", err)
			return
		}
		log.Println(string(payload))
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
