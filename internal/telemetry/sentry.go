// Package telemetry wraps Sentry tracing for the course chat services.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	serverName   = "coursechat"
	flushTimeout = 5 * time.Second
)

// Config holds the Sentry settings read by the daemon.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init starts Sentry and returns a flush function. Without a DSN, or when Sentry refuses
// the options, tracing is off and the flush is a no-op.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if !sampledRoute(ctx.Span.Name) {
				return 0.0
			}
			var emptySpanID sentry.SpanID
			if ctx.Span.ParentSpanID != emptySpanID {
				if ctx.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return cfg.TracesSampleRate
		}),
	})
	if err != nil {
		log.Printf("sentry: init failed, tracing disabled: %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing on (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampledRoute drops health checks and static frontend requests. Span names that are
// not HTTP transactions are always sampled.
func sampledRoute(name string) bool {
	method, path, ok := strings.Cut(name, " ")
	if !ok || strings.ToUpper(method) != method {
		return true
	}
	return strings.HasPrefix(path, "/api/")
}

// SpanAttributes tags a span with the course chat entities it touches.
type SpanAttributes struct {
	CourseTitle string
	SessionID   string
	JobID       string
	Tool        string
	Operation   string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	tags := map[string]string{
		"course_title": a.CourseTitle,
		"session_id":   a.SessionID,
		"job_id":       a.JobID,
		"tool":         a.Tool,
	}
	for key, value := range tags {
		if value != "" {
			span.SetTag(key, value)
		}
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a nil-safe handle on a Sentry span.
type Span struct {
	inner *sentry.Span
}

// StartSpan opens a child of the span already in ctx, or a new transaction when there
// is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// Record attaches a measurement such as a chunk or hit count.
func (s *Span) Record(key string, value any) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span failed and reports err on the span's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// CaptureError reports err on the hub bound to ctx, falling back to the global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// Transition leaves a breadcrumb for one step of a conversation state machine.
func Transition(ctx context.Context, from, to, trigger string) {
	crumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  "generator",
		Message:   fmt.Sprintf("%s -> %s (%s)", from, to, trigger),
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(crumb, nil)
		return
	}
	sentry.AddBreadcrumb(crumb)
}
