package middleware

import (
	"context"
	"sync"
)

const annotationsKey contextKey = "annotations"

// annotations carry what a handler learned about the request back out to the access
// log and Sentry, which only see the request after the handler returns.
type annotations struct {
	mu          sync.Mutex
	sessionID   string
	courseTitle string
}

func withAnnotations(ctx context.Context) context.Context {
	return context.WithValue(ctx, annotationsKey, &annotations{})
}

func annotationsFrom(ctx context.Context) *annotations {
	a, _ := ctx.Value(annotationsKey).(*annotations)
	return a
}

// SetSessionID records the chat session the request was served in.
func SetSessionID(ctx context.Context, sessionID string) {
	if a := annotationsFrom(ctx); a != nil {
		a.mu.Lock()
		a.sessionID = sessionID
		a.mu.Unlock()
	}
}

// SetCourseTitle records the course the request was about.
func SetCourseTitle(ctx context.Context, title string) {
	if a := annotationsFrom(ctx); a != nil {
		a.mu.Lock()
		a.courseTitle = title
		a.mu.Unlock()
	}
}

func GetSessionID(ctx context.Context) string {
	a := annotationsFrom(ctx)
	if a == nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

func GetCourseTitle(ctx context.Context) string {
	a := annotationsFrom(ctx)
	if a == nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.courseTitle
}
