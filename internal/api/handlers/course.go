package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cloo-solutions/coursechat/internal/api"
	"github.com/cloo-solutions/coursechat/internal/api/middleware"
	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CourseService interface {
	CourseAnalytics(ctx context.Context) (*domain.CourseAnalytics, error)
	CourseOutline(ctx context.Context, name string) (*domain.Course, error)
}

type CourseHandler struct {
	svc CourseService
}

func NewCourseHandler(svc CourseService) *CourseHandler {
	return &CourseHandler{svc: svc}
}

type CourseStatsResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

type LessonResponse struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

type CourseOutlineResponse struct {
	Title      string           `json:"title"`
	Link       string           `json:"course_link,omitempty"`
	Instructor string           `json:"instructor,omitempty"`
	Lessons    []LessonResponse `json:"lessons"`
}

func courseToOutline(c *domain.Course) *CourseOutlineResponse {
	lessons := make([]LessonResponse, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		lessons = append(lessons, LessonResponse{Number: l.Number, Title: l.Title, Link: l.Link})
	}
	return &CourseOutlineResponse{
		Title:      c.Title,
		Link:       c.Link,
		Instructor: c.Instructor,
		Lessons:    lessons,
	}
}

func (h *CourseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.svc.CourseAnalytics(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &CourseStatsResponse{
		TotalCourses: analytics.TotalCourses,
		CourseTitles: analytics.CourseTitles,
	})
}

func (h *CourseHandler) Outline(w http.ResponseWriter, r *http.Request) {
	title, err := pathParam(r, "title")
	if err != nil || title == "" {
		api.Error(w, http.StatusBadRequest, "course title is required")
		return
	}

	course, err := h.svc.CourseOutline(r.Context(), title)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	middleware.SetCourseTitle(r.Context(), course.Title)
	api.Success(w, http.StatusOK, courseToOutline(course))
}

// pathParam returns a decoded URL parameter. chi matches on the raw path only when the
// request carries escapes such as %2F, and only then is the parameter still encoded.
func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}
