package domain

import (
	"fmt"
	"strings"
	"time"
)

// Course is a unit of course material. The title is its identifier.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Lesson is a numbered section of a course.
type Lesson struct {
	Number int
	Title  string
	Link   string
}

// NewCourse creates a new Course instance
func NewCourse(title, link, instructor string, lessons []Lesson, createdAt time.Time) *Course {
	return &Course{
		Title:      title,
		Link:       link,
		Instructor: instructor,
		Lessons:    lessons,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// ValidateCourse validates a Course instance
func ValidateCourse(c *Course) error {
	if c == nil {
		return fmt.Errorf("course cannot be nil")
	}

	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: course title", ErrMissingRequiredField)
	}

	seen := make(map[int]struct{}, len(c.Lessons))
	for _, l := range c.Lessons {
		if l.Number < 0 {
			return fmt.Errorf("%w: lesson %d", ErrInvalidLessonNumber, l.Number)
		}
		if _, ok := seen[l.Number]; ok {
			return fmt.Errorf("%w: lesson %d", ErrDuplicateLessonNumber, l.Number)
		}
		seen[l.Number] = struct{}{}
	}

	return nil
}

// Lesson returns the lesson with the given number.
func (c *Course) Lesson(number int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l, true
		}
	}
	return Lesson{}, false
}

// CourseAnalytics summarizes the course catalog.
type CourseAnalytics struct {
	TotalCourses int
	CourseTitles []string
}
