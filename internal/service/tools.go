package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ToolName identifies a backend tool the model can call.
type ToolName string

const (
	ToolSearchCourseContent ToolName = "search_course_content"
	ToolGetCourseOutline    ToolName = "get_course_outline"
)

// Source is a citation shown alongside an answer.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// ToolResult is the outcome of one tool call: the text handed back to the model and
// the sources it drew on.
type ToolResult struct {
	Content string
	Sources []Source
}

// CourseSearcher is the retrieval side of the tools.
type CourseSearcher interface {
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (*SearchResults, error)
	ResolveCourseName(ctx context.Context, name string) (string, error)
}

// CourseCatalog looks up course metadata.
type CourseCatalog interface {
	GetByTitle(ctx context.Context, title string) (*domain.Course, error)
}

// SearchCourseContentArgs are the arguments of search_course_content.
type SearchCourseContentArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name,omitempty"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
}

// GetCourseOutlineArgs are the arguments of get_course_outline.
type GetCourseOutlineArgs struct {
	CourseName string `json:"course_name"`
}

// ToolManager dispatches tool calls by name. It holds no per-request state.
type ToolManager struct {
	search  CourseSearcher
	catalog CourseCatalog
}

// NewToolManager creates a new ToolManager instance
func NewToolManager(search CourseSearcher, catalog CourseCatalog) *ToolManager {
	return &ToolManager{search: search, catalog: catalog}
}

// Definitions returns the tool schemas advertised to the model.
func (m *ToolManager) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Name:        string(ToolSearchCourseContent),
			Description: "Search course materials with smart course name matching and lesson filtering",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: "What to search for in the course content",
					},
					"course_name": {
						Type:        jsonschema.String,
						Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
					"lesson_number": {
						Type:        jsonschema.Integer,
						Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        string(ToolGetCourseOutline),
			Description: "Get the outline of a course: title, link, instructor and the numbered list of lessons",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"course_name": {
						Type:        jsonschema.String,
						Description: "Course title (partial matches work)",
					},
				},
				Required: []string{"course_name"},
			},
		},
	}
}

// Execute runs the named tool. Unknown names return domain.ErrUnknownTool. Arguments
// that fail to decode or validate produce a "no results" text instead of an error so
// the model can recover.
func (m *ToolManager) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (*ToolResult, error) {
	switch ToolName(name) {
	case ToolSearchCourseContent:
		var args SearchCourseContentArgs
		if err := decodeToolArgs(rawArgs, &args); err != nil {
			return invalidArgsResult(name, err), nil
		}
		if strings.TrimSpace(args.Query) == "" {
			return invalidArgsResult(name, fmt.Errorf("%w: query", domain.ErrMissingRequiredField)), nil
		}
		if args.LessonNumber != nil && *args.LessonNumber < 0 {
			return invalidArgsResult(name, domain.ErrInvalidLessonNumber), nil
		}
		return m.searchCourseContent(ctx, args)

	case ToolGetCourseOutline:
		var args GetCourseOutlineArgs
		if err := decodeToolArgs(rawArgs, &args); err != nil {
			return invalidArgsResult(name, err), nil
		}
		if strings.TrimSpace(args.CourseName) == "" {
			return invalidArgsResult(name, fmt.Errorf("%w: course_name", domain.ErrMissingRequiredField)), nil
		}
		return m.courseOutline(ctx, args)

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTool, name)
	}
}

func (m *ToolManager) searchCourseContent(ctx context.Context, args SearchCourseContentArgs) (*ToolResult, error) {
	results, err := m.search.Search(ctx, args.Query, args.CourseName, args.LessonNumber, 0)
	if err != nil {
		return nil, err
	}
	if results.Message != "" {
		return &ToolResult{Content: results.Message}, nil
	}
	if results.IsEmpty() {
		return &ToolResult{Content: noContentMessage(args.CourseName, args.LessonNumber)}, nil
	}

	courses := make(map[string]*domain.Course)
	seen := make(map[string]struct{})
	blocks := make([]string, 0, len(results.Hits))
	var sources []Source

	for _, hit := range results.Hits {
		label := hit.CourseTitle
		if hit.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", hit.CourseTitle, *hit.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, hit.Content))

		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		sources = append(sources, Source{Label: label, Link: m.sourceLink(ctx, courses, hit)})
	}

	return &ToolResult{Content: strings.Join(blocks, "\n\n"), Sources: sources}, nil
}

// sourceLink prefers the lesson link and falls back to the course link. Lookups are
// cached per call in courses.
func (m *ToolManager) sourceLink(ctx context.Context, courses map[string]*domain.Course, hit SearchHit) string {
	course, ok := courses[hit.CourseTitle]
	if !ok {
		var err error
		course, err = m.catalog.GetByTitle(ctx, hit.CourseTitle)
		if err != nil {
			log.Printf("tools: failed to load course %q for source link: %v", hit.CourseTitle, err)
			course = nil
		}
		courses[hit.CourseTitle] = course
	}
	if course == nil {
		return ""
	}
	if hit.LessonNumber != nil {
		if lesson, ok := course.Lesson(*hit.LessonNumber); ok && lesson.Link != "" {
			return lesson.Link
		}
	}
	return course.Link
}

func (m *ToolManager) courseOutline(ctx context.Context, args GetCourseOutlineArgs) (*ToolResult, error) {
	title, err := m.search.ResolveCourseName(ctx, args.CourseName)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return &ToolResult{Content: fmt.Sprintf("No course found matching '%s'", args.CourseName)}, nil
		}
		return nil, err
	}

	course, err := m.catalog.GetByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return &ToolResult{Content: fmt.Sprintf("No course found matching '%s'", args.CourseName)}, nil
		}
		return nil, err
	}

	return &ToolResult{
		Content: FormatCourseOutline(course),
		Sources: []Source{{Label: course.Title, Link: course.Link}},
	}, nil
}

// FormatCourseOutline renders a course and its lessons as plain text.
func FormatCourseOutline(c *domain.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course Title: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&b, "Course Instructor: %s\n", c.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d total):", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&b, "\nLesson %d: %s", l.Number, l.Title)
	}
	return b.String()
}

func noContentMessage(courseName string, lessonNumber *int) string {
	msg := "No relevant content found"
	if courseName != "" {
		msg += fmt.Sprintf(" in course '%s'", courseName)
	}
	if lessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *lessonNumber)
	}
	return msg + "."
}

func invalidArgsResult(name string, err error) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf("No results: invalid arguments for %s (%v)", name, err)}
}

func decodeToolArgs(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidToolArguments, err)
	}
	return nil
}
