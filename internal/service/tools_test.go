package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCourseSearcher is a mock implementation of CourseSearcher
type MockCourseSearcher struct {
	mock.Mock
}

func (m *MockCourseSearcher) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (*SearchResults, error) {
	args := m.Called(ctx, query, courseName, lessonNumber, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SearchResults), args.Error(1)
}

func (m *MockCourseSearcher) ResolveCourseName(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// MockCourseCatalog is a mock implementation of CourseCatalog
type MockCourseCatalog struct {
	mock.Mock
}

func (m *MockCourseCatalog) GetByTitle(ctx context.Context, title string) (*domain.Course, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Course), args.Error(1)
}

func testCourse() *domain.Course {
	return &domain.Course{
		Title:      "MCP: Build Rich-Context AI Apps",
		Link:       "https://example.com/mcp",
		Instructor: "Elie Schoppik",
		Lessons: []domain.Lesson{
			{Number: 0, Title: "Introduction", Link: "https://example.com/mcp/0"},
			{Number: 1, Title: "Why MCP"},
		},
	}
}

func TestToolManager_Definitions(t *testing.T) {
	m := NewToolManager(new(MockCourseSearcher), new(MockCourseCatalog))
	defs := m.Definitions()

	require.Len(t, defs, 2)
	assert.Equal(t, "search_course_content", defs[0].Name)
	assert.Equal(t, []string{"query"}, defs[0].Parameters.Required)
	assert.Contains(t, defs[0].Parameters.Properties, "lesson_number")
	assert.Equal(t, "get_course_outline", defs[1].Name)
	assert.Equal(t, []string{"course_name"}, defs[1].Parameters.Required)
}

func TestToolManager_SearchCourseContent(t *testing.T) {
	searcher := new(MockCourseSearcher)
	catalog := new(MockCourseCatalog)
	m := NewToolManager(searcher, catalog)
	course := testCourse()

	searcher.On("Search", mock.Anything, "what is mcp", "MCP", (*int)(nil), 0).Return(&SearchResults{Hits: []SearchHit{
		{CourseTitle: course.Title, LessonNumber: domain.IntPtr(0), Content: "first"},
		{CourseTitle: course.Title, LessonNumber: domain.IntPtr(1), Content: "second"},
		{CourseTitle: course.Title, LessonNumber: domain.IntPtr(0), Content: "third"},
	}}, nil)
	catalog.On("GetByTitle", mock.Anything, course.Title).Return(course, nil).Once()

	result, err := m.Execute(context.Background(), "search_course_content", json.RawMessage(`{"query":"what is mcp","course_name":"MCP"}`))
	require.NoError(t, err)

	assert.Equal(t,
		"[MCP: Build Rich-Context AI Apps - Lesson 0]\nfirst\n\n"+
			"[MCP: Build Rich-Context AI Apps - Lesson 1]\nsecond\n\n"+
			"[MCP: Build Rich-Context AI Apps - Lesson 0]\nthird",
		result.Content)
	assert.Equal(t, []Source{
		{Label: "MCP: Build Rich-Context AI Apps - Lesson 0", Link: "https://example.com/mcp/0"},
		{Label: "MCP: Build Rich-Context AI Apps - Lesson 1", Link: "https://example.com/mcp"},
	}, result.Sources)

	searcher.AssertExpectations(t)
	catalog.AssertExpectations(t)
}

func TestToolManager_SearchCourseContentNoResults(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{name: "no filters", args: `{"query":"q"}`, want: "No relevant content found."},
		{name: "course", args: `{"query":"q","course_name":"RAG"}`, want: "No relevant content found in course 'RAG'."},
		{name: "course and lesson", args: `{"query":"q","course_name":"RAG","lesson_number":2}`, want: "No relevant content found in course 'RAG' in lesson 2."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(MockCourseSearcher)
			searcher.On("Search", mock.Anything, "q", mock.Anything, mock.Anything, 0).Return(&SearchResults{}, nil)
			m := NewToolManager(searcher, new(MockCourseCatalog))

			result, err := m.Execute(context.Background(), string(ToolSearchCourseContent), json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Content)
			assert.Empty(t, result.Sources)
		})
	}
}

func TestToolManager_SearchUnknownCourseIsRecoverable(t *testing.T) {
	searcher := new(MockCourseSearcher)
	searcher.On("Search", mock.Anything, "q", "Nope", (*int)(nil), 0).
		Return(&SearchResults{Message: "No course found matching 'Nope'"}, nil)
	m := NewToolManager(searcher, new(MockCourseCatalog))

	result, err := m.Execute(context.Background(), "search_course_content", json.RawMessage(`{"query":"q","course_name":"Nope"}`))
	require.NoError(t, err)
	assert.Equal(t, "No course found matching 'Nope'", result.Content)
}

func TestToolManager_InvalidArgumentsAreRecoverable(t *testing.T) {
	tests := []struct {
		name string
		tool ToolName
		args string
	}{
		{name: "malformed json", tool: ToolSearchCourseContent, args: `{"query":`},
		{name: "missing query", tool: ToolSearchCourseContent, args: `{"course_name":"MCP"}`},
		{name: "empty args", tool: ToolSearchCourseContent, args: ``},
		{name: "wrong lesson type", tool: ToolSearchCourseContent, args: `{"query":"q","lesson_number":"one"}`},
		{name: "negative lesson", tool: ToolSearchCourseContent, args: `{"query":"q","lesson_number":-1}`},
		{name: "outline missing course", tool: ToolGetCourseOutline, args: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(MockCourseSearcher)
			m := NewToolManager(searcher, new(MockCourseCatalog))

			result, err := m.Execute(context.Background(), string(tt.tool), json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Contains(t, result.Content, "No results: invalid arguments for "+string(tt.tool))
			searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestToolManager_UnknownTool(t *testing.T) {
	m := NewToolManager(new(MockCourseSearcher), new(MockCourseCatalog))

	result, err := m.Execute(context.Background(), "delete_everything", json.RawMessage(`{}`))
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
	assert.Contains(t, err.Error(), "delete_everything")
}

func TestToolManager_SearchFailurePropagates(t *testing.T) {
	searcher := new(MockCourseSearcher)
	searcher.On("Search", mock.Anything, "q", "", (*int)(nil), 0).Return(nil, errors.New("embedding service down"))
	m := NewToolManager(searcher, new(MockCourseCatalog))

	_, err := m.Execute(context.Background(), "search_course_content", json.RawMessage(`{"query":"q"}`))
	assert.EqualError(t, err, "embedding service down")
}

func TestToolManager_GetCourseOutline(t *testing.T) {
	searcher := new(MockCourseSearcher)
	catalog := new(MockCourseCatalog)
	course := testCourse()
	searcher.On("ResolveCourseName", mock.Anything, "mcp").Return(course.Title, nil)
	catalog.On("GetByTitle", mock.Anything, course.Title).Return(course, nil)
	m := NewToolManager(searcher, catalog)

	result, err := m.Execute(context.Background(), "get_course_outline", json.RawMessage(`{"course_name":"mcp"}`))
	require.NoError(t, err)

	assert.Equal(t, "Course Title: MCP: Build Rich-Context AI Apps\n"+
		"Course Link: https://example.com/mcp\n"+
		"Course Instructor: Elie Schoppik\n"+
		"Lessons (2 total):\n"+
		"Lesson 0: Introduction\n"+
		"Lesson 1: Why MCP", result.Content)
	assert.Equal(t, []Source{{Label: course.Title, Link: course.Link}}, result.Sources)
}

func TestToolManager_GetCourseOutlineUnknownCourse(t *testing.T) {
	searcher := new(MockCourseSearcher)
	searcher.On("ResolveCourseName", mock.Anything, "Nope").Return("", domain.ErrCourseNotFound)
	m := NewToolManager(searcher, new(MockCourseCatalog))

	result, err := m.Execute(context.Background(), "get_course_outline", json.RawMessage(`{"course_name":"Nope"}`))
	require.NoError(t, err)
	assert.Equal(t, "No course found matching 'Nope'", result.Content)
}
