package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCourse(t *testing.T) {
	now := time.Now()
	lessons := []Lesson{{Number: 0, Title: "Intro"}}
	c := NewCourse("Building Agents", "https://example.com/agents", "Ada", lessons, now)

	assert.Equal(t, "Building Agents", c.Title)
	assert.Equal(t, "https://example.com/agents", c.Link)
	assert.Equal(t, "Ada", c.Instructor)
	assert.Equal(t, lessons, c.Lessons)
	assert.Equal(t, now, c.CreatedAt)
	assert.Equal(t, now, c.UpdatedAt)
}

func TestValidateCourse(t *testing.T) {
	tests := []struct {
		name    string
		course  *Course
		wantErr error
		errMsg  string
	}{
		{
			name:   "valid course",
			course: &Course{Title: "Go", Lessons: []Lesson{{Number: 0}, {Number: 1}}},
		},
		{
			name:   "nil course",
			course: nil,
			errMsg: "nil",
		},
		{
			name:    "blank title",
			course:  &Course{Title: "   "},
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "negative lesson",
			course:  &Course{Title: "Go", Lessons: []Lesson{{Number: -1}}},
			wantErr: ErrInvalidLessonNumber,
		},
		{
			name:    "duplicate lesson",
			course:  &Course{Title: "Go", Lessons: []Lesson{{Number: 2}, {Number: 2}}},
			wantErr: ErrDuplicateLessonNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCourse(tt.course)
			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestCourse_Lesson(t *testing.T) {
	c := &Course{Title: "Go", Lessons: []Lesson{{Number: 1, Title: "Types"}, {Number: 2, Title: "Interfaces"}}}

	l, ok := c.Lesson(2)
	assert.True(t, ok)
	assert.Equal(t, "Interfaces", l.Title)

	_, ok = c.Lesson(7)
	assert.False(t, ok)
}
