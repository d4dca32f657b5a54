package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkID(t *testing.T) {
	assert.Equal(t, "Go Basics:3:0", ChunkID("Go Basics", IntPtr(3), 0))
	assert.Equal(t, "Go Basics::4", ChunkID("Go Basics", nil, 4))
}

func TestCourseChunk_ID(t *testing.T) {
	c := CourseChunk{CourseTitle: "X", LessonNumber: IntPtr(1), ChunkIndex: 2}
	assert.Equal(t, "X:1:2", c.ID())
}

func TestCourseChunk_Content(t *testing.T) {
	tests := []struct {
		name  string
		chunk CourseChunk
		want  string
	}{
		{
			name:  "first chunk has no overlap",
			chunk: CourseChunk{Prefix: "Course X Lesson 1 content: ", Body: "Sentence one."},
			want:  "Course X Lesson 1 content: Sentence one.",
		},
		{
			name:  "overlap precedes body",
			chunk: CourseChunk{Prefix: "Course X content: ", Overlap: " one.", Body: "Sentence two."},
			want:  "Course X content: one. Sentence two.",
		},
		{
			name:  "whitespace only overlap is dropped",
			chunk: CourseChunk{Prefix: "P: ", Overlap: " ", Body: "B."},
			want:  "P: B.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chunk.Content())
		})
	}
}
