package domain

import (
	"strconv"
	"strings"
	"time"
)

// CourseChunk is a span of normalized course text prefixed with a context header.
// Overlap holds the trailing characters carried over from the previous chunk's body.
type CourseChunk struct {
	CourseTitle  string
	LessonNumber *int
	LessonTitle  string
	ChunkIndex   int
	Prefix       string
	Overlap      string
	Body         string
	Embedding    []float32
	CreatedAt    time.Time
}

// ChunkID builds the stable identifier courseTitle:lessonNumber:index.
func ChunkID(courseTitle string, lessonNumber *int, index int) string {
	lesson := ""
	if lessonNumber != nil {
		lesson = strconv.Itoa(*lessonNumber)
	}
	return courseTitle + ":" + lesson + ":" + strconv.Itoa(index)
}

// ID returns the chunk's stable identifier.
func (c CourseChunk) ID() string {
	return ChunkID(c.CourseTitle, c.LessonNumber, c.ChunkIndex)
}

// Content renders the text that gets embedded and stored: prefix, overlap, then body.
func (c CourseChunk) Content() string {
	var b strings.Builder
	b.Grow(len(c.Prefix) + len(c.Overlap) + len(c.Body) + 1)
	b.WriteString(c.Prefix)
	if overlap := strings.TrimLeft(c.Overlap, " "); overlap != "" {
		b.WriteString(overlap)
		b.WriteByte(' ')
	}
	b.WriteString(c.Body)
	return b.String()
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
