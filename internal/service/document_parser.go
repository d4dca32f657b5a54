package service

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/coursechat/internal/domain"
)

var (
	courseTitleRe      = regexp.MustCompile(`(?i)^course title:\s*(.*)$`)
	courseLinkRe       = regexp.MustCompile(`(?i)^course link:\s*(.*)$`)
	courseInstructorRe = regexp.MustCompile(`(?i)^course instructor:\s*(.*)$`)
	lessonRe           = regexp.MustCompile(`(?i)^lesson\s+(\d+)\s*:\s*(.*)$`)
	lessonLinkRe       = regexp.MustCompile(`(?i)^lesson link:\s*(.*)$`)
)

var supportedDocumentExts = map[string]struct{}{
	".txt": {},
	".md":  {},
}

// ParsedDocument is a course document split into course metadata and chunkable text spans.
type ParsedDocument struct {
	Course  *domain.Course
	Sources []ChunkSource
}

// IsSupportedDocument reports whether name has an extension the parser understands.
func IsSupportedDocument(name string) bool {
	_, ok := supportedDocumentExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ParseCourseDocument parses a course script. The expected layout is:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: <title>
//	Lesson Link: <url>
//	<lesson text>
//
// Header lines other than the title are optional; a missing title falls back to the
// file name. Text before the first lesson marker becomes course-level content.
func ParseCourseDocument(name, body string) (*ParsedDocument, error) {
	if !IsSupportedDocument(name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, filepath.Ext(name))
	}
	if !utf8.ValidString(body) {
		return nil, domain.ErrInvalidDocumentEncoding
	}
	if strings.TrimSpace(body) == "" {
		return nil, domain.ErrEmptyDocument
	}

	course := &domain.Course{}
	var (
		sources     []ChunkSource
		preamble    strings.Builder
		lesson      *domain.Lesson
		lessonText  strings.Builder
		inHeader    = true
		expectLink  bool
		seenLessons = make(map[int]struct{})
	)

	flushLesson := func() {
		if lesson == nil {
			return
		}
		course.Lessons = append(course.Lessons, *lesson)
		sources = append(sources, ChunkSource{
			LessonNumber: domain.IntPtr(lesson.Number),
			LessonTitle:  lesson.Title,
			Text:         lessonText.String(),
		})
		lessonText.Reset()
		lesson = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if inHeader {
			if m := courseTitleRe.FindStringSubmatch(trimmed); m != nil {
				course.Title = strings.TrimSpace(m[1])
				continue
			}
			if m := courseLinkRe.FindStringSubmatch(trimmed); m != nil {
				course.Link = strings.TrimSpace(m[1])
				continue
			}
			if m := courseInstructorRe.FindStringSubmatch(trimmed); m != nil {
				course.Instructor = strings.TrimSpace(m[1])
				continue
			}
		}

		if m := lessonRe.FindStringSubmatch(trimmed); m != nil {
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("%w: lesson number %q", domain.ErrInvalidLessonNumber, m[1])
			}
			if _, dup := seenLessons[number]; dup {
				return nil, fmt.Errorf("%w: lesson %d", domain.ErrDuplicateLessonNumber, number)
			}
			seenLessons[number] = struct{}{}
			flushLesson()
			inHeader = false
			lesson = &domain.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
			expectLink = true
			continue
		}

		if expectLink && lesson != nil {
			if m := lessonLinkRe.FindStringSubmatch(trimmed); m != nil {
				lesson.Link = strings.TrimSpace(m[1])
				expectLink = false
				continue
			}
			if trimmed != "" {
				expectLink = false
			}
		}

		if trimmed != "" {
			inHeader = false
		}

		if lesson != nil {
			lessonText.WriteString(line)
			lessonText.WriteByte('\n')
		} else {
			preamble.WriteString(line)
			preamble.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	flushLesson()

	if course.Title == "" {
		course.Title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	if strings.TrimSpace(preamble.String()) != "" {
		sources = append([]ChunkSource{{Text: preamble.String()}}, sources...)
	}
	for i := range sources {
		sources[i].CourseTitle = course.Title
	}

	if err := domain.ValidateCourse(course); err != nil {
		return nil, err
	}

	return &ParsedDocument{Course: course, Sources: sources}, nil
}
