package service

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/coursechat/internal/domain"
)

// ChunkConfig controls chunking of course text. Sizes are counted in characters (runes).
type ChunkConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:    800,
		ChunkOverlap: 100,
	}
}

// Validate reports a configuration error when the sizes cannot produce chunks.
func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrInvalidChunkConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap cannot be negative, got %d", domain.ErrInvalidChunkConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be less than chunk_size (%d)",
			domain.ErrInvalidChunkConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// ChunkSource is one span of course text together with the metadata that identifies it.
type ChunkSource struct {
	CourseTitle  string
	LessonNumber *int
	LessonTitle  string
	Text         string
}

// ChunkDocument splits src into sentence-aligned, overlapping, context-prefixed chunks.
//
// The configuration is checked before any text is touched. The returned sequence is
// lazy and holds no state between iterations, so ranging over it again yields the
// same chunks. Empty or whitespace-only text yields no chunks.
func ChunkDocument(src ChunkSource, cfg ChunkConfig) (iter.Seq[domain.CourseChunk], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prefix := contextPrefix(src)

	return func(yield func(domain.CourseChunk) bool) {
		sentences := splitSentences(normalizeWhitespace(src.Text))
		if len(sentences) == 0 {
			return
		}

		index := 0
		previous := ""
		emit := func(body string) bool {
			chunk := domain.CourseChunk{
				CourseTitle:  src.CourseTitle,
				LessonNumber: src.LessonNumber,
				LessonTitle:  src.LessonTitle,
				ChunkIndex:   index,
				Prefix:       prefix,
				Body:         body,
			}
			if index > 0 {
				chunk.Overlap = lastRunes(previous, cfg.ChunkOverlap)
			}
			index++
			previous = body
			return yield(chunk)
		}

		packSentences(sentences, cfg.ChunkSize, emit)
	}, nil
}

// ChunkAll collects the chunks of every source in order.
func ChunkAll(sources []ChunkSource, cfg ChunkConfig) ([]domain.CourseChunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []domain.CourseChunk
	for _, src := range sources {
		seq, err := ChunkDocument(src, cfg)
		if err != nil {
			return nil, err
		}
		for chunk := range seq {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// packSentences greedily groups consecutive sentences into bodies of at most size
// runes. A sentence longer than size becomes a body on its own.
func packSentences(sentences []string, size int, emit func(body string) bool) {
	var current strings.Builder
	currentLen := 0

	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if currentLen == 0 {
			current.WriteString(sentence)
			currentLen = n
			continue
		}
		if currentLen+1+n <= size {
			current.WriteByte(' ')
			current.WriteString(sentence)
			currentLen += 1 + n
			continue
		}
		if !emit(current.String()) {
			return
		}
		current.Reset()
		current.WriteString(sentence)
		currentLen = n
	}

	if currentLen > 0 {
		emit(current.String())
	}
}

func contextPrefix(src ChunkSource) string {
	if src.LessonNumber != nil {
		return fmt.Sprintf("Course %s Lesson %d content: ", src.CourseTitle, *src.LessonNumber)
	}
	return fmt.Sprintf("Course %s content: ", src.CourseTitle)
}

// normalizeWhitespace collapses every whitespace run to a single space and trims the ends.
func normalizeWhitespace(text string) string {
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}

// splitSentences cuts normalized text after '.', '!' or '?' when a space follows.
// The terminator stays with its sentence; the separating space is dropped.
func splitSentences(text string) []string {
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				sentences = append(sentences, text[start:i+1])
				start = i + 2
			}
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := len(s); i > 0; {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		count++
		if count == n {
			return s[i:]
		}
	}
	return s
}
