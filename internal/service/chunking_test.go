package service

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lessonText = `Retrieval augmented generation pairs a search step with a language model.
The search step finds passages that are relevant to the question!   Those passages are
added to the prompt. Why does this help? The model can ground its answer in the course
material instead of relying only on what it memorized during training.

Chunking matters because embeddings work best on focused spans of text. Chunks that are
too large blur several topics together. Chunks that are too small lose the context that
makes a passage meaningful. Overlap between neighbouring chunks keeps ideas that cross a
boundary searchable from both sides.`

func collect(t *testing.T, src ChunkSource, cfg ChunkConfig) []domain.CourseChunk {
	t.Helper()
	seq, err := ChunkDocument(src, cfg)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func bodies(chunks []domain.CourseChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Body
	}
	return out
}

func TestChunkDocument_Example(t *testing.T) {
	src := ChunkSource{CourseTitle: "X", LessonNumber: domain.IntPtr(1), Text: "Sentence one. Sentence two. Sentence three."}

	chunks := collect(t, src, ChunkConfig{ChunkSize: 25, ChunkOverlap: 5})

	require.Len(t, chunks, 3)
	assert.Equal(t, "Course X Lesson 1 content: Sentence one.", chunks[0].Content())
	assert.Empty(t, chunks[0].Overlap)

	assert.Equal(t, " one.", chunks[1].Overlap)
	assert.Equal(t, "Sentence two.", chunks[1].Body)
	assert.Equal(t, "Course X Lesson 1 content: one. Sentence two.", chunks[1].Content())

	assert.Equal(t, " two.", chunks[2].Overlap)
	assert.Equal(t, "Sentence three.", chunks[2].Body)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "X", c.CourseTitle)
		assert.Equal(t, 1, *c.LessonNumber)
	}
	assert.Equal(t, "X:1:2", chunks[2].ID())
}

func TestChunkDocument_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \r\n"} {
		chunks := collect(t, ChunkSource{CourseTitle: "X", Text: text}, DefaultChunkConfig())
		assert.Empty(t, chunks)
	}
}

func TestChunkDocument_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChunkConfig
	}{
		{name: "overlap equals size", cfg: ChunkConfig{ChunkSize: 10, ChunkOverlap: 10}},
		{name: "overlap exceeds size", cfg: ChunkConfig{ChunkSize: 10, ChunkOverlap: 11}},
		{name: "zero size", cfg: ChunkConfig{ChunkSize: 0, ChunkOverlap: 0}},
		{name: "negative overlap", cfg: ChunkConfig{ChunkSize: 10, ChunkOverlap: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := ChunkDocument(ChunkSource{CourseTitle: "X", Text: "Some text."}, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, seq)
			assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
			assert.Equal(t, domain.ErrCodeConfiguration, domain.CodeOf(err))
		})
	}
}

func TestChunkDocument_PrefixWithoutLesson(t *testing.T) {
	chunks := collect(t, ChunkSource{CourseTitle: "Intro to MCP", Text: "Welcome."}, DefaultChunkConfig())

	require.Len(t, chunks, 1)
	assert.Equal(t, "Course Intro to MCP content: Welcome.", chunks[0].Content())
	assert.Nil(t, chunks[0].LessonNumber)
}

func TestChunkDocument_ReconstructsNormalizedText(t *testing.T) {
	normalized := normalizeWhitespace(lessonText)

	for _, cfg := range []ChunkConfig{
		{ChunkSize: 40, ChunkOverlap: 0},
		{ChunkSize: 80, ChunkOverlap: 20},
		{ChunkSize: 200, ChunkOverlap: 50},
		{ChunkSize: 800, ChunkOverlap: 100},
	} {
		chunks := collect(t, ChunkSource{CourseTitle: "RAG", Text: lessonText}, cfg)
		assert.Equal(t, normalized, strings.Join(bodies(chunks), " "), "config %+v", cfg)
	}
}

func TestChunkDocument_BodiesRespectSize(t *testing.T) {
	cfg := ChunkConfig{ChunkSize: 120, ChunkOverlap: 30}
	chunks := collect(t, ChunkSource{CourseTitle: "RAG", Text: lessonText}, cfg)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		n := utf8.RuneCountInString(c.Body)
		if n > cfg.ChunkSize {
			assert.Len(t, splitSentences(c.Body), 1, "only a lone sentence may exceed the size: %q", c.Body)
		}
	}
}

func TestChunkDocument_OversizedSentenceIsNotSplit(t *testing.T) {
	long := "This single sentence is deliberately much longer than the configured chunk size allows."
	text := "Short one. " + long + " Short two."

	chunks := collect(t, ChunkSource{CourseTitle: "X", Text: text}, ChunkConfig{ChunkSize: 30, ChunkOverlap: 5})

	assert.Equal(t, []string{"Short one.", long, "Short two."}, bodies(chunks))
}

func TestChunkDocument_OverlapIsTailOfPreviousBody(t *testing.T) {
	cfg := ChunkConfig{ChunkSize: 60, ChunkOverlap: 15}
	chunks := collect(t, ChunkSource{CourseTitle: "RAG", Text: lessonText}, cfg)
	require.Greater(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Body
		assert.True(t, strings.HasSuffix(prev, chunks[i].Overlap))
		assert.LessOrEqual(t, utf8.RuneCountInString(chunks[i].Overlap), cfg.ChunkOverlap)
		assert.NotContains(t, chunks[i].Overlap, "content:")
	}
}

func TestChunkDocument_OverlapCountsRunes(t *testing.T) {
	text := "Přílišná žluťoučká věta. Další věta."
	chunks := collect(t, ChunkSource{CourseTitle: "CZ", Text: text}, ChunkConfig{ChunkSize: 25, ChunkOverlap: 5})

	require.Len(t, chunks, 2)
	assert.Equal(t, "věta.", chunks[1].Overlap)
	assert.Equal(t, "Course CZ content: věta. Další věta.", chunks[1].Content())
}

func TestChunkDocument_ChunkCountMonotonic(t *testing.T) {
	previous := 0
	for size := 400; size >= 20; size -= 20 {
		chunks := collect(t, ChunkSource{CourseTitle: "RAG", Text: lessonText}, ChunkConfig{ChunkSize: size, ChunkOverlap: 10})
		assert.GreaterOrEqual(t, len(chunks), previous, "size %d", size)
		previous = len(chunks)
	}
}

func TestChunkDocument_IdempotentAndRestartable(t *testing.T) {
	src := ChunkSource{CourseTitle: "RAG", LessonNumber: domain.IntPtr(2), Text: lessonText}
	cfg := ChunkConfig{ChunkSize: 100, ChunkOverlap: 20}

	seq, err := ChunkDocument(src, cfg)
	require.NoError(t, err)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	third := collect(t, src, cfg)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestChunkDocument_StopsWhenConsumerBreaks(t *testing.T) {
	seq, err := ChunkDocument(ChunkSource{CourseTitle: "RAG", Text: lessonText}, ChunkConfig{ChunkSize: 40, ChunkOverlap: 0})
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "terminators", in: "One. Two! Three? Four", want: []string{"One.", "Two!", "Three?", "Four"}},
		{name: "no space after period", in: "Pi is 3.14 roughly. Yes.", want: []string{"Pi is 3.14 roughly.", "Yes."}},
		{name: "ellipsis", in: "Wait... Then go.", want: []string{"Wait...", "Then go."}},
		{name: "empty", in: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.in))
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", normalizeWhitespace("  a\n\n b\t\tc \r\n"))
	assert.Equal(t, "", normalizeWhitespace(" \n "))
}

func TestChunkAll(t *testing.T) {
	sources := []ChunkSource{
		{CourseTitle: "X", LessonNumber: domain.IntPtr(0), Text: "Alpha. Beta."},
		{CourseTitle: "X", LessonNumber: domain.IntPtr(1), Text: "Gamma."},
	}

	chunks, err := ChunkAll(sources, ChunkConfig{ChunkSize: 8, ChunkOverlap: 2})
	require.NoError(t, err)

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID()
	}
	assert.Equal(t, []string{"X:0:0", "X:0:1", "X:1:0"}, ids)

	_, err = ChunkAll(sources, ChunkConfig{ChunkSize: 5, ChunkOverlap: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}
