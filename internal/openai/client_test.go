package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func vectors(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dims)
		out[i][0] = float32(i)
	}
	return out
}

func TestClient_GenerateEmbedding(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := &Client{api: api, dimensions: 4, batchSize: MaxBatchSize}
	ctx := context.Background()

	text := "Course MCP Lesson 1 content: servers expose tools to a client."
	api.On("CreateEmbeddings", ctx, []string{text}).Return(vectors(1, 4), nil)

	embedding, err := client.GenerateEmbedding(ctx, text)
	require.NoError(t, err)
	assert.Len(t, embedding, 4)
	api.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	embedding, err := client.GenerateEmbedding(context.Background(), "")
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := &Client{api: api, dimensions: 4}
	api.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("API rate limit exceeded"))

	embedding, err := client.GenerateEmbedding(context.Background(), "Test text")
	assert.Nil(t, embedding)
	assert.ErrorContains(t, err, "failed to create embedding")
	assert.ErrorContains(t, err, "rate limit")
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := &Client{api: api, dimensions: DefaultEmbeddingDimensions}
	api.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(vectors(1, 512), nil)

	embedding, err := client.GenerateEmbedding(context.Background(), "Test text")
	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, ErrWrongDimensions)
	assert.Contains(t, err.Error(), "got 512, expected 1536")
}

func TestClient_GenerateEmbeddings_Batches(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := &Client{api: api, dimensions: 2, batchSize: 2}
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, []string{"a", "b"}).Return(vectors(2, 2), nil).Once()
	api.On("CreateEmbeddings", ctx, []string{"c"}).Return(vectors(1, 2), nil).Once()

	got, err := client.GenerateEmbeddings(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, float32(1), got[1][0])
	assert.Equal(t, float32(0), got[2][0])
	api.AssertExpectations(t)
}

func TestClient_GenerateEmbeddings_RejectsEmptyInput(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := &Client{api: api, dimensions: 2}

	_, err := client.GenerateEmbeddings(context.Background(), []string{"a", ""})
	assert.ErrorIs(t, err, ErrEmptyText)
	api.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestNewClientWithConfig_Dimensions(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "k", EmbeddingDimensions: 768})
	assert.Equal(t, 768, client.Dimensions())
	assert.NotNil(t, client.api)

	client = NewClientWithConfig(Config{APIKey: "k"})
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
	assert.Equal(t, MaxBatchSize, client.batchSize)
}
