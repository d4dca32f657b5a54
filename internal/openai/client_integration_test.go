//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbeddings_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	texts := []string{
		"Course MCP Lesson 0 content: what the Model Context Protocol is.",
		"Course MCP Lesson 1 content: building a server that exposes tools.",
	}

	vectors, err := client.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		assert.Len(t, v, DefaultEmbeddingDimensions)
	}
}

func TestIntegration_CreateChat_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewChatClient(ChatConfig{APIKey: apiKey})
	resp, err := client.CreateChat(context.Background(), domain.ChatRequest{
		System:   "Reply with the single word: pong",
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "ping"}},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StopReasonEndTurn, resp.StopReason)
	assert.NotEmpty(t, resp.Message.Content)
}
