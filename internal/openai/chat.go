package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/cloo-solutions/coursechat/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used when no chat model is configured
	DefaultChatModel = openai.GPT4oMini
	// DefaultMaxTokens caps the length of each completion
	DefaultMaxTokens = 800
)

// zeroTemperature is the closest the request can get to 0; go-openai drops a literal 0.
var zeroTemperature = float32(math.SmallestNonzeroFloat32)

// ChatAPI is the part of the go-openai client used for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatClient sends tool-enabled chat requests to OpenAI
type ChatClient struct {
	api       ChatAPI
	model     string
	maxTokens int
}

type ChatConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewChatClient creates a ChatClient backed by the OpenAI API.
func NewChatClient(cfg ChatConfig) *ChatClient {
	return NewChatClientWithAPI(newAPIClient(Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}), cfg)
}

// NewChatClientWithAPI creates a ChatClient around an existing API implementation.
func NewChatClientWithAPI(api ChatAPI, cfg ChatConfig) *ChatClient {
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ChatClient{api: api, model: model, maxTokens: maxTokens}
}

// CreateChat runs one chat completion and maps the reply back to domain types.
func (c *ChatClient) CreateChat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no chat completion choices returned")
	}

	choice := resp.Choices[0]
	msg := domain.ChatMessage{
		Role:    domain.RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, call := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	return &domain.ChatResponse{
		Message:    msg,
		StopReason: stopReason(choice.FinishReason),
	}, nil
}

func (c *ChatClient) buildRequest(req domain.ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, toOpenAIMessage(m))
	}

	out := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: zeroTemperature,
	}

	for _, def := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	if len(out.Tools) > 0 {
		out.ToolChoice = "auto"
	}

	return out
}

func toOpenAIMessage(m domain.ChatMessage) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, call := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: string(call.Arguments),
			},
		})
	}
	return out
}

func stopReason(reason openai.FinishReason) domain.StopReason {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return domain.StopReasonToolUse
	case openai.FinishReasonStop:
		return domain.StopReasonEndTurn
	case openai.FinishReasonLength:
		return domain.StopReasonMaxTokens
	default:
		return domain.StopReason(reason)
	}
}
