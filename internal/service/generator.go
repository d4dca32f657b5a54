package service

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/telemetry"
)

// DefaultMaxToolIterations bounds the number of tool rounds in one generation.
const DefaultMaxToolIterations = 10

// SystemPrompt is the fixed instruction sent with every generation.
const SystemPrompt = `You are an assistant for course materials. You can search course content and fetch course outlines.

Tools:
- get_course_outline: use for questions about a course's structure, curriculum or list of lessons. Present the full outline, including the course link and every lesson number and title.
- search_course_content: use for questions about specific course content. Search at most once per question. If the search finds nothing, say so plainly.

Answering:
- Answer general knowledge questions directly without tools.
- Give the answer only. Do not describe your reasoning, the search, or the tools you used.
- Be brief, accurate and clear. Include an example when it helps understanding.`

// ConversationState is a step of the tool-calling state machine.
type ConversationState string

const (
	StateInitial              ConversationState = "INITIAL"
	StateAwaitingToolDecision ConversationState = "AWAITING_TOOL_DECISION"
	StateExecutingTools       ConversationState = "EXECUTING_TOOLS"
	StateAwaitingFollowUp     ConversationState = "AWAITING_FOLLOW_UP"
	StateCompleted            ConversationState = "COMPLETED"
	StateError                ConversationState = "ERROR"
)

// IsTerminal reports whether no transition leaves s.
func (s ConversationState) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// Transition triggers.
const (
	TriggerAPICallComplete       = "api_call_complete"
	TriggerToolUse               = "tool_use"
	TriggerToolsExecuted         = "tools_executed"
	TriggerEndTurn               = "end_turn"
	TriggerMaxTokens             = "max_tokens"
	TriggerUnknownStopReason     = "unknown_stop_reason"
	TriggerAPIError              = "api_error"
	TriggerMaxIterationsExceeded = "max_iterations_exceeded"
)

// ToolCallRecord tracks one executed tool call.
type ToolCallRecord struct {
	Index     int             `json:"index"`
	Name      string          `json:"tool_name"`
	Input     json.RawMessage `json:"input"`
	Result    string          `json:"result"`
	Failed    bool            `json:"failed,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransitionData carries what a transition produced. Only the fields relevant to the
// trigger are set.
type TransitionData struct {
	ToolCalls   []domain.ToolCall `json:"tool_calls,omitempty"`
	ToolResults []ToolCallRecord  `json:"tool_results,omitempty"`
	FinalText   string            `json:"final_text,omitempty"`
	PartialText string            `json:"partial_text,omitempty"`
	Error       string            `json:"error,omitempty"`
	Sources     []Source          `json:"sources,omitempty"`
}

// StateTransition is one step of a generation.
type StateTransition struct {
	From    ConversationState `json:"from"`
	To      ConversationState `json:"to"`
	Trigger string            `json:"trigger"`
	Data    TransitionData    `json:"data"`
}

// ConversationContext is the state threaded through a single generation.
type ConversationContext struct {
	SystemPrompt string
	Messages     []domain.ChatMessage
	ToolCalls    []ToolCallRecord
	Sources      []Source
	ToolRounds   int

	lastStopReason domain.StopReason
}

func (c *ConversationContext) addToolCall(call domain.ToolCall, result string, failed bool, at time.Time) ToolCallRecord {
	record := ToolCallRecord{
		Index:     len(c.ToolCalls) + 1,
		Name:      call.Name,
		Input:     call.Arguments,
		Result:    result,
		Failed:    failed,
		Timestamp: at,
	}
	c.ToolCalls = append(c.ToolCalls, record)
	return record
}

func (c *ConversationContext) addSources(sources []Source) {
	for _, s := range sources {
		duplicate := false
		for _, existing := range c.Sources {
			if existing == s {
				duplicate = true
				break
			}
		}
		if !duplicate {
			c.Sources = append(c.Sources, s)
		}
	}
}

// ChatClient sends one chat request to the language model.
type ChatClient interface {
	CreateChat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// ToolExecutor runs the tools offered to the model.
type ToolExecutor interface {
	Definitions() []domain.ToolDefinition
	Execute(ctx context.Context, name string, rawArgs json.RawMessage) (*ToolResult, error)
}

// GenerationResult is the outcome of Generate.
type GenerationResult struct {
	Answer    string
	Sources   []Source
	ToolCalls []ToolCallRecord
	// Truncated is set when the model hit its token limit and Answer is partial.
	Truncated bool
}

// Generator answers questions with the chat model, running tools on its behalf.
type Generator struct {
	chat          ChatClient
	tools         ToolExecutor
	maxIterations int
	now           func() time.Time
}

// NewGenerator creates a new Generator. tools may be nil to disable tool use.
func NewGenerator(chat ChatClient, tools ToolExecutor, maxToolIterations int) *Generator {
	if maxToolIterations <= 0 {
		maxToolIterations = DefaultMaxToolIterations
	}
	return &Generator{
		chat:          chat,
		tools:         tools,
		maxIterations: maxToolIterations,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// BuildSystemPrompt appends the formatted conversation history to the system prompt.
func BuildSystemPrompt(history string) string {
	if history == "" {
		return SystemPrompt
	}
	return SystemPrompt + "\n\nPrevious conversation:\n" + history
}

// Generate runs the state machine to completion and returns the answer.
func (g *Generator) Generate(ctx context.Context, query, history string) (*GenerationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Generator.Generate", telemetry.SpanAttributes{
		Operation: "generate",
	})
	defer span.End()

	var last StateTransition
	for transition := range g.GenerateStream(ctx, query, history) {
		last = transition
	}

	result, err := ResultFromTransition(last)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.Record("tool_calls", len(result.ToolCalls))
	return result, nil
}

// ResultFromTransition converts the terminal transition of a generation into its result.
func ResultFromTransition(t StateTransition) (*GenerationResult, error) {
	switch {
	case t.To == StateCompleted:
		return &GenerationResult{
			Answer:    t.Data.FinalText,
			Sources:   t.Data.Sources,
			ToolCalls: t.Data.ToolResults,
		}, nil
	case t.To == StateError && t.Trigger == TriggerMaxTokens && t.Data.PartialText != "":
		return &GenerationResult{
			Answer:    t.Data.PartialText,
			Sources:   t.Data.Sources,
			ToolCalls: t.Data.ToolResults,
			Truncated: true,
		}, nil
	case t.To == StateError:
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrGenerationFailed, t.Trigger, t.Data.Error)
	default:
		return nil, fmt.Errorf("%w: generation ended in state %s", domain.ErrGenerationFailed, t.To)
	}
}

// GenerateStream yields every state transition of a generation. The last transition
// is always terminal unless the consumer stops early. Terminal transitions carry the
// collected sources and the tool call history.
func (g *Generator) GenerateStream(ctx context.Context, query, history string) iter.Seq[StateTransition] {
	return func(yield func(StateTransition) bool) {
		conv := &ConversationContext{
			SystemPrompt: BuildSystemPrompt(history),
			Messages:     []domain.ChatMessage{{Role: domain.RoleUser, Content: query}},
		}

		state := StateInitial
		for {
			transition := g.step(ctx, state, conv)
			telemetry.Transition(ctx, string(transition.From), string(transition.To), transition.Trigger)
			if transition.To.IsTerminal() {
				transition.Data.Sources = conv.Sources
				transition.Data.ToolResults = conv.ToolCalls
			}
			if !yield(transition) || transition.To.IsTerminal() {
				return
			}
			state = transition.To
		}
	}
}

// step runs the handler for the current state. Every model call happens here, so the
// loop above is a plain dispatcher.
func (g *Generator) step(ctx context.Context, state ConversationState, conv *ConversationContext) StateTransition {
	switch state {
	case StateInitial:
		resp, err := g.callModel(ctx, conv)
		if err != nil {
			return errorTransition(state, TriggerAPIError, err.Error())
		}
		conv.Messages = append(conv.Messages, resp.Message)
		return StateTransition{From: state, To: StateAwaitingToolDecision, Trigger: TriggerAPICallComplete}

	case StateAwaitingToolDecision:
		return g.decide(state, conv)

	case StateExecutingTools:
		return g.executeTools(ctx, conv)

	case StateAwaitingFollowUp:
		resp, err := g.callModel(ctx, conv)
		if err != nil {
			return errorTransition(state, TriggerAPIError, err.Error())
		}
		conv.Messages = append(conv.Messages, resp.Message)
		return g.decide(state, conv)

	default:
		return errorTransition(state, TriggerUnknownStopReason, fmt.Sprintf("no handler for state %s", state))
	}
}

// decide inspects the latest assistant message and picks the next state from its stop reason.
func (g *Generator) decide(from ConversationState, conv *ConversationContext) StateTransition {
	last := conv.Messages[len(conv.Messages)-1]
	reason := conv.lastStopReason

	switch reason {
	case domain.StopReasonToolUse:
		if len(last.ToolCalls) == 0 {
			return errorTransition(from, TriggerUnknownStopReason, "model requested tools without any tool calls")
		}
		if conv.ToolRounds >= g.maxIterations {
			return errorTransition(from, TriggerMaxIterationsExceeded,
				fmt.Sprintf("exceeded %d tool iterations without completion", g.maxIterations))
		}
		names := make([]string, len(last.ToolCalls))
		for i, call := range last.ToolCalls {
			names[i] = call.Name
		}
		log.Printf("generator: tool iteration %d: %v", conv.ToolRounds+1, names)
		return StateTransition{
			From:    from,
			To:      StateExecutingTools,
			Trigger: TriggerToolUse,
			Data:    TransitionData{ToolCalls: last.ToolCalls},
		}

	case domain.StopReasonEndTurn:
		return StateTransition{
			From:    from,
			To:      StateCompleted,
			Trigger: TriggerEndTurn,
			Data:    TransitionData{FinalText: last.Content},
		}

	case domain.StopReasonMaxTokens:
		return StateTransition{
			From:    from,
			To:      StateError,
			Trigger: TriggerMaxTokens,
			Data:    TransitionData{Error: "token limit reached", PartialText: last.Content},
		}

	default:
		return errorTransition(from, TriggerUnknownStopReason, fmt.Sprintf("unexpected stop reason: %q", reason))
	}
}

// executeTools runs the tool calls of the latest assistant message in order and appends
// one tool message per call. Tool failures are reported to the model, not to the caller.
func (g *Generator) executeTools(ctx context.Context, conv *ConversationContext) StateTransition {
	last := conv.Messages[len(conv.Messages)-1]
	conv.ToolRounds++

	records := make([]ToolCallRecord, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		content, failed := g.runTool(ctx, call, conv)
		records = append(records, conv.addToolCall(call, content, failed, g.now()))
		conv.Messages = append(conv.Messages, domain.ChatMessage{
			Role:       domain.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
		})
	}

	return StateTransition{
		From:    StateExecutingTools,
		To:      StateAwaitingFollowUp,
		Trigger: TriggerToolsExecuted,
		Data:    TransitionData{ToolResults: records},
	}
}

func (g *Generator) runTool(ctx context.Context, call domain.ToolCall, conv *ConversationContext) (string, bool) {
	if g.tools == nil {
		return fmt.Sprintf("Error: %v: %s", domain.ErrUnknownTool, call.Name), true
	}

	ctx, span := telemetry.StartSpan(ctx, "Generator.Tool", telemetry.SpanAttributes{
		Operation: call.Name,
	})
	defer span.End()

	result, err := g.tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		log.Printf("generator: tool %s failed: %v", call.Name, err)
		span.SetError(err)
		return fmt.Sprintf("Error: %v", err), true
	}
	conv.addSources(result.Sources)
	return result.Content, false
}

func (g *Generator) callModel(ctx context.Context, conv *ConversationContext) (*domain.ChatResponse, error) {
	req := domain.ChatRequest{
		System:   conv.SystemPrompt,
		Messages: conv.Messages,
	}
	if g.tools != nil {
		req.Tools = g.tools.Definitions()
	}

	resp, err := g.chat.CreateChat(ctx, req)
	if err != nil {
		log.Printf("generator: chat request failed: %v", err)
		return nil, err
	}
	if resp.Message.Role == "" {
		resp.Message.Role = domain.RoleAssistant
	}
	conv.lastStopReason = resp.StopReason
	return resp, nil
}

func errorTransition(from ConversationState, trigger, msg string) StateTransition {
	return StateTransition{
		From:    from,
		To:      StateError,
		Trigger: trigger,
		Data:    TransitionData{Error: msg},
	}
}
