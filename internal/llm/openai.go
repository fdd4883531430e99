package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/models"
)

var _ StreamingChatModel = (*OpenAIChatModel)(nil)

// OpenAIChatModel talks to an OpenAI-compatible chat completions endpoint.
type OpenAIChatModel struct {
	client      *openai.Client
	model       string
	temperature *float64
	maxTokens   int
	logger      *zap.Logger
}

// OpenAIOption configures an OpenAIChatModel.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	baseURL     string
	temperature *float64
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
	requestOpts []option.RequestOption
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithTemperature sets the default sampling temperature. Without it the
// server's default applies; 0 is sent as 0.
func WithTemperature(t float64) OpenAIOption {
	return func(o *openAIOptions) { o.temperature = &t }
}

// WithMaxTokens sets the default completion token limit.
func WithMaxTokens(n int) OpenAIOption {
	return func(o *openAIOptions) { o.maxTokens = n }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(o *openAIOptions) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(o *openAIOptions) { o.logger = l }
}

// WithRequestOptions appends raw client options, e.g. a custom HTTP client.
func WithRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(o *openAIOptions) { o.requestOpts = append(o.requestOpts, opts...) }
}

// NewOpenAIChatModel creates a chat model for the given model name.
func NewOpenAIChatModel(apiKey, model string, opts ...OpenAIOption) *OpenAIChatModel {
	o := openAIOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(o.timeout))
	}
	clientOpts = append(clientOpts, o.requestOpts...)
	client := openai.NewClient(clientOpts...)
	return &OpenAIChatModel{
		client:      &client,
		model:       model,
		temperature: o.temperature,
		maxTokens:   o.maxTokens,
		logger:      o.logger,
	}
}

// Model returns the model name.
func (m *OpenAIChatModel) Model() string { return m.model }

// Chat implements ChatModel.
func (m *OpenAIChatModel) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	params, err := m.params(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	out, err := convResponse(resp)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("chat completion",
		zap.String("model", m.model),
		zap.String("finish_reason", out.FinishReason),
		zap.Int64("prompt_tokens", out.Usage.PromptTokens),
		zap.Int64("completion_tokens", out.Usage.CompletionTokens),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

// ChatStream implements StreamingChatModel. Content deltas are passed to h
// as they arrive; tool call deltas are accumulated into the final message.
func (m *OpenAIChatModel) ChatStream(ctx context.Context, req *ChatRequest, h StreamHandler) (*ChatResponse, error) {
	params, err := m.params(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: param.NewOpt(true)}

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" && h != nil {
			h.OnPartial(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}
	return convResponse(&acc.ChatCompletion)
}

func (m *OpenAIChatModel) params(req *ChatRequest) (openai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, ErrEmptyConversation
	}
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for i, msg := range req.Messages {
		p, err := convMessage(msg)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, p)
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    m.model,
	}
	switch {
	case req.Temperature > 0:
		params.Temperature = param.NewOpt(req.Temperature)
	case m.temperature != nil:
		params.Temperature = param.NewOpt(*m.temperature)
	}
	maxTokens := m.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(maxTokens))
	}
	for _, spec := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: param.NewOpt(spec.Description),
				Parameters:  spec.functionParameters(),
			},
		})
	}
	return params, nil
}

func convMessage(msg models.ChatMessage) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case models.RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case models.RoleUser:
		return openai.UserMessage(msg.Content), nil
	case models.RoleTool:
		if msg.ToolCallID == "" {
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("tool result without tool call id")
		}
		return openai.ToolMessage(msg.Content, msg.ToolCallID), nil
	case models.RoleAssistant:
		mp := openai.ChatCompletionAssistantMessageParam{}
		if msg.Content != "" {
			mp.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: param.NewOpt(msg.Content),
			}
		}
		for _, tc := range msg.ToolCalls {
			mp.ToolCalls = append(mp.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		if msg.Name != "" {
			mp.Name = param.NewOpt(msg.Name)
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &mp}, nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unexpected role %q", msg.Role)
	}
}

func convResponse(resp *openai.ChatCompletion) (*ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("llm: request refused: %s", choice.Message.Refusal)
	}
	msg := models.ChatMessage{Role: models.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return &ChatResponse{
		Message:      msg,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// functionParameters converts the schema into the map form the API expects.
// A tool without arguments gets an empty object schema.
func (s ToolSpecification) functionParameters() openai.FunctionParameters {
	empty := openai.FunctionParameters{"type": "object", "properties": map[string]any{}}
	if s.Parameters == nil {
		return empty
	}
	b, err := json.Marshal(s.Parameters)
	if err != nil {
		return empty
	}
	var fp openai.FunctionParameters
	if err := json.Unmarshal(b, &fp); err != nil {
		return empty
	}
	return fp
}
