// Package llm defines the chat model abstraction used by the RAG pipeline and
// the chat commands, with an OpenAI-compatible implementation, tool calling
// and a scripted fake for tests.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/models"
)

// Finish reasons reported by chat models.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
)

var (
	// ErrNoChoices is returned when the provider answers without any choice.
	ErrNoChoices = errors.New("llm: response has no choices")
	// ErrEmptyConversation is returned for a request without messages.
	ErrEmptyConversation = errors.New("llm: request has no messages")
)

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ChatRequest is one call to a chat model. Zero Temperature and MaxTokens
// fall back to the model's configured values.
type ChatRequest struct {
	Messages    []models.ChatMessage
	Tools       []ToolSpecification
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Message      models.ChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
	Usage        Usage              `json:"usage"`
}

// ChatModel answers a conversation.
type ChatModel interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// StreamHandler receives partial output while a streamed reply is generated.
type StreamHandler interface {
	OnPartial(token string)
}

// StreamHandlerFunc adapts a function to StreamHandler.
type StreamHandlerFunc func(token string)

// OnPartial calls f(token).
func (f StreamHandlerFunc) OnPartial(token string) { f(token) }

// StreamingChatModel is a ChatModel that can stream its reply. ChatStream
// returns the complete response once the stream ends.
type StreamingChatModel interface {
	ChatModel
	ChatStream(ctx context.Context, req *ChatRequest, h StreamHandler) (*ChatResponse, error)
}

// Ask sends a single user message and returns the reply text.
func Ask(ctx context.Context, m ChatModel, question string) (string, error) {
	resp, err := m.Chat(ctx, &ChatRequest{Messages: []models.ChatMessage{models.UserMessage(question)}})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// New builds the chat model selected by cfg.Provider.
func New(cfg *config.ModelConfig, logger *zap.Logger) (StreamingChatModel, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("model provider openai requires an API key (set %s)", config.EnvAPIKey)
		}
		return NewOpenAIChatModel(cfg.APIKey, cfg.ModelName,
			WithBaseURL(cfg.BaseURL),
			WithTemperature(cfg.TemperatureOrDefault()),
			WithMaxTokens(cfg.MaxTokens),
			WithTimeout(cfg.Timeout),
			WithLogger(logger),
		), nil
	case "fake":
		logger.Warn("using fake chat model; replies echo the last user message")
		return NewFakeChatModel(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
