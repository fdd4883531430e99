package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/LangChat/ai-tutorials/internal/models"
)

var _ StreamingChatModel = (*FakeChatModel)(nil)

// FakeChatModel is an offline StreamingChatModel. It replays scripted
// responses in order and, once they are used up, answers with the last user
// message. Every request is recorded.
type FakeChatModel struct {
	mu        sync.Mutex
	responses []*ChatResponse
	errs      []error
	requests  []*ChatRequest
}

// NewFakeChatModel creates a fake that replies with the given responses in order.
func NewFakeChatModel(responses ...*ChatResponse) *FakeChatModel {
	return &FakeChatModel{responses: responses}
}

// Reply queues an assistant reply with text.
func (f *FakeChatModel) Reply(text string) *FakeChatModel {
	return f.Respond(&ChatResponse{Message: models.AssistantMessage(text), FinishReason: FinishReasonStop})
}

// CallTools queues an assistant reply requesting the given tool calls.
func (f *FakeChatModel) CallTools(calls ...models.ToolCall) *FakeChatModel {
	return f.Respond(&ChatResponse{
		Message:      models.ChatMessage{Role: models.RoleAssistant, ToolCalls: calls},
		FinishReason: FinishReasonToolCalls,
	})
}

// Respond queues resp.
func (f *FakeChatModel) Respond(resp *ChatResponse) *FakeChatModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return f
}

// Fail makes the next call return err.
func (f *FakeChatModel) Fail(err error) *FakeChatModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
	return f
}

// Requests returns the recorded requests.
func (f *FakeChatModel) Requests() []*ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ChatRequest(nil), f.requests...)
}

// LastRequest returns the most recent request, or nil.
func (f *FakeChatModel) LastRequest() *ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// Chat implements ChatModel.
func (f *FakeChatModel) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.responses) > 0 {
		resp := f.responses[0]
		f.responses = f.responses[1:]
		out := *resp
		return &out, nil
	}
	return &ChatResponse{
		Message:      models.AssistantMessage(echo(req.Messages)),
		FinishReason: FinishReasonStop,
	}, nil
}

// ChatStream implements StreamingChatModel by emitting the reply word by word.
func (f *FakeChatModel) ChatStream(ctx context.Context, req *ChatRequest, h StreamHandler) (*ChatResponse, error) {
	resp, err := f.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if h != nil {
		for _, tok := range splitTokens(resp.Message.Content) {
			h.OnPartial(tok)
		}
	}
	return resp, nil
}

func echo(msgs []models.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// splitTokens splits s after each space so the tokens concatenate back to s.
func splitTokens(s string) []string {
	var out []string
	for s != "" {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}
