package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/models"
)

func TestFakeChatModel_ScriptThenEcho(t *testing.T) {
	m := NewFakeChatModel().Reply("first")
	ctx := context.Background()

	got, err := Ask(ctx, m, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if got != "first" {
		t.Errorf("scripted reply = %q", got)
	}
	got, err = Ask(ctx, m, "echo me")
	if err != nil {
		t.Fatal(err)
	}
	if got != "echo me" {
		t.Errorf("fallback reply = %q", got)
	}
	if len(m.Requests()) != 2 || m.LastRequest().Messages[0].Content != "echo me" {
		t.Errorf("requests not recorded: %v", m.Requests())
	}
}

func TestFakeChatModel_Fail(t *testing.T) {
	boom := errors.New("boom")
	m := NewFakeChatModel().Fail(boom)
	if _, err := Ask(context.Background(), m, "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, err := m.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, ErrEmptyConversation) {
		t.Errorf("err = %v, want ErrEmptyConversation", err)
	}
}

func TestFakeChatModel_ChatStream(t *testing.T) {
	m := NewFakeChatModel().Reply("one two three")
	var b strings.Builder
	var n int
	resp, err := m.ChatStream(context.Background(),
		&ChatRequest{Messages: []models.ChatMessage{models.UserMessage("count")}},
		StreamHandlerFunc(func(tok string) {
			n++
			b.WriteString(tok)
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || b.String() != resp.Message.Content {
		t.Errorf("streamed %d tokens %q, final %q", n, b.String(), resp.Message.Content)
	}
}

func TestNew(t *testing.T) {
	logger := zap.NewNop()
	if _, err := New(&config.ModelConfig{Provider: "openai"}, logger); err == nil {
		t.Error("expected error without api key")
	}
	m, err := New(&config.ModelConfig{Provider: "openai", APIKey: "k", ModelName: "gpt-test"}, logger)
	if err != nil {
		t.Fatal(err)
	}
	if oa, ok := m.(*OpenAIChatModel); !ok || oa.Model() != "gpt-test" {
		t.Errorf("New returned %T", m)
	}
	if m, err := New(&config.ModelConfig{Provider: "fake"}, logger); err != nil {
		t.Fatal(err)
	} else if _, ok := m.(*FakeChatModel); !ok {
		t.Errorf("New returned %T", m)
	}
	if _, err := New(&config.ModelConfig{Provider: "bogus"}, logger); err == nil {
		t.Error("expected error for unknown provider")
	}
}
