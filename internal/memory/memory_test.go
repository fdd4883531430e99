package memory

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/models"
)

func contents(msgs []models.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.String())
	}
	return out
}

func TestMessageWindow_EvictsOldest(t *testing.T) {
	m, err := NewMessageWindow("s1", 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		m.Add(models.UserMessage(fmt.Sprintf("m%d", i)))
	}
	want := []string{"user: m3", "user: m4", "user: m5"}
	if diff := cmp.Diff(want, contents(m.Messages())); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if m.ID() != "s1" {
		t.Errorf("ID() = %q", m.ID())
	}
}

func TestMessageWindow_SystemMessage(t *testing.T) {
	m, err := NewMessageWindow("s", 3)
	if err != nil {
		t.Fatal(err)
	}
	m.Add(models.UserMessage("hi"))
	m.Add(models.SystemMessage("be brief"))
	m.Add(models.AssistantMessage("hello"))
	m.Add(models.SystemMessage("be brief"))
	m.Add(models.UserMessage("again"))

	want := []string{"system: be brief", "assistant: hello", "user: again"}
	if diff := cmp.Diff(want, contents(m.Messages())); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	m.Add(models.SystemMessage("be verbose"))
	want = []string{"system: be verbose", "assistant: hello", "user: again"}
	if diff := cmp.Diff(want, contents(m.Messages())); diff != "" {
		t.Errorf("after replacing system (-want +got):\n%s", diff)
	}
}

func TestMessageWindow_EvictsToolResultsWithCall(t *testing.T) {
	m, err := NewMessageWindow("s", 4)
	if err != nil {
		t.Fatal(err)
	}
	m.Add(models.ChatMessage{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{
		{ID: "a", Name: "add"}, {ID: "b", Name: "square"},
	}})
	m.Add(models.ToolResultMessage("a", "add", "5"))
	m.Add(models.ToolResultMessage("b", "square", "25"))
	m.Add(models.AssistantMessage("25"))
	m.Add(models.UserMessage("thanks"))

	want := []string{"assistant: 25", "user: thanks"}
	if diff := cmp.Diff(want, contents(m.Messages())); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageWindow_SizeOne(t *testing.T) {
	m, err := NewMessageWindow("s", 1)
	if err != nil {
		t.Fatal(err)
	}
	m.Add(models.SystemMessage("sys"))
	m.Add(models.UserMessage("hi"))
	if diff := cmp.Diff([]string{"system: sys"}, contents(m.Messages())); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageWindow_ClearAndCopy(t *testing.T) {
	m, err := NewMessageWindow("s", 5)
	if err != nil {
		t.Fatal(err)
	}
	m.Add(models.UserMessage("a"))
	got := m.Messages()
	got[0].Content = "changed"
	if m.Messages()[0].Content != "a" {
		t.Error("Messages should return a copy")
	}
	m.Clear()
	if len(m.Messages()) != 0 {
		t.Errorf("after Clear: %v", m.Messages())
	}
}

func TestInvalidLimits(t *testing.T) {
	if _, err := NewMessageWindow("s", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("message window: err = %v, want ErrInvalidLimit", err)
	}
	if _, err := NewTokenWindow("s", -1, nil); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("token window: err = %v, want ErrInvalidLimit", err)
	}
}

func TestTokenWindow(t *testing.T) {
	// RuneCounter{1} counts runes, plus 4 per message.
	m, err := NewTokenWindow("s", 20, RuneCounter{RunesPerToken: 1})
	if err != nil {
		t.Fatal(err)
	}
	m.Add(models.SystemMessage("sys"))   // 7
	m.Add(models.UserMessage("aaaa"))    // 8 -> 15
	m.Add(models.AssistantMessage("bb")) // 6 -> 21, evict "aaaa"
	want := []string{"system: sys", "assistant: bb"}
	if diff := cmp.Diff(want, contents(m.Messages())); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if m.Tokens() != 13 {
		t.Errorf("Tokens() = %d, want 13", m.Tokens())
	}

	// A message larger than the whole budget leaves only the system message.
	m.Add(models.UserMessage("this message is far too long"))
	if diff := cmp.Diff([]string{"system: sys"}, contents(m.Messages())); diff != "" {
		t.Errorf("oversized message (-want +got):\n%s", diff)
	}
}

func TestRuneCounter(t *testing.T) {
	tests := []struct {
		text string
		per  int
		want int
	}{
		{"", 0, 0},
		{"abcd", 0, 1},
		{"abcde", 0, 2},
		{"héllo", 1, 5},
		{"日本語", 2, 2},
	}
	for _, tt := range tests {
		if got := (RuneCounter{RunesPerToken: tt.per}).CountTokens(tt.text); got != tt.want {
			t.Errorf("CountTokens(%q, %d) = %d, want %d", tt.text, tt.per, got, tt.want)
		}
	}
}

func TestTiktokenCounter(t *testing.T) {
	c, err := NewTiktokenCounter("gpt-3.5-turbo")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	if n := c.CountTokens("hello world"); n != 2 {
		t.Errorf("CountTokens = %d, want 2", n)
	}
}

func TestNew(t *testing.T) {
	m, err := New(&config.MemoryConfig{Type: TypeMessage, MaxMessages: 2}, "x", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*MessageWindow); !ok {
		t.Errorf("New returned %T", m)
	}
	if _, err := New(&config.MemoryConfig{Type: "bogus"}, "x", zap.NewNop()); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestStore(t *testing.T) {
	created := 0
	s := NewStore(time.Hour, func(id string) (ChatMemory, error) {
		created++
		return NewMessageWindow(id, 10)
	})
	a, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	a.Add(models.UserMessage("hi"))
	again, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Messages()) != 1 {
		t.Error("Get should return the same memory")
	}
	if _, err := s.Get("b"); err != nil {
		t.Fatal(err)
	}
	if created != 2 || s.Len() != 2 {
		t.Errorf("created=%d len=%d, want 2/2", created, s.Len())
	}
	s.Delete("a")
	fresh, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh.Messages()) != 0 {
		t.Error("deleted memory should start empty")
	}
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore(20*time.Millisecond, func(id string) (ChatMemory, error) {
		return NewMessageWindow(id, 10)
	})
	m, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	m.Add(models.UserMessage("hi"))
	time.Sleep(50 * time.Millisecond)
	m, err = s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Messages()) != 0 {
		t.Error("expired memory should be recreated")
	}
}

func TestStore_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStore(0, func(string) (ChatMemory, error) { return nil, boom })
	if _, err := s.Get("a"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
