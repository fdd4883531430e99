// Package memory keeps the recent history of a conversation within a
// message or token budget.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/models"
)

// Memory types accepted by New.
const (
	TypeMessage = "message"
	TypeToken   = "token"
)

// ErrInvalidLimit is returned for a non-positive window size.
var ErrInvalidLimit = errors.New("memory: limit must be positive")

// ChatMemory holds the messages of one conversation.
type ChatMemory interface {
	ID() string
	Add(msg models.ChatMessage)
	Messages() []models.ChatMessage
	Clear()
}

// window is the eviction logic shared by MessageWindow and TokenWindow. At
// most one system message is kept, always first; eviction removes the oldest
// other message together with the tool results that answer it.
type window struct {
	mu       sync.Mutex
	id       string
	messages []models.ChatMessage
	full     func([]models.ChatMessage) bool
}

func (w *window) ID() string { return w.id }

func (w *window) Add(msg models.ChatMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if msg.Role == models.RoleSystem {
		if len(w.messages) > 0 && w.messages[0].Role == models.RoleSystem {
			if w.messages[0].Content == msg.Content {
				return
			}
			w.messages[0] = msg
		} else {
			w.messages = append([]models.ChatMessage{msg}, w.messages...)
		}
	} else {
		w.messages = append(w.messages, msg)
	}
	for w.full(w.messages) && w.evictOldest() {
	}
}

// evictOldest removes the oldest non-system message. It reports false when
// there is nothing left to evict.
func (w *window) evictOldest() bool {
	i := 0
	if len(w.messages) > 0 && w.messages[0].Role == models.RoleSystem {
		i = 1
	}
	if i >= len(w.messages) {
		return false
	}
	j := i + 1
	if w.messages[i].HasToolCalls() {
		for j < len(w.messages) && w.messages[j].Role == models.RoleTool {
			j++
		}
	}
	w.messages = append(w.messages[:i], w.messages[j:]...)
	return true
}

func (w *window) Messages() []models.ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.ChatMessage(nil), w.messages...)
}

func (w *window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = nil
}

// MessageWindow retains at most a fixed number of messages.
type MessageWindow struct {
	window
	maxMessages int
}

// NewMessageWindow creates a memory holding at most maxMessages messages.
func NewMessageWindow(id string, maxMessages int) (*MessageWindow, error) {
	if maxMessages < 1 {
		return nil, fmt.Errorf("%w: max messages %d", ErrInvalidLimit, maxMessages)
	}
	m := &MessageWindow{maxMessages: maxMessages}
	m.id = id
	m.full = func(msgs []models.ChatMessage) bool { return len(msgs) > maxMessages }
	return m, nil
}

// TokenWindow retains as many recent messages as fit in a token budget.
type TokenWindow struct {
	window
	maxTokens int
	counter   TokenCounter
}

// NewTokenWindow creates a memory whose messages total at most maxTokens
// as measured by counter.
func NewTokenWindow(id string, maxTokens int, counter TokenCounter) (*TokenWindow, error) {
	if maxTokens < 1 {
		return nil, fmt.Errorf("%w: max tokens %d", ErrInvalidLimit, maxTokens)
	}
	if counter == nil {
		counter = RuneCounter{}
	}
	m := &TokenWindow{maxTokens: maxTokens, counter: counter}
	m.id = id
	m.full = func(msgs []models.ChatMessage) bool { return CountMessages(counter, msgs) > maxTokens }
	return m, nil
}

// Tokens returns the current token count of the retained messages.
func (m *TokenWindow) Tokens() int {
	return CountMessages(m.counter, m.Messages())
}

// New builds the memory selected by cfg.Type for conversation id. A token
// window falls back to RuneCounter when no tiktoken encoding is available.
func New(cfg *config.MemoryConfig, id string, logger *zap.Logger) (ChatMemory, error) {
	switch cfg.Type {
	case TypeMessage, "":
		return NewMessageWindow(id, cfg.MaxMessages)
	case TypeToken:
		return NewTokenWindow(id, cfg.MaxTokens, NewCounter(cfg.TokenModel, logger))
	default:
		return nil, fmt.Errorf("unknown memory type %q", cfg.Type)
	}
}
