package models

import "fmt"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model's request to run a named tool with JSON arguments.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func SystemMessage(text string) ChatMessage { return ChatMessage{Role: RoleSystem, Content: text} }
func UserMessage(text string) ChatMessage { return ChatMessage{Role: RoleUser, Content: text} }
func AssistantMessage(text string) ChatMessage { return ChatMessage{Role: RoleAssistant, Content: text} }

// ToolResultMessage carries the output of the tool call identified by callID.
func ToolResultMessage(callID, name, result string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: result, Name: name, ToolCallID: callID}
}

// HasToolCalls reports whether the message is an assistant tool-call request.
func (m ChatMessage) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

func (m ChatMessage) String() string {
	if m.HasToolCalls() {
		return fmt.Sprintf("%s: <%d tool call(s)>", m.Role, len(m.ToolCalls))
	}
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}
