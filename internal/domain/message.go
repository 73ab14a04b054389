// Package domain defines the conversation primitives shared by the tool
// session, the model gateway and the dialogue engine.
package domain

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is a single entry of a conversation.
//
// Content is always the text form of the message. Tool-role messages also
// carry the structured Result they were rendered from.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"toolCallId,omitempty"`
	ToolCalls  []ToolCall  `json:"toolCalls,omitempty"`
	Result     *ToolResult `json:"result,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// HasToolCalls reports whether the message requests tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a copy that shares no slices or pointers with m.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(c.ToolCalls, m.ToolCalls)
	}
	if m.Result != nil {
		r := m.Result.clone()
		c.Result = &r
	}
	return c
}

// SystemMessage builds a system-role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage builds a user-role message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolMessage wraps a tool result into a tool-role message answering the
// call it belongs to.
func ToolMessage(result ToolResult) Message {
	r := result.clone()
	return Message{
		Role:       RoleTool,
		Content:    result.Text(),
		ToolCallID: result.CallID,
		Result:     &r,
	}
}

// ToolCall is a model-emitted request to invoke a named tool. Arguments is
// the raw, untrusted argument text exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDescriptor describes one tool offered by the tool host. InputSchema
// holds the host's JSON schema bytes unchanged.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}
