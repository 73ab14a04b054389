package server

import "github.com/Jashwanth-1/AI-MCP/internal/domain"

// Frame types sent to the client.
const (
	FrameReady      = "ready"
	FrameToolCall   = "tool_call"
	FrameToolResult = "tool_result"
	FrameAnswer     = "answer"
	FrameError      = "error"
)

// ReadyGreeting is the content of the first frame on a new connection.
const ReadyGreeting = "MCP client connected. Ask me anything!"

// Inbound is a message from the client. Type may be omitted.
type Inbound struct {
	Type    string `json:"type,omitempty"`
	Content string `json:"content"`
}

// Frame is a message to the client.
type Frame struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversationId,omitempty"`
	Content        string   `json:"content,omitempty"`
	Tools          []string `json:"tools,omitempty"`
	Tool           string   `json:"tool,omitempty"`
	CallID         string   `json:"callId,omitempty"`
	Arguments      string   `json:"arguments,omitempty"`
	IsError        bool     `json:"isError,omitempty"`
}

func toolNames(tools []domain.ToolDescriptor) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}
