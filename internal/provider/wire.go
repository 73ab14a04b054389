package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/toolschema"
)

type chatRequest struct {
	Messages    []wireMessage     `json:"messages"`
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	TopP        float64           `json:"top_p"`
	Tools       []toolschema.Tool `json:"tools,omitempty"`
	ToolChoice  *ToolChoice       `json:"tool_choice,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message      responseMessage `json:"message"`
		FinishReason string          `json:"finish_reason"`
	} `json:"choices"`
}

type responseMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	ToolCalls []wireToolCall  `json:"tool_calls"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func encodeMessages(msgs []domain.Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		content := m.Content
		w := wireMessage{Role: string(m.Role), Content: &content, ToolCallID: m.ToolCallID}
		if m.Role == domain.RoleAssistant && m.HasToolCalls() {
			if content == "" {
				w.Content = nil
			}
			w.ToolCalls = make([]wireToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				w.ToolCalls[j] = wireToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: wireFunction{Name: tc.Name, Arguments: tc.Arguments},
				}
			}
		}
		out[i] = w
	}
	return out
}

// decodeContent accepts a string, null, or an array of content parts.
func decodeContent(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '[':
		var parts []contentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, p := range parts {
			if p.Type == "" || p.Type == "text" || p.Type == "output_text" {
				sb.WriteString(p.Text)
			}
		}
		return sb.String(), nil
	}
	return "", fmt.Errorf("unsupported content shape %q", logging.Truncate(string(trimmed), 40))
}

func decodeChoice(body []byte) (domain.Message, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Message{}, err
	}
	if len(resp.Choices) == 0 {
		return domain.Message{}, errNoChoices
	}

	rm := resp.Choices[0].Message
	content, err := decodeContent(rm.Content)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{Role: domain.RoleAssistant, Content: content}
	for _, tc := range rm.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg, nil
}

var errNoChoices = errors.New("response has no choices")
