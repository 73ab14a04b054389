package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/toolschema"
)

type captured struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func newTestGateway(t *testing.T, status int, response string) (*ChatCompletions, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.Query().Get("api-version")
		got.header = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	g, err := NewChatCompletions(Config{
		Endpoint:   srv.URL + "/inference/v1/chat/completions",
		APIVersion: "2024-08-01-preview",
		Token:      "secret-token",
		Model:      "openai/gpt-4o-mini",
	}, WithLogger(logging.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g, got
}

const textReply = `{"choices":[{"message":{"role":"assistant","content":"Hello there"},"finish_reason":"stop"}]}`

func addTool() toolschema.Tool {
	return toolschema.FromDescriptor(domain.ToolDescriptor{
		Name:        "add",
		Description: "Add two numbers",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}}}`),
	})
}

func TestCompleteSendsHeadersQueryAndBody(t *testing.T) {
	g, got := newTestGateway(t, http.StatusOK, textReply)

	msg, err := g.Complete(context.Background(), Request{
		Messages: []domain.Message{domain.SystemMessage("sys"), domain.UserMessage("hi")},
		Tools:    []toolschema.Tool{addTool()},
		Options:  DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.Equal(t, "Hello there", msg.Content)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/inference/v1/chat/completions", got.path)
	assert.Equal(t, "2024-08-01-preview", got.query)
	assert.Equal(t, "Bearer secret-token", got.header.Get("Authorization"))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))

	assert.Equal(t, "openai/gpt-4o-mini", got.body["model"])
	assert.Equal(t, float64(1), got.body["temperature"])
	assert.Equal(t, float64(1), got.body["top_p"])
	assert.Equal(t, "auto", got.body["tool_choice"])

	msgs := got.body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "sys"}, msgs[0])

	tools := got.body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "add", fn["name"])
}

func TestCompleteOmitsToolsWhenNoneAdvertised(t *testing.T) {
	g, got := newTestGateway(t, http.StatusOK, textReply)

	_, err := g.Complete(context.Background(), Request{
		Messages: []domain.Message{domain.UserMessage("hi")},
		Options:  DefaultOptions(),
	})
	require.NoError(t, err)

	assert.NotContains(t, got.body, "tools")
	assert.NotContains(t, got.body, "tool_choice")
}

func TestCompleteToolChoiceForms(t *testing.T) {
	tests := []struct {
		name   string
		choice ToolChoice
		want   any
	}{
		{"auto", ParseToolChoice("auto"), "auto"},
		{"none", ParseToolChoice("none"), "none"},
		{"zero value", ToolChoice{}, "auto"},
		{"forced", ParseToolChoice("add"), map[string]any{
			"type":     "function",
			"function": map[string]any{"name": "add"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, got := newTestGateway(t, http.StatusOK, textReply)
			opts := DefaultOptions()
			opts.ToolChoice = tt.choice
			_, err := g.Complete(context.Background(), Request{
				Messages: []domain.Message{domain.UserMessage("hi")},
				Tools:    []toolschema.Tool{addTool()},
				Options:  opts,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.body["tool_choice"])
		})
	}
}

func TestCompleteEncodesToolRoundTrip(t *testing.T) {
	g, got := newTestGateway(t, http.StatusOK, textReply)

	assistant := domain.Message{
		Role:      domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{{ID: "call_1", Name: "add", Arguments: `{"a":2,"b":3}`}},
	}
	tool := domain.ToolMessage(domain.Succeeded("call_1", domain.ToolSuccess{Output: "5"}))

	_, err := g.Complete(context.Background(), Request{
		Messages: []domain.Message{domain.UserMessage("2+3?"), assistant, tool},
		Options:  DefaultOptions(),
	})
	require.NoError(t, err)

	msgs := got.body["messages"].([]any)
	require.Len(t, msgs, 3)

	a := msgs[1].(map[string]any)
	assert.Equal(t, "assistant", a["role"])
	assert.Nil(t, a["content"])
	calls := a["tool_calls"].([]any)
	require.Len(t, calls, 1)
	call := calls[0].(map[string]any)
	assert.Equal(t, "call_1", call["id"])
	assert.Equal(t, "function", call["type"])
	assert.Equal(t, `{"a":2,"b":3}`, call["function"].(map[string]any)["arguments"])

	tm := msgs[2].(map[string]any)
	assert.Equal(t, "tool", tm["role"])
	assert.Equal(t, "call_1", tm["tool_call_id"])
	assert.Equal(t, "5", tm["content"])
}

func TestCompleteDecodesToolCalls(t *testing.T) {
	reply := `{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
		{"id":"call_a","type":"function","function":{"name":"add","arguments":"{\"a\":2,\"b\":3}"}},
		{"id":"call_b","type":"function","function":{"name":"multiply","arguments":"{}"}}
	]},"finish_reason":"tool_calls"}]}`
	g, _ := newTestGateway(t, http.StatusOK, reply)

	msg, err := g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
	require.NoError(t, err)

	assert.Equal(t, "", msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, domain.ToolCall{ID: "call_a", Name: "add", Arguments: `{"a":2,"b":3}`}, msg.ToolCalls[0])
	assert.Equal(t, "multiply", msg.ToolCalls[1].Name)
}

func TestCompleteJoinsContentParts(t *testing.T) {
	reply := `{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"The answer "},{"type":"text","text":"is 5."}]}}]}`
	g, _ := newTestGateway(t, http.StatusOK, reply)

	msg, err := g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 5.", msg.Content)
}

func TestCompleteNon2xx(t *testing.T) {
	g, _ := newTestGateway(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`)

	_, err := g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
	require.Error(t, err)

	var gwErr *domain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusTooManyRequests, gwErr.StatusCode)
	assert.Contains(t, gwErr.Body, "rate limited")
	assert.True(t, gwErr.Retryable())
	assert.ErrorIs(t, err, domain.ErrGateway)
}

func TestCompleteTruncatesErrorBody(t *testing.T) {
	g, _ := newTestGateway(t, http.StatusBadRequest, strings.Repeat("x", 5000))

	_, err := g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
	var gwErr *domain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Less(t, len(gwErr.Body), 600)
	assert.False(t, gwErr.Retryable())
}

func TestCompleteTruncatedErrorBodyIsValidUTF8(t *testing.T) {
	g, _ := newTestGateway(t, http.StatusBadGateway, strings.Repeat("é", 1000))

	_, err := g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
	var gwErr *domain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, utf8.ValidString(gwErr.Body))
	assert.LessOrEqual(t, len(gwErr.Body), maxErrorBody)
	assert.True(t, strings.HasSuffix(gwErr.Body, "..."))
}

func TestCompleteMalformedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>oops</html>`,
		"no choices":    `{"choices":[]}`,
		"missing":       `{}`,
		"content shape": `{"choices":[{"message":{"role":"assistant","content":42}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			g, _ := newTestGateway(t, http.StatusOK, body)
			_, err := g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
			var gwErr *domain.GatewayError
			require.True(t, errors.As(err, &gwErr), "got %v", err)
			assert.Equal(t, http.StatusOK, gwErr.StatusCode)
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g, err := NewChatCompletions(Config{Endpoint: srv.URL, Token: "t", Timeout: 50 * time.Millisecond}, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
	var gwErr *domain.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Contains(t, gwErr.Reason, "timed out")
	assert.True(t, gwErr.Retryable())
}

type stubClient struct {
	err error
}

func (s stubClient) Do(*http.Request) (*http.Response, error) { return nil, s.err }

func TestCompleteNetworkFailure(t *testing.T) {
	cause := errors.New("connection refused")
	g, err := NewChatCompletions(Config{Token: "t"}, WithHTTPClient(stubClient{err: cause}), WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), Request{Messages: []domain.Message{domain.UserMessage("x")}, Options: DefaultOptions()})
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, domain.ErrGateway)
}

func TestNewChatCompletionsValidation(t *testing.T) {
	_, err := NewChatCompletions(Config{})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	_, err = NewChatCompletions(Config{Token: "t", Endpoint: "ftp://example.com"})
	assert.Error(t, err)

	g, err := NewChatCompletions(Config{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, g.Model())
	assert.Contains(t, g.url, "api-version="+DefaultAPIVersion)
	assert.True(t, strings.HasPrefix(g.url, DefaultEndpoint))
}

func TestParseToolChoice(t *testing.T) {
	assert.Equal(t, "auto", ParseToolChoice("").String())
	assert.Equal(t, "none", ParseToolChoice(" none ").String())
	forced := ParseToolChoice("add")
	assert.Equal(t, "add", forced.Function())
	assert.Equal(t, "", ToolChoiceAuto.Function())
}
