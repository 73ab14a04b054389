package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// HostTool is a tool served by an in-memory ToolHost. A handler error is
// reported to the client as an isError result.
type HostTool struct {
	Name        string
	Description string
	Schema      map[string]any
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// HostCall records one tools/call received by a ToolHost.
type HostCall struct {
	Name string
	Args map[string]any
}

// ToolHost is an MCP server running in-process, reachable through
// in-memory transports.
type ToolHost struct {
	Server *mcpsdk.Server

	mu       sync.Mutex
	calls    []HostCall
	sessions []*mcpsdk.ServerSession
}

// NewToolHost creates a server exposing tools in order.
func NewToolHost(tools ...HostTool) *ToolHost {
	h := &ToolHost{
		Server: mcpsdk.NewServer(&mcpsdk.Implementation{Name: "test-host", Version: "v0.0.1"}, nil),
	}
	for _, tool := range tools {
		h.add(tool)
	}
	return h
}

func (h *ToolHost) add(tool HostTool) {
	schema := tool.Schema
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	handler := tool.Handler
	name := tool.Name
	h.Server.AddTool(&mcpsdk.Tool{Name: name, Description: tool.Description, InputSchema: schema},
		func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			args := map[string]any{}
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return nil, err
				}
			}
			h.mu.Lock()
			h.calls = append(h.calls, HostCall{Name: name, Args: args})
			h.mu.Unlock()

			out, err := handler(ctx, args)
			if err != nil {
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}}}, nil
		})
}

// Connect starts a server session and returns the client end of the
// transport pair. The session is closed when the test ends.
func (h *ToolHost) Connect(t *testing.T) mcpsdk.Transport {
	t.Helper()
	clientT, serverT := mcpsdk.NewInMemoryTransports()
	ss, err := h.Server.Connect(context.Background(), serverT, nil)
	require.NoError(t, err)

	h.mu.Lock()
	h.sessions = append(h.sessions, ss)
	h.mu.Unlock()
	t.Cleanup(func() { _ = ss.Close() })
	return clientT
}

// Disconnect drops every server session, as if the host process died.
func (h *ToolHost) Disconnect() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = nil
	h.mu.Unlock()
	for _, ss := range sessions {
		_ = ss.Close()
	}
}

// ClientInfo returns the implementation the most recent client announced
// in initialize, or nil before any client connected.
func (h *ToolHost) ClientInfo() *mcpsdk.Implementation {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sessions) == 0 {
		return nil
	}
	params := h.sessions[len(h.sessions)-1].InitializeParams()
	if params == nil {
		return nil
	}
	return params.ClientInfo
}

// Calls returns the tool calls received so far.
func (h *ToolHost) Calls() []HostCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HostCall(nil), h.calls...)
}

// CallCount returns how many tool calls the host received.
func (h *ToolHost) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func numberArgs() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []any{"a", "b"},
	}
}

func twoNumbers(args map[string]any) (float64, float64, error) {
	a, okA := args["a"].(float64)
	b, okB := args["b"].(float64)
	if !okA || !okB {
		return 0, 0, errors.New("a and b must be numbers")
	}
	return a, b, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AddTool adds two numbers.
func AddTool() HostTool {
	return HostTool{
		Name:        "add",
		Description: "Add two numbers",
		Schema:      numberArgs(),
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			a, b, err := twoNumbers(args)
			if err != nil {
				return "", err
			}
			return formatNumber(a + b), nil
		},
	}
}

// MultiplyTool multiplies two numbers.
func MultiplyTool() HostTool {
	return HostTool{
		Name:        "multiply",
		Description: "Multiply two numbers",
		Schema:      numberArgs(),
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			a, b, err := twoNumbers(args)
			if err != nil {
				return "", err
			}
			return formatNumber(a * b), nil
		},
	}
}

// EchoTool returns its text argument.
func EchoTool() HostTool {
	return HostTool{
		Name:        "echo",
		Description: "Echo text back",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprint(args["text"]), nil
		},
	}
}

// FailingTool always reports an execution error with message.
func FailingTool(name, message string) HostTool {
	return HostTool{
		Name:        name,
		Description: "Always fails",
		Handler: func(context.Context, map[string]any) (string, error) {
			return "", errors.New(message)
		},
	}
}

// BlockingTool waits for release (or the call context) before answering.
func BlockingTool(name string, started chan<- struct{}, release <-chan struct{}) HostTool {
	return HostTool{
		Name:        name,
		Description: "Blocks until released",
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			if started != nil {
				started <- struct{}{}
			}
			select {
			case <-release:
				return "released", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
}
