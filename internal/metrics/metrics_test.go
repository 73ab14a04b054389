package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/hook"
)

func TestRecordConnection(t *testing.T) {
	m := New()

	m.RecordConnection(true)
	m.RecordConnection(false)
	if m.Connections.Load() != 2 {
		t.Errorf("expected 2 connections, got %d", m.Connections.Load())
	}
	if m.ConnectionErrors.Load() != 1 {
		t.Errorf("expected 1 error, got %d", m.ConnectionErrors.Load())
	}
	if m.ActiveConnections.Load() != 1 {
		t.Errorf("expected 1 active, got %d", m.ActiveConnections.Load())
	}

	m.ConnectionClosed()
	if m.ActiveConnections.Load() != 0 {
		t.Errorf("expected 0 active, got %d", m.ActiveConnections.Load())
	}
}

func TestRecordTurn(t *testing.T) {
	m := New()

	m.RecordTurn(true, 100)
	m.RecordTurn(false, 50)
	if m.Turns.Load() != 2 {
		t.Errorf("expected 2 turns, got %d", m.Turns.Load())
	}
	if m.TurnErrors.Load() != 1 {
		t.Errorf("expected 1 error, got %d", m.TurnErrors.Load())
	}
	if m.LastTurnDurationMs.Load() != 50 {
		t.Errorf("expected duration 50, got %d", m.LastTurnDurationMs.Load())
	}
}

func TestAttachCountsHookEvents(t *testing.T) {
	m := New()
	reg := hook.NewRegistry()
	m.Attach(reg)

	ctx := context.Background()
	ok := domain.Succeeded("c1", domain.ToolSuccess{Output: "5"})
	failed := domain.Failed("c2", domain.FailureExecution, errors.New("boom"))

	reg.Run(ctx, &hook.Context{Type: hook.HookTurnStart, ConversationID: "conv"})
	reg.Run(ctx, &hook.Context{Type: hook.HookModelResponse, ConversationID: "conv"})
	reg.Run(ctx, &hook.Context{Type: hook.HookPostToolCall, ConversationID: "conv", Result: &ok})
	reg.Run(ctx, &hook.Context{Type: hook.HookPostToolCall, ConversationID: "conv", Result: &failed})
	reg.Run(ctx, &hook.Context{Type: hook.HookModelResponse, ConversationID: "conv"})
	reg.Run(ctx, &hook.Context{Type: hook.HookTurnEnd, ConversationID: "conv"})

	reg.Run(ctx, &hook.Context{Type: hook.HookTurnStart, ConversationID: "conv"})
	reg.Run(ctx, &hook.Context{Type: hook.HookTurnEnd, ConversationID: "conv", Error: errors.New("gateway down")})

	if m.ModelResponses.Load() != 2 {
		t.Errorf("expected 2 responses, got %d", m.ModelResponses.Load())
	}
	if m.ToolCalls.Load() != 2 || m.ToolFailures.Load() != 1 {
		t.Errorf("expected 2 tool calls and 1 failure, got %d/%d", m.ToolCalls.Load(), m.ToolFailures.Load())
	}
	if m.Turns.Load() != 2 || m.TurnErrors.Load() != 1 {
		t.Errorf("expected 2 turns and 1 error, got %d/%d", m.Turns.Load(), m.TurnErrors.Load())
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RecordConnection(true)
	m.RecordConnection(false)
	m.RecordTurn(true, 150)
	m.RecordToolCall(true)
	m.RecordToolCall(false)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler()(rec, req)

	resp := rec.Result()
	body, _ := io.ReadAll(resp.Body)
	output := string(body)

	if resp.Header.Get("Content-Type") != "text/plain; version=0.0.4" {
		t.Errorf("wrong content type: %s", resp.Header.Get("Content-Type"))
	}

	expectedMetrics := []string{
		"mcpchat_uptime_seconds",
		"mcpchat_connections_total 2",
		"mcpchat_connection_errors_total 1",
		"mcpchat_active_connections 1",
		"mcpchat_turns_total 1",
		"mcpchat_turn_errors_total 0",
		"mcpchat_tool_calls_total 2",
		"mcpchat_tool_failures_total 1",
		"mcpchat_last_turn_duration_ms 150",
	}
	for _, expected := range expectedMetrics {
		if !strings.Contains(output, expected) {
			t.Errorf("missing metric: %s\nOutput:\n%s", expected, output)
		}
	}
}

func TestMetricsHandlerPrometheusFormat(t *testing.T) {
	m := New()

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Result().Body)
	output := string(body)

	if !strings.Contains(output, "# HELP mcpchat_uptime_seconds") {
		t.Error("missing HELP comment for uptime")
	}
	if !strings.Contains(output, "# TYPE mcpchat_uptime_seconds gauge") {
		t.Error("missing TYPE comment for uptime")
	}
	if !strings.Contains(output, "# TYPE mcpchat_turns_total counter") {
		t.Error("missing TYPE comment for turns counter")
	}
	if !strings.Contains(output, "# TYPE mcpchat_active_connections gauge") {
		t.Error("missing TYPE comment for active connections")
	}
}

func TestSnapshot(t *testing.T) {
	m := New()
	m.RecordConnection(true)
	m.RecordTurn(false, 10)

	snap := m.Snapshot()
	if snap["connections"] != 1 || snap["turn_errors"] != 1 {
		t.Errorf("unexpected snapshot: %v", snap)
	}
}
