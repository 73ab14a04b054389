// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jashwanth-1/AI-MCP/internal/hook"
)

// Metrics holds runtime counters for one process.
type Metrics struct {
	// Connections
	Connections       atomic.Int64
	ConnectionErrors  atomic.Int64
	ActiveConnections atomic.Int64

	// Turns
	Turns      atomic.Int64
	TurnErrors atomic.Int64

	// Model and tools
	ModelResponses atomic.Int64
	ToolCalls      atomic.Int64
	ToolFailures   atomic.Int64

	// Timing (last turn duration in ms)
	LastTurnDurationMs atomic.Int64

	startTime time.Time
	turnStart sync.Map // conversation id -> time.Time
}

// New creates an empty metrics set.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordConnection records a connection attempt. A successful one stays
// active until ConnectionClosed.
func (m *Metrics) RecordConnection(success bool) {
	m.Connections.Add(1)
	if !success {
		m.ConnectionErrors.Add(1)
		return
	}
	m.ActiveConnections.Add(1)
}

// ConnectionClosed marks an active connection as finished.
func (m *Metrics) ConnectionClosed() {
	m.ActiveConnections.Add(-1)
}

// RecordTurn records a finished turn.
func (m *Metrics) RecordTurn(success bool, durationMs int64) {
	m.Turns.Add(1)
	if !success {
		m.TurnErrors.Add(1)
	}
	m.LastTurnDurationMs.Store(durationMs)
}

// RecordToolCall records a dispatched tool call.
func (m *Metrics) RecordToolCall(success bool) {
	m.ToolCalls.Add(1)
	if !success {
		m.ToolFailures.Add(1)
	}
}

// Attach registers hooks that feed m from an engine's turns.
func (m *Metrics) Attach(reg *hook.Registry) {
	reg.Register(hook.HookTurnStart, hook.ObserveHook(func(hctx *hook.Context) {
		m.turnStart.Store(hctx.ConversationID, time.Now())
	}))
	reg.Register(hook.HookModelResponse, hook.ObserveHook(func(hctx *hook.Context) {
		m.ModelResponses.Add(1)
	}))
	reg.Register(hook.HookPostToolCall, hook.ObserveHook(func(hctx *hook.Context) {
		m.RecordToolCall(hctx.Result == nil || !hctx.Result.IsError())
	}))
	reg.Register(hook.HookTurnEnd, hook.ObserveHook(func(hctx *hook.Context) {
		var ms int64
		if v, ok := m.turnStart.LoadAndDelete(hctx.ConversationID); ok {
			ms = time.Since(v.(time.Time)).Milliseconds()
		}
		m.RecordTurn(hctx.Error == nil, ms)
	}))
}

// Handler returns an HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		uptime := time.Since(m.startTime).Seconds()

		fmt.Fprintf(w, "# HELP mcpchat_uptime_seconds Time since the process started\n")
		fmt.Fprintf(w, "# TYPE mcpchat_uptime_seconds gauge\n")
		fmt.Fprintf(w, "mcpchat_uptime_seconds %.2f\n\n", uptime)

		counter(w, "mcpchat_connections_total", "Total chat connections", m.Connections.Load())
		counter(w, "mcpchat_connection_errors_total", "Connections whose engine failed to start", m.ConnectionErrors.Load())
		gauge(w, "mcpchat_active_connections", "Open chat connections", m.ActiveConnections.Load())
		counter(w, "mcpchat_turns_total", "Total processed queries", m.Turns.Load())
		counter(w, "mcpchat_turn_errors_total", "Queries that ended in an error and were rolled back", m.TurnErrors.Load())
		counter(w, "mcpchat_model_responses_total", "Total model responses", m.ModelResponses.Load())
		counter(w, "mcpchat_tool_calls_total", "Total dispatched tool calls", m.ToolCalls.Load())
		counter(w, "mcpchat_tool_failures_total", "Tool calls that produced a failure result", m.ToolFailures.Load())

		fmt.Fprintf(w, "# HELP mcpchat_last_turn_duration_ms Last query duration\n")
		fmt.Fprintf(w, "# TYPE mcpchat_last_turn_duration_ms gauge\n")
		fmt.Fprintf(w, "mcpchat_last_turn_duration_ms %d\n", m.LastTurnDurationMs.Load())
	}
}

func counter(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}

func gauge(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}

// Snapshot returns the counters keyed by metric name, for health output.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"connections":        m.Connections.Load(),
		"active_connections": m.ActiveConnections.Load(),
		"turns":              m.Turns.Load(),
		"turn_errors":        m.TurnErrors.Load(),
		"tool_calls":         m.ToolCalls.Load(),
	}
}
