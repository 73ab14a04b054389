package agent

import (
	"fmt"
	"time"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
)

const maxLoggedResult = 500

// eventLogger emits the engine's structured turn events.
type eventLogger struct {
	log *logging.Logger
}

func newEventLogger(l *logging.Logger) *eventLogger {
	return &eventLogger{log: l}
}

func (l *eventLogger) forTurn(turn int64) *eventLogger {
	return &eventLogger{log: l.log.With("turn", turn)}
}

func (l *eventLogger) turnStart(query string) {
	l.log.Info("turn_start", map[string]any{"query": logging.Truncate(query, 200)})
}

// llmCall logs a model call
func (l *eventLogger) llmCall(iteration int, start time.Time, toolCalls int, err error) {
	extra := map[string]any{
		"iteration":   iteration,
		"duration_ms": time.Since(start).Milliseconds(),
		"tool_calls":  toolCalls,
	}
	if err != nil {
		l.log.Error("llm_call", extra, err)
		return
	}
	l.log.Info("llm_call", extra)
}

// toolCall logs a tool execution
func (l *eventLogger) toolCall(call domain.ToolCall, args map[string]any, start time.Time, result *domain.ToolResult, err error) {
	extra := map[string]any{
		"tool":        call.Name,
		"call_id":     call.ID,
		"args":        logging.SanitizeArgs(args),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		l.log.Error("tool_call", extra, err)
		return
	}
	if result != nil {
		extra["outcome"] = outcomeName(*result)
		extra["result"] = logging.Truncate(result.Text(), maxLoggedResult)
	}
	l.log.Info("tool_call", extra)
}

func (l *eventLogger) turnEnd(iterations int, start time.Time) {
	l.log.TimedEvent("turn_end", start, map[string]any{"iterations": iterations})
}

func (l *eventLogger) turnRollback(removed int, err error) {
	l.log.Warn("turn_rollback", map[string]any{"removed": removed}, err)
}

func (l *eventLogger) closed(err error) {
	if err != nil {
		l.log.Warn("engine_closed", nil, err)
		return
	}
	l.log.Debug("engine_closed", nil)
}

func outcomeName(r domain.ToolResult) string {
	switch o := r.Outcome.(type) {
	case domain.ToolSuccess:
		return "success"
	case domain.ToolFailure:
		return string(o.Kind)
	default:
		return fmt.Sprintf("%T", o)
	}
}
