package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/hook"
)

var errBlocked = errors.New("blocked by hook")

// dispatch runs one tool call and folds recoverable failures into a
// failure result. Only transport-level errors are returned.
func (e *Engine) dispatch(ctx context.Context, log *eventLogger, call domain.ToolCall, iteration int) (domain.ToolResult, error) {
	start := time.Now()
	var args map[string]any

	pre := e.hooks.Run(ctx, &hook.Context{
		Type:           hook.HookPreToolCall,
		ConversationID: e.id,
		Iteration:      iteration,
		ToolCall:       &call,
	})

	var result domain.ToolResult
	switch {
	case !pre.Continue || pre.Error != nil:
		reason := errBlocked
		if pre.Error != nil {
			reason = pre.Error
		}
		result = domain.Failed(call.ID, domain.FailureBlocked, reason)

	default:
		parsed, err := parseArguments(call)
		if err != nil {
			result = domain.Failed(call.ID, domain.FailureArguments, err)
			break
		}
		args = parsed

		out, err := e.session.Invoke(ctx, call.Name, args)
		switch {
		case err == nil:
			result = domain.Succeeded(call.ID, out)
		case errors.Is(err, domain.ErrToolNotFound):
			result = domain.Failed(call.ID, domain.FailureNotFound, err)
		case errors.Is(err, domain.ErrToolExecution):
			result = domain.Failed(call.ID, domain.FailureExecution, err)
		default:
			log.toolCall(call, args, start, nil, err)
			return domain.ToolResult{}, err
		}
	}

	log.toolCall(call, args, start, &result, nil)
	e.hooks.Run(ctx, &hook.Context{
		Type:           hook.HookPostToolCall,
		ConversationID: e.id,
		Iteration:      iteration,
		ToolCall:       &call,
		Result:         &result,
	})
	return result, nil
}

// parseArguments decodes the model's argument text. Empty text means no
// arguments; anything other than a JSON object is rejected.
func parseArguments(call domain.ToolCall) (map[string]any, error) {
	raw := bytes.TrimSpace([]byte(call.Arguments))
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &domain.ArgumentParseError{Tool: call.Name, Raw: call.Arguments, Err: err}
	}
	if args == nil {
		return nil, &domain.ArgumentParseError{Tool: call.Name, Raw: call.Arguments, Err: errors.New("arguments are null")}
	}
	return args, nil
}
