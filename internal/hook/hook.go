// Package hook lets callers observe a dialogue turn and veto tool calls.
package hook

import (
	"context"
	"sync"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
)

// HookType identifies when a hook should be called
type HookType string

const (
	HookTurnStart     HookType = "turn_start"
	HookModelResponse HookType = "model_response"
	HookPreToolCall   HookType = "pre_tool_call"
	HookPostToolCall  HookType = "post_tool_call"
	HookTurnEnd       HookType = "turn_end"
)

// Types lists every hook point in the order a turn reaches them.
var Types = []HookType{HookTurnStart, HookModelResponse, HookPreToolCall, HookPostToolCall, HookTurnEnd}

// Context passed to hooks
type Context struct {
	Type           HookType
	ConversationID string
	Query          string
	Iteration      int
	Message        *domain.Message
	ToolCall       *domain.ToolCall
	Result         *domain.ToolResult
	Error          error
}

// Result returned by hooks. Continue=false on a pre_tool_call hook blocks
// the call; Error explains why.
type Result struct {
	Continue bool
	Error    error
}

// Hook is a function called at specific points in execution
type Hook func(ctx context.Context, hctx *Context) Result

// Registry manages hooks
type Registry struct {
	mu    sync.RWMutex
	hooks map[HookType][]Hook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[HookType][]Hook),
	}
}

// Register adds a hook for a specific type
func (r *Registry) Register(hookType HookType, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hookType] = append(r.hooks[hookType], hook)
}

// Run executes the hooks of hctx.Type in registration order, stopping at
// the first one that does not continue or reports an error.
func (r *Registry) Run(ctx context.Context, hctx *Context) Result {
	if r == nil {
		return Result{Continue: true}
	}
	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks[hctx.Type]...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		result := hook(ctx, hctx)
		if !result.Continue || result.Error != nil {
			return result
		}
	}
	return Result{Continue: true}
}

// Predefined hooks

// LoggingHook logs hook invocations at debug level.
func LoggingHook(log *logging.Logger) Hook {
	return func(ctx context.Context, hctx *Context) Result {
		extra := map[string]any{"conversation": hctx.ConversationID, "iteration": hctx.Iteration}
		if hctx.ToolCall != nil {
			extra["tool"] = hctx.ToolCall.Name
			extra["call_id"] = hctx.ToolCall.ID
		}
		if hctx.Result != nil {
			extra["is_error"] = hctx.Result.IsError()
		}
		if hctx.Error != nil {
			extra["error"] = hctx.Error.Error()
		}
		log.Debug("hook_"+string(hctx.Type), extra)
		return Result{Continue: true}
	}
}

// ValidationHook checks conditions before execution. A non-nil error from
// validate stops the chain and is reported as the hook's error.
func ValidationHook(validate func(context.Context, *Context) error) Hook {
	return func(ctx context.Context, hctx *Context) Result {
		if err := validate(ctx, hctx); err != nil {
			return Result{Continue: false, Error: err}
		}
		return Result{Continue: true}
	}
}

// ObserveHook calls fn and always continues.
func ObserveHook(fn func(*Context)) Hook {
	return func(ctx context.Context, hctx *Context) Result {
		fn(hctx)
		return Result{Continue: true}
	}
}
