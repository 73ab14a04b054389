package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/provider"
)

// ErrScriptExhausted is returned when a ScriptedGateway runs out of steps.
var ErrScriptExhausted = errors.New("scripted gateway: no more responses")

// Step is one scripted gateway answer.
type Step struct {
	Message domain.Message
	Err     error
}

// Reply answers with plain assistant text.
func Reply(text string) Step {
	return Step{Message: domain.Message{Role: domain.RoleAssistant, Content: text}}
}

// CallTools answers with an assistant message requesting calls.
func CallTools(calls ...domain.ToolCall) Step {
	return Step{Message: domain.Message{Role: domain.RoleAssistant, ToolCalls: calls}}
}

// Fail answers with err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Call builds a tool call.
func Call(id, name, args string) domain.ToolCall {
	return domain.ToolCall{ID: id, Name: name, Arguments: args}
}

// ScriptedGateway replays steps in order and records every request.
type ScriptedGateway struct {
	mu       sync.Mutex
	steps    []Step
	loop     bool
	requests []provider.Request
}

// NewScriptedGateway creates a gateway that fails once steps run out.
func NewScriptedGateway(steps ...Step) *ScriptedGateway {
	return &ScriptedGateway{steps: steps}
}

// NewLoopingGateway creates a gateway that keeps answering with step. Tool
// call ids get the request number appended so each round is distinct.
func NewLoopingGateway(step Step) *ScriptedGateway {
	return &ScriptedGateway{steps: []Step{step}, loop: true}
}

func (g *ScriptedGateway) Complete(ctx context.Context, req provider.Request) (domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := req
	snapshot.Messages = make([]domain.Message, len(req.Messages))
	for i, m := range req.Messages {
		snapshot.Messages[i] = m.Clone()
	}
	g.requests = append(g.requests, snapshot)
	n := len(g.requests)

	if err := ctx.Err(); err != nil {
		return domain.Message{}, &domain.GatewayError{Reason: "canceled", Err: err}
	}

	var step Step
	switch {
	case n <= len(g.steps):
		step = g.steps[n-1]
	case g.loop && len(g.steps) > 0:
		step = g.steps[len(g.steps)-1]
	default:
		return domain.Message{}, ErrScriptExhausted
	}
	if step.Err != nil {
		return domain.Message{}, step.Err
	}

	msg := step.Message.Clone()
	if g.loop {
		for i := range msg.ToolCalls {
			msg.ToolCalls[i].ID = fmt.Sprintf("%s_%d", msg.ToolCalls[i].ID, n)
		}
	}
	return msg, nil
}

// Calls returns how many requests were made.
func (g *ScriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns copies of the recorded requests.
func (g *ScriptedGateway) Requests() []provider.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]provider.Request(nil), g.requests...)
}

// LastRequest returns the most recent request.
func (g *ScriptedGateway) LastRequest() provider.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return provider.Request{}
	}
	return g.requests[len(g.requests)-1]
}
