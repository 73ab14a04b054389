// Package agent runs the tool-augmented dialogue: one engine owns one
// conversation, one tool session and one model gateway.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Jashwanth-1/AI-MCP/internal/conversation"
	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/hook"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/mcp"
	"github.com/Jashwanth-1/AI-MCP/internal/provider"
	"github.com/Jashwanth-1/AI-MCP/internal/toolschema"
)

const (
	DefaultMaxIterations = 5
	DefaultSystemPrompt  = "You are a helpful assistant that can use tools to answer questions."
)

// Gateway sends a conversation to the model and returns its reply.
type Gateway interface {
	Complete(ctx context.Context, req provider.Request) (domain.Message, error)
}

// ToolSession lists and invokes the tools of a connected tool host.
type ToolSession interface {
	ListTools(ctx context.Context) ([]domain.ToolDescriptor, error)
	Invoke(ctx context.Context, name string, args map[string]any) (domain.ToolSuccess, error)
	Close() error
}

var (
	_ Gateway     = (*provider.ChatCompletions)(nil)
	_ ToolSession = (*mcp.Session)(nil)
)

// State is the position of the engine within a turn.
type State int

const (
	StateAwaitingInput State = iota
	StateModelRequested
	StateToolDispatch
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateModelRequested:
		return "model_requested"
	case StateToolDispatch:
		return "tool_dispatch"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the per-conversation settings.
type Config struct {
	SystemPrompt     string
	MaxIterations    int
	Options          provider.Options
	AllowTools       []string
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the stock system prompt, an iteration bound of 5
// and default sampling options.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:     DefaultSystemPrompt,
		MaxIterations:    DefaultMaxIterations,
		Options:          provider.DefaultOptions(),
		HandshakeTimeout: mcp.DefaultHandshakeTimeout,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithHooks sets the hook registry
func WithHooks(hooks *hook.Registry) Option {
	return func(e *Engine) {
		if hooks != nil {
			e.hooks = hooks
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.base = l
		}
	}
}

// WithSessionOptions passes options to the tool session created by Start.
func WithSessionOptions(opts ...mcp.Option) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, opts...)
	}
}

// Engine processes user queries against one conversation. Process calls
// are serialised; Close may be called at any time from any goroutine.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	session ToolSession
	gateway Gateway
	store   *conversation.Store
	hooks   *hook.Registry
	id      string

	base        *logging.Logger
	log         *eventLogger
	sessionOpts []mcp.Option

	stateMu sync.Mutex
	state   State
	tools   []domain.ToolDescriptor

	turns     atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds an engine over an already connected tool session.
func New(cfg Config, session ToolSession, gateway Gateway, opts ...Option) (*Engine, error) {
	if session == nil {
		return nil, fmt.Errorf("agent: nil tool session")
	}
	if gateway == nil {
		return nil, fmt.Errorf("agent: nil gateway")
	}
	e := newEngine(cfg, opts...)
	e.session = session
	e.gateway = gateway
	if _, err := toolschema.Filter(nil, e.cfg.AllowTools); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	return e, nil
}

func newEngine(cfg Config, opts ...Option) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	e := &Engine{
		cfg:   cfg,
		store: conversation.New(cfg.SystemPrompt),
		hooks: hook.NewRegistry(),
		id:    uuid.NewString(),
		base:  logging.New("agent"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = newEventLogger(e.base.WithConversation(e.id))
	trace := hook.LoggingHook(e.base.Named("hook"))
	for _, ht := range hook.Types {
		e.hooks.Register(ht, trace)
	}
	return e
}

// Start spawns the tool host described by spawn, connects to it, and
// returns an engine ready for Process. A connection failure is returned
// as a *domain.ConnectionError before the gateway is ever used.
func Start(ctx context.Context, cfg Config, spawn mcp.SpawnSpec, gateway Gateway, opts ...Option) (*Engine, error) {
	if gateway == nil {
		return nil, fmt.Errorf("agent: nil gateway")
	}
	e := newEngine(cfg, opts...)
	if _, err := toolschema.Filter(nil, e.cfg.AllowTools); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	sessionOpts := append([]mcp.Option{
		mcp.WithHandshakeTimeout(e.cfg.HandshakeTimeout),
		mcp.WithLogger(e.base.Named("mcp").WithConversation(e.id)),
	}, e.sessionOpts...)
	session := mcp.NewSession(sessionOpts...)
	if err := session.Connect(ctx, spawn); err != nil {
		return nil, err
	}

	e.session = session
	e.gateway = gateway
	return e, nil
}

// ConversationID identifies the conversation in logs and hooks.
func (e *Engine) ConversationID() string { return e.id }

// Hooks returns the hook registry for external registration
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// History returns a copy of the conversation so far.
func (e *Engine) History() []domain.Message { return e.store.Snapshot() }

// State returns the engine's position within the current or last turn.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Tools refreshes and returns the catalog advertised to the model.
func (e *Engine) Tools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	if e.closed.Load() {
		return nil, &domain.StateError{Op: "tools", State: "closed"}
	}
	return e.refreshTools(ctx)
}

func (e *Engine) refreshTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	all, err := e.session.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	tools, err := toolschema.Filter(all, e.cfg.AllowTools)
	if err != nil {
		return nil, err
	}
	e.stateMu.Lock()
	e.tools = tools
	e.stateMu.Unlock()
	return tools, nil
}

// Process runs one user turn and returns the model's final answer. On any
// error the turn's messages are discarded, leaving the history as it was
// before the call.
func (e *Engine) Process(ctx context.Context, query string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return "", &domain.StateError{Op: "process", State: "closed"}
	}

	turn := e.turns.Add(1)
	log := e.log.forTurn(turn)
	cp := e.store.Checkpoint()
	start := time.Now()

	e.hooks.Run(ctx, &hook.Context{Type: hook.HookTurnStart, ConversationID: e.id, Query: query})
	log.turnStart(query)

	answer, iterations, err := e.runTurn(ctx, log, query)
	if err != nil {
		removed, rbErr := e.store.Rollback(cp)
		if rbErr != nil {
			err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		e.setState(StateAwaitingInput)
		log.turnRollback(removed, err)
		e.hooks.Run(ctx, &hook.Context{Type: hook.HookTurnEnd, ConversationID: e.id, Query: query, Iteration: iterations, Error: err})
		return "", err
	}

	e.setState(StateCompleted)
	log.turnEnd(iterations, start)
	e.hooks.Run(ctx, &hook.Context{Type: hook.HookTurnEnd, ConversationID: e.id, Query: query, Iteration: iterations})
	return answer, nil
}

func (e *Engine) runTurn(ctx context.Context, log *eventLogger, query string) (string, int, error) {
	tools, err := e.refreshTools(ctx)
	if err != nil {
		return "", 0, err
	}
	schemas := toolschema.FromDescriptors(tools)

	if err := e.store.Append(domain.UserMessage(query)); err != nil {
		return "", 0, err
	}

	for i := 1; i <= e.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", i - 1, err
		}

		e.setState(StateModelRequested)
		callStart := time.Now()
		reply, err := e.gateway.Complete(ctx, provider.Request{
			Messages: e.store.Snapshot(),
			Tools:    schemas,
			Options:  e.cfg.Options,
		})
		log.llmCall(i, callStart, len(reply.ToolCalls), err)
		if err != nil {
			return "", i, err
		}
		reply.Role = domain.RoleAssistant
		if err := e.store.Append(reply); err != nil {
			return "", i, err
		}
		e.hooks.Run(ctx, &hook.Context{Type: hook.HookModelResponse, ConversationID: e.id, Iteration: i, Message: &reply})

		if !reply.HasToolCalls() {
			return reply.Content, i, nil
		}

		e.setState(StateToolDispatch)
		for _, call := range reply.ToolCalls {
			result, err := e.dispatch(ctx, log, call, i)
			if err != nil {
				return "", i, err
			}
			if err := e.store.Append(domain.ToolMessage(result)); err != nil {
				return "", i, err
			}
		}
	}
	return "", e.cfg.MaxIterations, &domain.ToolLoopExceededError{Limit: e.cfg.MaxIterations}
}

// Close tears down the tool session. It is idempotent and may interrupt
// an in-flight tool call.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.closeErr = e.session.Close()
		e.log.closed(e.closeErr)
	})
	return e.closeErr
}
