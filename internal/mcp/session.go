// Package mcp manages the session with an MCP tool host: spawning it,
// performing the handshake, listing its tools and invoking them.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/toolschema"
)

const (
	DefaultHandshakeTimeout = 30 * time.Second
	defaultClientName       = "mcpchat"
	defaultClientVersion    = "dev"

	// transportGrace is how long Invoke waits for the connection to report
	// closure before treating a failed call as a tool-side error.
	transportGrace = 100 * time.Millisecond
)

// State is the lifecycle position of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateInitialized
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateInitialized:
		return "initialized"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SpawnSpec describes how to launch a tool host.
type SpawnSpec struct {
	Command string
	Args    []string
	// Env entries (KEY=VALUE) are added to the inherited environment.
	Env []string
	Dir string
}

func (s SpawnSpec) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// Option configures a Session.
type Option func(*Session)

// WithHandshakeTimeout bounds how long Connect waits for initialize.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.handshakeTimeout = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClientInfo sets the implementation name and version sent in initialize.
func WithClientInfo(name, version string) Option {
	return func(s *Session) {
		s.clientName = name
		s.clientVersion = version
	}
}

// WithHostStderr forwards the tool host's stderr to w. By default it is discarded.
func WithHostStderr(w io.Writer) Option {
	return func(s *Session) { s.hostStderr = w }
}

// Session is a connection to one tool host. A Session is used once:
// after Close it cannot be reconnected.
type Session struct {
	mu    sync.Mutex
	state State
	cs    *mcpsdk.ClientSession
	done  chan struct{}

	tools  []domain.ToolDescriptor
	index  map[string]int
	listed bool

	handshakeTimeout time.Duration
	clientName       string
	clientVersion    string
	hostStderr       io.Writer
	log              *logging.Logger
}

// NewSession creates a disconnected session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		handshakeTimeout: DefaultHandshakeTimeout,
		clientName:       defaultClientName,
		clientVersion:    defaultClientVersion,
		log:              logging.New("mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect launches the tool host described by spec and performs the MCP
// handshake. On failure the session ends Closed and the returned error is a
// *domain.ConnectionError.
func (s *Session) Connect(ctx context.Context, spec SpawnSpec) error {
	if strings.TrimSpace(spec.Command) == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateDisconnected {
			return &domain.StateError{Op: "connect", State: s.state.String()}
		}
		s.state = StateClosed
		return &domain.ConnectionError{Err: errors.New("empty command")}
	}

	// The SDK owns the process lifetime, so it must not be tied to ctx.
	cmd := exec.Command(spec.Command, spec.Args...)
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Dir = spec.Dir
	cmd.Stderr = s.hostStderr

	return s.connect(ctx, &mcpsdk.CommandTransport{Command: cmd}, spec.String())
}

// ConnectTransport performs the handshake over an already constructed
// transport.
func (s *Session) ConnectTransport(ctx context.Context, transport mcpsdk.Transport) error {
	return s.connect(ctx, transport, "")
}

func (s *Session) connect(ctx context.Context, transport mcpsdk.Transport, label string) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		st := s.state
		s.mu.Unlock()
		return &domain.StateError{Op: "connect", State: st.String()}
	}
	s.state = StateConnecting
	s.mu.Unlock()

	start := time.Now()
	hctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: s.clientName, Version: s.clientVersion}, nil)
	cs, err := client.Connect(hctx, transport, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateClosed
		if errors.Is(hctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("handshake timed out after %s: %w", s.handshakeTimeout, err)
		}
		s.log.Error("connect_failed", map[string]any{"command": label}, err)
		return &domain.ConnectionError{Command: label, Err: err}
	}
	if s.state == StateClosed {
		_ = cs.Close()
		return &domain.ConnectionError{Command: label, Err: errors.New("session closed during handshake")}
	}

	s.cs = cs
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		_ = cs.Wait()
		close(done)
	}(s.done)
	s.state = StateInitialized

	extra := map[string]any{"command": label}
	if info := cs.InitializeResult(); info != nil && info.ServerInfo != nil {
		extra["server"] = info.ServerInfo.Name
		extra["server_version"] = info.ServerInfo.Version
	}
	s.log.TimedEvent("connected", start, extra)
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) active(op string) (*mcpsdk.ClientSession, chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitialized {
		return nil, nil, &domain.StateError{Op: op, State: s.state.String()}
	}
	return s.cs, s.done, nil
}

// ListTools fetches the host's full catalog, following pagination, and
// replaces the cached copy. Duplicate tool names are a protocol failure.
func (s *Session) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	cs, done, err := s.active("list tools")
	if err != nil {
		return nil, err
	}

	var (
		tools  []domain.ToolDescriptor
		index  = make(map[string]int)
		cursor string
		seen   = make(map[string]bool)
	)
	for {
		res, err := cs.ListTools(ctx, &mcpsdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, classify(ctx, "list tools", done, err)
		}
		for _, t := range res.Tools {
			d, err := toDescriptor(t)
			if err != nil {
				return nil, &domain.ProtocolError{Reason: err.Error()}
			}
			if _, dup := index[d.Name]; dup {
				return nil, &domain.ProtocolError{Reason: fmt.Sprintf("tool host listed %q twice", d.Name)}
			}
			index[d.Name] = len(tools)
			tools = append(tools, d)
		}
		if res.NextCursor == "" {
			break
		}
		if seen[res.NextCursor] {
			return nil, &domain.ProtocolError{Reason: fmt.Sprintf("tool host repeated cursor %q", res.NextCursor)}
		}
		seen[res.NextCursor] = true
		cursor = res.NextCursor
	}

	s.mu.Lock()
	s.tools = tools
	s.index = index
	s.listed = true
	s.mu.Unlock()

	s.log.Debug("tools_listed", map[string]any{"count": len(tools)})
	return cloneDescriptors(tools), nil
}

// Invoke calls the named tool with args. Once the request is sent, ctx no
// longer interrupts it; only Close does.
func (s *Session) Invoke(ctx context.Context, name string, args map[string]any) (domain.ToolSuccess, error) {
	cs, done, err := s.active("invoke")
	if err != nil {
		return domain.ToolSuccess{}, err
	}

	s.mu.Lock()
	listed := s.listed
	s.mu.Unlock()
	if !listed {
		if _, err := s.ListTools(ctx); err != nil {
			return domain.ToolSuccess{}, err
		}
	}

	s.mu.Lock()
	_, known := s.index[name]
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Name
	}
	s.mu.Unlock()
	if !known {
		return domain.ToolSuccess{}, &domain.ToolNotFoundError{Name: name, Suggestions: suggest(name, names)}
	}

	if err := ctx.Err(); err != nil {
		return domain.ToolSuccess{}, &domain.TransportError{Op: "invoke " + name, Err: err}
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := cs.CallTool(context.WithoutCancel(ctx), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		if s.State() == StateClosed || closed(done, transportGrace) {
			return domain.ToolSuccess{}, &domain.TransportError{Op: "invoke " + name, Err: err}
		}
		return domain.ToolSuccess{}, &domain.ToolExecutionError{Name: name, Message: err.Error(), Err: err}
	}

	text := contentText(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return domain.ToolSuccess{}, &domain.ToolExecutionError{Name: name, Message: text}
	}

	out := domain.ToolSuccess{Output: text}
	if res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return domain.ToolSuccess{}, &domain.ToolExecutionError{Name: name, Message: "undecodable structured content", Err: err}
		}
		out.Structured = raw
	}
	return out, nil
}

// Close ends the session and terminates the tool host. It is safe to call
// more than once and from any goroutine.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	cs := s.cs
	s.state = StateClosed
	s.cs = nil
	s.mu.Unlock()

	if cs == nil {
		return nil
	}
	err := cs.Close()
	s.log.Debug("closed", nil)
	if err != nil {
		return fmt.Errorf("close tool session: %w", err)
	}
	return nil
}

func classify(ctx context.Context, op string, done chan struct{}, err error) error {
	if ctx.Err() != nil || closed(done, transportGrace) {
		return &domain.TransportError{Op: op, Err: err}
	}
	return &domain.ProtocolError{Reason: fmt.Sprintf("%s: %v", op, err)}
}

func closed(done chan struct{}, grace time.Duration) bool {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

func toDescriptor(t *mcpsdk.Tool) (domain.ToolDescriptor, error) {
	if t == nil {
		return domain.ToolDescriptor{}, errors.New("tool host listed a null tool")
	}
	if t.Name == "" {
		return domain.ToolDescriptor{}, errors.New("tool host listed a tool without a name")
	}
	d := domain.ToolDescriptor{Name: t.Name, Description: t.Description}
	if t.InputSchema == nil {
		d.InputSchema = append(json.RawMessage(nil), toolschema.EmptyParameters...)
		return d, nil
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return domain.ToolDescriptor{}, fmt.Errorf("schema of %q: %w", t.Name, err)
	}
	d.InputSchema = raw
	return d, nil
}

func contentText(content []mcpsdk.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *mcpsdk.TextContent:
			parts = append(parts, v.Text)
		default:
			raw, err := json.Marshal(c)
			if err == nil {
				parts = append(parts, string(raw))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func cloneDescriptors(in []domain.ToolDescriptor) []domain.ToolDescriptor {
	if in == nil {
		return nil
	}
	out := make([]domain.ToolDescriptor, len(in))
	for i, d := range in {
		d.InputSchema = append(json.RawMessage(nil), d.InputSchema...)
		out[i] = d
	}
	return out
}
