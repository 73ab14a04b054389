// Package chat is the interactive line-oriented front end of the dialogue
// engine.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Jashwanth-1/AI-MCP/internal/hook"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/render"
)

// ErrDeclined is the reason recorded when the user refuses a tool call.
var ErrDeclined = errors.New("declined by user")

// maxLine bounds a single line of user input.
const maxLine = 1 << 20

// Processor runs one user turn.
type Processor interface {
	Process(ctx context.Context, query string) (string, error)
}

// REPL reads queries line by line and prints the engine's answers. A
// failed turn is reported and the loop keeps going; "exit", "quit" or end
// of input stop it.
type REPL struct {
	engine Processor
	in     io.Reader
	render *render.Renderer
	log    *logging.Logger

	outMu sync.Mutex
	out   io.Writer

	startOnce sync.Once
	lines     chan string
	done      chan struct{}
	readErr   error

	callsMu sync.Mutex
	calls   map[string]time.Time
}

// New creates a REPL over in and out.
func New(engine Processor, in io.Reader, out io.Writer, r *render.Renderer) *REPL {
	if r == nil {
		r = render.New(false)
	}
	return &REPL{
		engine: engine,
		in:     in,
		out:    out,
		render: r,
		log:    logging.New("chat"),
		lines:  make(chan string),
		done:   make(chan struct{}),
		calls:  make(map[string]time.Time),
	}
}

// SetLogger replaces the REPL logger.
func (r *REPL) SetLogger(l *logging.Logger) {
	if l != nil {
		r.log = l
	}
}

// Attach registers hooks that echo tool activity. With approve set every
// tool call must be confirmed with "y" before it runs.
func (r *REPL) Attach(reg *hook.Registry, approve bool) {
	if approve {
		reg.Register(hook.HookPreToolCall, hook.ValidationHook(r.confirm))
	}
	reg.Register(hook.HookPreToolCall, hook.ObserveHook(func(hctx *hook.Context) {
		r.callsMu.Lock()
		r.calls[hctx.ToolCall.ID] = time.Now()
		r.callsMu.Unlock()
		r.print(r.render.ToolCall(*hctx.ToolCall))
	}))
	reg.Register(hook.HookPostToolCall, hook.ObserveHook(func(hctx *hook.Context) {
		var d time.Duration
		r.callsMu.Lock()
		if start, ok := r.calls[hctx.ToolCall.ID]; ok {
			d = time.Since(start)
			delete(r.calls, hctx.ToolCall.ID)
		}
		r.callsMu.Unlock()
		r.print(r.render.ToolResult(*hctx.ToolCall, *hctx.Result, d))
	}))
}

// Run loops until the user exits, input ends or ctx is canceled. Only a
// canceled context or a read failure is returned as an error. Run must be
// called at most once.
func (r *REPL) Run(ctx context.Context) error {
	r.start()
	defer close(r.done)

	for {
		r.print(r.render.Prompt())
		line, ok, err := r.next(ctx)
		if err != nil {
			r.print("\n")
			return err
		}
		if !ok {
			r.print("\n" + r.render.Goodbye())
			return r.readErr
		}

		query := strings.TrimSpace(line)
		switch {
		case query == "":
			continue
		case isExit(query):
			r.print(r.render.Goodbye())
			return nil
		}

		answer, err := r.engine.Process(ctx, query)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			r.log.Warn("turn_failed", map[string]any{"query": logging.Truncate(query, 80)}, err)
			r.print(r.render.Error(err))
			continue
		}
		r.print(r.render.Answer(answer))
	}
}

func (r *REPL) start() {
	r.startOnce.Do(func() {
		logging.SafeGo("chat.reader", r.read)
	})
}

func (r *REPL) read() {
	defer close(r.lines)

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	for scanner.Scan() {
		select {
		case r.lines <- scanner.Text():
		case <-r.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		r.readErr = fmt.Errorf("read input: %w", err)
	}
}

// next returns the next input line, or ok=false once input is exhausted.
func (r *REPL) next(ctx context.Context) (string, bool, error) {
	select {
	case line, ok := <-r.lines:
		return line, ok, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (r *REPL) confirm(ctx context.Context, hctx *hook.Context) error {
	call := hctx.ToolCall
	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	r.print(fmt.Sprintf("Run tool %s %s? [y/N] ", call.Name, logging.Truncate(args, 200)))

	answer, ok, err := r.next(ctx)
	if err != nil || !ok {
		return ErrDeclined
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return ErrDeclined
}

func (r *REPL) print(s string) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprint(r.out, s)
}

func isExit(s string) bool {
	switch strings.ToLower(s) {
	case "exit", "quit":
		return true
	}
	return false
}
