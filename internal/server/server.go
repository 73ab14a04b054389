// Package server exposes the dialogue engine as a WebSocket chat. Every
// connection gets its own engine and therefore its own tool host.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/hook"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/metrics"
)

const (
	shutdownTimeout = 5 * time.Second
	writeTimeout    = 10 * time.Second
	maxMessageSize  = 1 << 20
)

// Engine is the per-connection conversation.
type Engine interface {
	Process(ctx context.Context, query string) (string, error)
	Tools(ctx context.Context) ([]domain.ToolDescriptor, error)
	Hooks() *hook.Registry
	ConversationID() string
	Close() error
}

// Factory starts a fresh engine for a new connection.
type Factory func(ctx context.Context) (Engine, error)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics exposed on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCheckOrigin overrides the WebSocket origin check. The default only
// accepts same-host origins.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// Server routes /healthz, /metrics and /ws.
type Server struct {
	factory  Factory
	log      *logging.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	router   *gin.Engine

	mu    sync.Mutex
	conns map[string]*websocket.Conn
	wg    sync.WaitGroup
}

// New builds a server that starts one engine per connection with factory.
func New(factory Factory, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		factory: factory,
		log:     logging.New("server"),
		metrics: metrics.New(),
		conns:   make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapF(s.metrics.Handler()))
	r.GET("/ws", s.chat)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then closes every
// open connection and waits for their engines to shut down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	logging.SafeGo("server.listen", func() {
		errCh <- srv.ListenAndServe()
	})
	s.log.Info("listening", map[string]any{"addr": addr})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeAll()
	s.wait(shutdownCtx)
	s.log.Info("stopped", map[string]any{"served": s.metrics.Connections.Load()})
	return err
}

func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	open := len(s.conns)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": open,
		"metrics":     s.metrics.Snapshot(),
	})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.TimedEvent("http_request", start, map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})
	}
}

func (s *Server) chat(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("upgrade_failed", nil, err)
		return
	}

	id := uuid.NewString()
	s.track(id, conn)
	defer s.untrack(id)

	s.serveConn(c.Request.Context(), id, conn)
}

func (s *Server) track(id string, conn *websocket.Conn) {
	s.wg.Add(1)
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func (s *Server) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown_incomplete", map[string]any{"active": s.metrics.ActiveConnections.Load()}, ctx.Err())
	}
}

// serveConn runs one connection: start an engine, greet, then answer each
// inbound message in order until the client goes away.
func (s *Server) serveConn(parent context.Context, id string, conn *websocket.Conn) {
	log := s.log.With("connection", id)
	out := &connWriter{conn: conn}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	start := time.Now()
	engine, err := s.factory(ctx)
	if err != nil {
		s.metrics.RecordConnection(false)
		log.Warn("engine_start_failed", nil, err)
		_ = out.write(Frame{Type: FrameError, Content: err.Error()})
		return
	}
	s.metrics.RecordConnection(true)
	defer s.metrics.ConnectionClosed()
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("engine_close_failed", nil, err)
		}
		log.TimedEvent("connection_closed", start, nil)
	}()

	log = log.WithConversation(engine.ConversationID())
	tools, err := engine.Tools(ctx)
	if err != nil {
		log.Warn("list_tools_failed", nil, err)
		_ = out.write(Frame{Type: FrameError, Content: err.Error()})
		return
	}
	attachHooks(engine.Hooks(), out)
	s.metrics.Attach(engine.Hooks())

	if err := out.write(Frame{
		Type:           FrameReady,
		ConversationID: engine.ConversationID(),
		Content:        ReadyGreeting,
		Tools:          toolNames(tools),
	}); err != nil {
		return
	}
	log.Info("connection_ready", map[string]any{"tools": len(tools)})

	conn.SetReadLimit(maxMessageSize)
	inbound := make(chan Inbound)
	logging.SafeGo("server.reader", func() {
		defer close(inbound)
		for {
			var msg Inbound
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("read_failed", nil, err)
				}
				// Interrupt an in-flight turn; the engine is unusable once
				// the client is gone.
				cancel()
				_ = engine.Close()
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	})

	recovery := &logging.RecoveryHandler{Component: "server.turn", Log: log}
	for msg := range inbound {
		if msg.Type != "" && msg.Type != "message" {
			_ = out.write(Frame{Type: FrameError, Content: "unsupported message type " + msg.Type})
			continue
		}
		query := strings.TrimSpace(msg.Content)
		if query == "" {
			_ = out.write(Frame{Type: FrameError, Content: "empty message"})
			continue
		}

		var answer string
		err := recovery.WrapError(func() (err error) {
			answer, err = engine.Process(ctx, query)
			return err
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("turn_failed", nil, err)
			if werr := out.write(Frame{Type: FrameError, Content: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := out.write(Frame{Type: FrameAnswer, Content: answer}); err != nil {
			return
		}
	}
}

func attachHooks(reg *hook.Registry, out *connWriter) {
	reg.Register(hook.HookPreToolCall, hook.ObserveHook(func(hctx *hook.Context) {
		_ = out.write(Frame{
			Type:      FrameToolCall,
			Tool:      hctx.ToolCall.Name,
			CallID:    hctx.ToolCall.ID,
			Arguments: hctx.ToolCall.Arguments,
		})
	}))
	reg.Register(hook.HookPostToolCall, hook.ObserveHook(func(hctx *hook.Context) {
		_ = out.write(Frame{
			Type:    FrameToolResult,
			Tool:    hctx.ToolCall.Name,
			CallID:  hctx.ToolCall.ID,
			Content: hctx.Result.Text(),
			IsError: hctx.Result.IsError(),
		})
	}))
}

// connWriter serialises writes; gorilla connections allow one writer at a
// time.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) write(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(f)
}
