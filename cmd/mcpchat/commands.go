package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jashwanth-1/AI-MCP/internal/agent"
	"github.com/Jashwanth-1/AI-MCP/internal/chat"
	"github.com/Jashwanth-1/AI-MCP/internal/config"
	"github.com/Jashwanth-1/AI-MCP/internal/hook"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/mcp"
	"github.com/Jashwanth-1/AI-MCP/internal/server"
	"github.com/Jashwanth-1/AI-MCP/internal/toolschema"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "Confirm every tool call before it runs")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	hooks := hook.NewRegistry()
	engine, err := openEngine(ctx, agent.WithHooks(hooks))
	if err != nil {
		return err
	}
	defer engine.Close()

	tools, err := engine.Tools(ctx)
	if err != nil {
		return err
	}
	r := renderer()
	fmt.Fprint(os.Stdout, r.Banner(cfg.Spawn().String(), tools))

	repl := chat.New(engine, os.Stdin, os.Stdout, r)
	repl.SetLogger(logging.New("chat").WithConversation(engine.ConversationID()))
	repl.Attach(hooks, approve)
	if err := repl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a single query and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			engine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			answer, err := engine.Process(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, answer)
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered by the tool host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			session := mcp.NewSession(
				mcp.WithHandshakeTimeout(cfg.HandshakeTimeout),
				mcp.WithHostStderr(hostStderr()),
			)
			if err := session.Connect(ctx, cfg.Spawn()); err != nil {
				return err
			}
			defer session.Close()

			all, err := session.ListTools(ctx)
			if err != nil {
				return err
			}
			tools, err := toolschema.Filter(all, cfg.AllowTools)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(toolschema.FromDescriptors(tools))
			}
			r := renderer()
			if r.Pretty() && len(tools) > 0 {
				fmt.Fprintln(os.Stdout, r.Banner(cfg.Spawn().String(), tools))
				return nil
			}
			fmt.Fprint(os.Stdout, r.Tools(tools))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the function-calling schemas sent to the model")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat over WebSocket, one tool host per connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			factory := func(ctx context.Context) (server.Engine, error) {
				engine, err := openEngine(ctx)
				if err != nil {
					return nil, err
				}
				return engine, nil
			}
			return server.New(factory).ListenAndServe(ctx, cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default "+config.DefaultListen+")")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stdout, "mcpchat %s\n", version)
		},
	}
}

// openEngine starts an engine for cfg. Cancelling ctx closes the engine,
// which also interrupts a tool call already sent to the host.
func openEngine(ctx context.Context, opts ...agent.Option) (*agent.Engine, error) {
	opts = append(opts, agent.WithSessionOptions(mcp.WithClientInfo("mcpchat", version)))
	engine, err := chat.Open(ctx, cfg, hostStderr(), opts...)
	if err != nil {
		return nil, err
	}
	context.AfterFunc(ctx, func() {
		if err := engine.Close(); err != nil {
			logging.New("cli").Warn("engine_close_failed", nil, err)
		}
	})
	return engine, nil
}

// hostStderr forwards the tool host's stderr only when debugging.
func hostStderr() io.Writer {
	if logging.ParseLevel(cfg.LogLevel) <= slog.LevelDebug {
		return os.Stderr
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
