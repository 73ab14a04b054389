package chat

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Jashwanth-1/AI-MCP/internal/agent"
	"github.com/Jashwanth-1/AI-MCP/internal/config"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/mcp"
	"github.com/Jashwanth-1/AI-MCP/internal/provider"
	"github.com/Jashwanth-1/AI-MCP/internal/retry"
)

// retryBackoff is the delay before the first repeated model call.
const retryBackoff = 500 * time.Millisecond

// NewGateway builds the model gateway described by cfg, wrapped with
// retries when cfg.Retries is positive.
func NewGateway(cfg *config.Config, log *logging.Logger) (agent.Gateway, error) {
	if log == nil {
		log = logging.New("gateway")
	}
	gw, err := provider.NewChatCompletions(cfg.Gateway(), provider.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("model gateway: %w", err)
	}
	log.Debug("gateway_ready", map[string]any{"model": gw.Model(), "retries": cfg.Retries})
	if cfg.Retries <= 0 {
		return gw, nil
	}
	return retry.WrapGateway(gw, retry.Config{
		MaxAttempts: cfg.Retries + 1,
		Backoff:     retryBackoff,
		ShouldRetry: retry.Retryable,
		Log:         log.Named("retry"),
	}), nil
}

// Open builds the gateway, spawns the tool host and returns a ready
// engine. The caller owns the engine and must Close it.
func Open(ctx context.Context, cfg *config.Config, hostStderr io.Writer, opts ...agent.Option) (*agent.Engine, error) {
	gw, err := NewGateway(cfg, nil)
	if err != nil {
		return nil, err
	}
	if hostStderr != nil {
		opts = append(opts, agent.WithSessionOptions(mcp.WithHostStderr(hostStderr)))
	}
	return agent.Start(ctx, cfg.Agent(), cfg.Spawn(), gw, opts...)
}
