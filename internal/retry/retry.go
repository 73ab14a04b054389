// Package retry repeats failed model calls that are worth repeating.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/provider"
)

// Config controls retry behavior for wrapped gateway calls.
type Config struct {
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles after
	// each further failure.
	Backoff     time.Duration
	ShouldRetry func(error) bool
	Log         *logging.Logger
}

// Completer is the gateway surface being wrapped.
type Completer interface {
	Complete(ctx context.Context, req provider.Request) (domain.Message, error)
}

// WrapGateway wraps a gateway with error-only retries.
func WrapGateway(next Completer, cfg Config) Completer {
	if next == nil {
		return nil
	}
	if normalizedAttempts(cfg.MaxAttempts) == 1 {
		return next
	}
	return &gatewayWrapper{next: next, cfg: cfg}
}

type gatewayWrapper struct {
	next Completer
	cfg  Config
}

func (w *gatewayWrapper) Complete(ctx context.Context, req provider.Request) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	attempts := normalizedAttempts(w.cfg.MaxAttempts)
	delay := w.cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		msg, err := w.next.Complete(ctx, req)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, w.cfg, err) {
			break
		}
		if w.cfg.Log != nil {
			w.cfg.Log.Warn("gateway_retry", map[string]any{"attempt": attempt, "delay_ms": delay.Milliseconds()}, err)
		}
		if !sleep(ctx, delay) {
			break
		}
		delay *= 2
	}
	return domain.Message{}, lastErr
}

// Retryable is the default policy: gateway errors that report themselves
// as transient.
func Retryable(err error) bool {
	var gwErr *domain.GatewayError
	return errors.As(err, &gwErr) && gwErr.Retryable()
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg Config, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if cfg.ShouldRetry == nil {
		return Retryable(err)
	}
	return cfg.ShouldRetry(err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
