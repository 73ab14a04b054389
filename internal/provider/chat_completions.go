// Package provider implements the model gateway: one chat-completions
// request per call, decoded into an assistant message.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/toolschema"
)

const (
	DefaultEndpoint   = "https://models.github.ai/inference/v1/chat/completions"
	DefaultAPIVersion = "2024-08-01-preview"
	DefaultModel      = "openai/gpt-4o-mini"
	DefaultTimeout    = 60 * time.Second

	maxResponseBytes = 8 << 20
	maxErrorBody     = 512
)

// Config describes the endpoint a gateway talks to.
type Config struct {
	Endpoint   string
	APIVersion string
	Token      string
	Model      string
	Timeout    time.Duration
}

// Options are the sampling settings sent with every request.
type Options struct {
	Temperature float64
	TopP        float64
	ToolChoice  ToolChoice
}

// DefaultOptions returns temperature 1, top_p 1 and automatic tool choice.
func DefaultOptions() Options {
	return Options{Temperature: 1, TopP: 1, ToolChoice: ToolChoiceAuto}
}

// Request is one model call.
type Request struct {
	Messages []domain.Message
	Tools    []toolschema.Tool
	Options  Options
}

// Option configures a ChatCompletions gateway.
type Option func(*ChatCompletions)

// WithHTTPClient replaces the gateway's own HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(g *ChatCompletions) {
		if c != nil {
			g.client = c
			g.owned = nil
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *ChatCompletions) {
		if l != nil {
			g.log = l
		}
	}
}

// ChatCompletions is a gateway to an OpenAI-compatible chat-completions
// endpoint. It is safe for concurrent use.
type ChatCompletions struct {
	cfg    Config
	url    string
	client HTTPClient
	owned  *http.Client
	log    *logging.Logger
}

// NewChatCompletions validates cfg and builds a gateway with a scoped HTTP
// client. Empty endpoint, API version, model and timeout take defaults.
func NewChatCompletions(cfg Config, opts ...Option) (*ChatCompletions, error) {
	if cfg.Token == "" {
		return nil, domain.ErrMissingCredential
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", cfg.Endpoint, u.Scheme)
	}
	q := u.Query()
	q.Set("api-version", cfg.APIVersion)
	u.RawQuery = q.Encode()

	owned := newScopedClient()
	g := &ChatCompletions{
		cfg:    cfg,
		url:    u.String(),
		client: owned,
		owned:  owned,
		log:    logging.New("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Model returns the model identifier sent with each request.
func (g *ChatCompletions) Model() string { return g.cfg.Model }

// Complete sends the conversation and returns the first choice as an
// assistant message. Every failure is a *domain.GatewayError.
func (g *ChatCompletions) Complete(ctx context.Context, req Request) (domain.Message, error) {
	body := chatRequest{
		Messages:    encodeMessages(req.Messages),
		Model:       g.cfg.Model,
		Temperature: req.Options.Temperature,
		TopP:        req.Options.TopP,
	}
	if len(req.Tools) > 0 {
		choice := req.Options.ToolChoice
		body.Tools = req.Tools
		body.ToolChoice = &choice
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Message{}, &domain.GatewayError{Reason: "encode request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return domain.Message{}, &domain.GatewayError{Reason: "build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		reason := "request failed"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("timed out after %s", g.cfg.Timeout)
		}
		return domain.Message{}, &domain.GatewayError{Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Message{}, &domain.GatewayError{StatusCode: resp.StatusCode, Reason: "read response", Err: err}
	}

	g.log.Debug("completion", map[string]any{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"bytes":       len(raw),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Message{}, &domain.GatewayError{
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
			Body:       logging.Truncate(string(raw), maxErrorBody),
		}
	}

	msg, err := decodeChoice(raw)
	if err != nil {
		reason := "undecodable response"
		if errors.Is(err, errNoChoices) {
			reason = err.Error()
			err = nil
		}
		return domain.Message{}, &domain.GatewayError{
			StatusCode: resp.StatusCode,
			Reason:     reason,
			Body:       logging.Truncate(string(raw), maxErrorBody),
			Err:        err,
		}
	}
	return msg, nil
}

// Close releases idle connections held by the gateway's own client.
func (g *ChatCompletions) Close() error {
	if g.owned != nil {
		g.owned.CloseIdleConnections()
	}
	return nil
}
