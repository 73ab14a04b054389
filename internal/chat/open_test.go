package chat

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jashwanth-1/AI-MCP/internal/config"
	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/provider"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Token = "test-token"
	return cfg
}

func TestNewGatewayWithoutRetries(t *testing.T) {
	gw, err := NewGateway(testConfig(), logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &provider.ChatCompletions{}, gw)
}

func TestNewGatewayLogsModel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.FromSlog(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), "gateway")
	cfg := testConfig()
	cfg.Model = "gpt-4o-mini"

	_, err := NewGateway(cfg, log)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "gateway_ready")
	assert.Contains(t, buf.String(), `"model":"gpt-4o-mini"`)
}

func TestNewGatewayWrapsRetries(t *testing.T) {
	cfg := testConfig()
	cfg.Retries = 2

	gw, err := NewGateway(cfg, logging.Discard())
	require.NoError(t, err)
	_, direct := gw.(*provider.ChatCompletions)
	assert.False(t, direct)
}

func TestNewGatewayMissingToken(t *testing.T) {
	cfg := testConfig()
	cfg.Token = ""

	_, err := NewGateway(cfg, logging.Discard())
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestOpenReportsConnectionFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Server = config.ServerConfig{Command: "/nonexistent/mcpchat-tool-host"}

	e, err := Open(context.Background(), cfg, nil)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, domain.ErrConnection)
}
