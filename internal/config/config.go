// Package config loads mcpchat settings from defaults, an optional config
// file, a .env file and the environment, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Jashwanth-1/AI-MCP/internal/agent"
	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/mcp"
	"github.com/Jashwanth-1/AI-MCP/internal/provider"
	"github.com/Jashwanth-1/AI-MCP/internal/toolschema"
)

const (
	ConfigDirName  = ".mcpchat"
	DefaultEnvFile = ".env"
	DefaultListen  = "127.0.0.1:8080"
	DefaultToken   = "GITHUB_TOKEN"
)

// configNames are tried in order in each search directory.
var configNames = []string{"mcpchat.yaml", "mcpchat.yml", "mcpchat.json"}

// ServerConfig describes how to spawn the tool host.
type ServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Dir     string            `yaml:"dir"`
}

// Config holds every setting of the CLI and the chat server.
type Config struct {
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	Model      string `yaml:"model"`
	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`
	Token    string `yaml:"-"`

	Temperature    float64       `yaml:"temperature"`
	TopP           float64       `yaml:"top_p"`
	ToolChoice     string        `yaml:"tool_choice"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Retries        int           `yaml:"retries"`

	SystemPrompt     string        `yaml:"system_prompt"`
	MaxIterations    int           `yaml:"max_iterations"`
	AllowTools       []string      `yaml:"allow_tools"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	Server           ServerConfig  `yaml:"server"`

	Listen    string `yaml:"listen"`
	EnvFile   string `yaml:"env_file"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Source is the config file that was loaded, if any.
	Source string `yaml:"-"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Endpoint:         provider.DefaultEndpoint,
		APIVersion:       provider.DefaultAPIVersion,
		Model:            provider.DefaultModel,
		TokenEnv:         DefaultToken,
		Temperature:      1,
		TopP:             1,
		ToolChoice:       "auto",
		RequestTimeout:   provider.DefaultTimeout,
		Retries:          0,
		SystemPrompt:     agent.DefaultSystemPrompt,
		MaxIterations:    agent.DefaultMaxIterations,
		HandshakeTimeout: mcp.DefaultHandshakeTimeout,
		Server:           ServerConfig{Command: "python", Args: []string{"server.py"}},
		Listen:           DefaultListen,
		EnvFile:          DefaultEnvFile,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load builds the configuration. An explicit path must exist; otherwise
// the working directory and then ~/.mcpchat are searched and a missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfig()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFile(cfg.EnvFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Token = os.Getenv(cfg.TokenEnv)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.Source = path
	return nil
}

// loadEnvFile reads KEY=VALUE pairs without overriding variables that are
// already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Model = getEnvDefault("MCPCHAT_MODEL", c.Model)
	c.Endpoint = getEnvDefault("MCPCHAT_ENDPOINT", c.Endpoint)
	c.APIVersion = getEnvDefault("MCPCHAT_API_VERSION", c.APIVersion)
	c.TokenEnv = getEnvDefault("MCPCHAT_TOKEN_ENV", c.TokenEnv)
	if v := os.Getenv("MCPCHAT_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCPCHAT_MAX_ITERATIONS: %w", err)
		}
		c.MaxIterations = n
	}
	return nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func findConfig() string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ConfigDirName))
	}
	for _, dir := range dirs {
		for _, name := range configNames {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
	}
	return ""
}

// Validate reports every problem that would stop the engine from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, fmt.Errorf("%w: set %s", domain.ErrMissingCredential, c.TokenEnv))
	}
	if strings.TrimSpace(c.Server.Command) == "" {
		errs = append(errs, errors.New("server.command is required"))
	}
	if c.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature))
	}
	if c.TopP <= 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p must be within (0, 1], got %g", c.TopP))
	}
	if strings.TrimSpace(c.ToolChoice) == "" {
		errs = append(errs, errors.New(`tool_choice must be "auto", "none" or a tool name`))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if _, err := toolschema.Filter(nil, c.AllowTools); err != nil {
		errs = append(errs, fmt.Errorf("allow_tools: %w", err))
	}
	return errors.Join(errs...)
}

// Gateway returns the model gateway settings.
func (c *Config) Gateway() provider.Config {
	return provider.Config{
		Endpoint:   c.Endpoint,
		APIVersion: c.APIVersion,
		Token:      c.Token,
		Model:      c.Model,
		Timeout:    c.RequestTimeout,
	}
}

// Agent returns the dialogue engine settings.
func (c *Config) Agent() agent.Config {
	return agent.Config{
		SystemPrompt:  c.SystemPrompt,
		MaxIterations: c.MaxIterations,
		Options: provider.Options{
			Temperature: c.Temperature,
			TopP:        c.TopP,
			ToolChoice:  provider.ParseToolChoice(c.ToolChoice),
		},
		AllowTools:       c.AllowTools,
		HandshakeTimeout: c.HandshakeTimeout,
	}
}

// Spawn returns the tool host launch description. Env entries are sorted
// by key.
func (c *Config) Spawn() mcp.SpawnSpec {
	keys := make([]string, 0, len(c.Server.Env))
	for k := range c.Server.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Server.Env[k])
	}
	return mcp.SpawnSpec{
		Command: c.Server.Command,
		Args:    append([]string(nil), c.Server.Args...),
		Env:     env,
		Dir:     c.Server.Dir,
	}
}
