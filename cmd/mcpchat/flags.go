package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Jashwanth-1/AI-MCP/internal/config"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
	"github.com/Jashwanth-1/AI-MCP/internal/render"
)

var (
	configPath    string
	model         string
	serverCommand string
	logLevel      string
	logFormat     string
	allowTools    []string
	maxIterations int
	retries       int
	pretty        bool
	approve       bool
	listen        string

	cfg *config.Config
)

func registerGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&configPath, "config", "c", "", "Config file (default: ./mcpchat.yaml or ~/.mcpchat/mcpchat.yaml)")
	f.StringVarP(&model, "model", "m", "", "Model identifier")
	f.StringVar(&serverCommand, "server", "", `Tool host command line, e.g. "python server.py"`)
	f.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	f.StringSliceVar(&allowTools, "allow-tool", nil, "Only offer tools matching this glob (repeatable)")
	f.IntVar(&maxIterations, "max-iterations", 0, "Model calls allowed per query")
	f.IntVar(&retries, "retries", 0, "Retries for failed model calls")
	f.BoolVar(&pretty, "pretty", term.IsTerminal(int(os.Stdout.Fd())), "Pretty print output")
}

// setup loads configuration, applies flag overrides and installs the
// process-wide log handler.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		loaded.Model = model
	}
	if flags.Changed("server") {
		fields := strings.Fields(serverCommand)
		if len(fields) == 0 {
			return fmt.Errorf("--server: empty command")
		}
		loaded.Server.Command = fields[0]
		loaded.Server.Args = fields[1:]
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		loaded.LogFormat = logFormat
	}
	if flags.Changed("allow-tool") {
		loaded.AllowTools = allowTools
	}
	if flags.Changed("max-iterations") {
		loaded.MaxIterations = maxIterations
	}
	if flags.Changed("retries") {
		loaded.Retries = retries
	}
	if flags.Lookup("listen") != nil && flags.Changed("listen") {
		loaded.Listen = listen
	}

	logging.Setup(logging.Options{
		Level:   logging.ParseLevel(loaded.LogLevel),
		Format:  logging.Format(loaded.LogFormat),
		Output:  os.Stderr,
		NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
	})
	if loaded.Source != "" {
		logging.New("cli").Debug("config_loaded", map[string]any{"path": loaded.Source})
	}

	cfg = loaded
	return nil
}

func renderer() *render.Renderer {
	return render.New(pretty)
}

// exitOnError prints err to stderr and exits non-zero.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
