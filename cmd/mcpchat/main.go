// Package main provides the mcpchat CLI entrypoint.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mcpchat",
		Short: "Chat with a language model that can call MCP tools",
		Long: `mcpchat: a tool-augmented chat client.

The tool host is spawned as a child process and spoken to over MCP on
stdio. Its tools are offered to the model, which may call them before
answering.

Usage modes:
  mcpchat              Start an interactive chat (same as 'mcpchat chat')
  mcpchat ask <query>  Answer a single query and exit
  mcpchat tools        List the tools of the configured host
  mcpchat serve        Serve the chat over WebSocket`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE:              runChat,
	}

	registerGlobalFlags(rootCmd)
	rootCmd.Flags().BoolVar(&approve, "approve", false, "Confirm every tool call before it runs")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		exitOnError(err)
	}
}
