package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "kbagent",
	Short: "Knowledge-base agent: provisioner, HTTP facade and MCP tool bridge",
	Long: `kbagent provisions a Bedrock knowledge base, serves an AI agent over HTTP
and exposes the agent to MCP clients as tools.

Examples:
  kbagent provision --project acme
  kbagent serve
  kbagent bridge
  kbagent chat "What is in the knowledge base?" --mode explainer`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// setupLogging installs a stderr text handler as the default logger.
func setupLogging(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func printVersion() {
	fmt.Fprintf(os.Stderr, "kbagent version %s\n", version)
}
