// Command assignbot picks the next issue for a bot account and assigns it.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logFormat  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "assignbot",
	Short: "assignbot - assign the next issue to a bot account",
	Long: `Selects the next issue a bot account should work on and assigns it.

Issues are searched by label priority, oldest first. Issues that are already
assigned, track sub-issues, or carry a skip label are passed over. When the bot
has been closing ordinary work for a while, a refactor issue is assigned or
created instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .github/assignbot.yml if present)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// newLogger builds the process logger. Logs go to w so stdout stays free for output.
func newLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
