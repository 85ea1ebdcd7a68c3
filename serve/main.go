// Command llmls is a language server that streams LLM completions into the
// document. It speaks LSP over stdio; logs go to stderr or a rotated file.
package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	glspserver "github.com/tliron/glsp/server"
	"gopkg.in/natefinch/lumberjack.v2"

	llmls "github.com/Paranoid-AF/llmls"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose bool
		logFile string
	)
	cmd := &cobra.Command{
		Use:          "llmls",
		Short:        "Language server that streams LLM completions into your editor",
		Version:      Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(verbose, logFile)
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log every request and edit")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file (rotated) instead of stderr")
	return cmd
}

func run(verbose bool, logFile string) error {
	cfg, err := llmls.LoadConfig()
	if err != nil {
		cfg = llmls.DefaultConfig()
	}

	level := parseLevel(cfg.Server.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logWriter(logFile), &slog.HandlerOptions{Level: level})))
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
	}

	glspVerbosity := 0
	if verbose {
		glspVerbosity = 2
	}
	commonlog.Configure(glspVerbosity, nil)

	slog.Info("starting", "version", Version, "config", llmls.ConfigPath())

	s := NewServer(defaultEngine)
	defer s.Close()

	if w, err := watchConfig(llmls.ConfigDir(), s.reloadEngine); err != nil {
		slog.Info("config hot reload disabled", "error", err)
	} else {
		defer w.Close()
	}

	return glspserver.NewServer(s.Handler(), serverName, verbose).RunStdio()
}

// logWriter never returns stdout: it carries the LSP stream.
func logWriter(path string) io.Writer {
	if path == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
