// Command llmls-repl runs one llmls command outside an editor. It reads the
// selection from a file or stdin, streams the model output to stdout and
// reports where the cursor would end up.
//
// Usage:
//
//	./llmls-repl main.py                      # autocomplete
//	./llmls-repl -instruct -lang go < sel.go   # instruct
//	./llmls-repl -record runs.toml sel.py      # append a TOML record
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	llmls "github.com/Paranoid-AF/llmls"
	"github.com/Paranoid-AF/llmls/generate"
)

func main() {
	instruct := flag.Bool("instruct", false, "run the instruct command instead of autocomplete")
	lang := flag.String("lang", "", "language id passed to the prompt")
	record := flag.String("record", "", "append a TOML record of the run to this file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	text, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	req := &llmls.Request{Kind: llmls.KindComplete, Text: text, LanguageID: *lang}
	if *instruct {
		req.Kind = llmls.KindInstruct
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine := generate.NewEngine()
	defer engine.Close()

	status := newStatus(os.Stderr)
	result, runErr := streamTo(ctx, engine, req, os.Stdout)
	status.report(result, runErr)

	if *record != "" {
		rec := newRecord(req, engine.Messages(req), result, runErr)
		if err := appendRecord(*record, rec); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// readInput reads path, or stdin when path is "" or "-".
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
