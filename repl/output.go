package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"golang.org/x/term"

	llmls "github.com/Paranoid-AF/llmls"
	"github.com/Paranoid-AF/llmls/cursor"
	"github.com/Paranoid-AF/llmls/generate"
	"github.com/Paranoid-AF/llmls/prompt"
)

type opener interface {
	Open(ctx context.Context, req *llmls.Request) (generate.Stream, error)
}

// result is what a run produced before it ended.
type result struct {
	Output string
	Chunks int
	End    cursor.Position
	Took   time.Duration
}

// streamTo writes each chunk to w as it arrives and tracks where an editor
// cursor starting at 0:0 would end up.
func streamTo(ctx context.Context, o opener, req *llmls.Request, w io.Writer) (*result, error) {
	res := &result{}
	start := time.Now()
	defer func() { res.Took = time.Since(start) }()

	stream, err := o.Open(ctx, req)
	if err != nil {
		return res, err
	}
	defer stream.Close()

	var out strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Output = out.String()
			return res, err
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			res.Output = out.String()
			return res, err
		}
		out.WriteString(chunk)
		res.End = cursor.Advance(chunk, res.End)
		res.Chunks++
	}
	res.Output = out.String()
	return res, nil
}

// status prints the end-of-run summary, colored when f is a terminal.
type status struct {
	w        io.Writer
	ok, fail *color.Color
	dim      *color.Color
}

func newStatus(f *os.File) *status {
	s := &status{
		w:    f,
		ok:   color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
	}
	if !term.IsTerminal(int(f.Fd())) {
		for _, c := range []*color.Color{s.ok, s.fail, s.dim} {
			c.DisableColor()
		}
	}
	return s
}

func (s *status) report(res *result, err error) {
	fmt.Fprintln(s.w)
	if err != nil {
		var lerr *llmls.Error
		if errors.As(err, &lerr) {
			s.fail.Fprintf(s.w, "error [%s]: %s\n", lerr.Code, lerr.Message)
		} else {
			s.fail.Fprintf(s.w, "error: %v\n", err)
		}
	}
	if res == nil {
		return
	}
	s.ok.Fprintf(s.w, "end: %d:%d", res.End.Line, res.End.Character)
	s.dim.Fprintf(s.w, "  (%d chunks, %s)\n", res.Chunks, res.Took.Round(time.Millisecond))
}

// record is one appended TOML entry.
type record struct {
	Timestamp time.Time        `toml:"timestamp"`
	Request   llmls.Request    `toml:"request"`
	Prompt    []prompt.Message `toml:"prompt"`
	Output    string           `toml:"output"`
	End       recordPosition   `toml:"end"`
	Error     string           `toml:"error,omitempty"`
}

type recordPosition struct {
	Line      uint32 `toml:"line"`
	Character uint32 `toml:"character"`
}

type recordFile struct {
	Runs []record `toml:"runs"`
}

func newRecord(req *llmls.Request, messages []prompt.Message, res *result, err error) record {
	rec := record{
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Request:   *req,
		Prompt:    messages,
	}
	if res != nil {
		rec.Output = res.Output
		rec.End = recordPosition{Line: res.End.Line, Character: res.End.Character}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// appendRecord appends rec to path as a [[runs]] table.
func appendRecord(path string, rec record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(recordFile{Runs: []record{rec}}); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	_, err = io.WriteString(f, "\n")
	return err
}
