package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/termlink/internal/emulator"
	"github.com/dshills/termlink/internal/extract"
	"github.com/dshills/termlink/internal/keys"
	"github.com/dshills/termlink/internal/session"
	"github.com/dshills/termlink/internal/shell"
)

const collectPoll = 20 * time.Millisecond

type runOptions struct {
	wait    time.Duration
	timeout time.Duration
	raw     bool
	json    bool
	cols    int
	rows    int
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <name|user@host[:port]> <command>",
		Short: "Run one command and print the rendered screen",
		Long: `run opens a session, types the command followed by Enter, waits until the
output goes quiet, and prints the emulated screen as plain text.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.raw && opts.json {
				return errors.New("--raw and --json are mutually exclusive")
			}
			return a.run(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.wait, "wait", 500*time.Millisecond, "quiet period that ends output collection")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall time limit")
	f.BoolVar(&opts.raw, "raw", false, "print the raw output bytes instead of the rendered screen")
	f.BoolVar(&opts.json, "json", false, "print the rendered frame as JSON")
	f.IntVar(&opts.cols, "cols", 0, "terminal width (default: this terminal or the book setting)")
	f.IntVar(&opts.rows, "rows", 0, "terminal height (default: this terminal or the book setting)")
	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, target, command string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := a.resolveTarget(target)
	if err != nil {
		return err
	}
	cols, rows := a.termSize()
	if opts.cols > 0 {
		cols = opts.cols
	}
	if opts.rows > 0 {
		rows = opts.rows
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	reg := a.newRegistry()
	defer func() {
		if err := reg.Shutdown(shutdownTimeout); err != nil {
			a.log.Warn("shutdown", "error", err)
		}
	}()

	id := uuid.NewString()
	if err := a.open(ctx, reg, id, cfg, shell.Size{Cols: cols, Rows: rows}); err != nil {
		return err
	}
	log := a.log.WithSession(id)

	var output []byte
	banner, err := collect(ctx, reg, id, opts.wait)
	output = append(output, banner...)
	if err == nil {
		log.Debug("banner collected", "bytes", len(banner))
		if err = reg.Write(id, keys.Line(command)); err == nil {
			var result []byte
			result, err = collect(ctx, reg, id, opts.wait)
			output = append(output, result...)
			log.Debug("output collected", "bytes", len(result))
		}
	}
	if errors.Is(err, session.ErrSessionClosed) {
		err = nil
	}
	if err != nil {
		return err
	}

	if opts.raw {
		_, err := out.Write(output)
		return err
	}

	settings := a.currentBook().Settings
	emu := emulator.New(cols, rows, emulator.WithNoise(settings.PromptNoise...))
	frame := emu.Feed(output)
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newFrameJSON(cfg.DisplayName(), frame))
	}
	_, err = fmt.Fprintln(out, frame.Text())
	return err
}

// collect reads output until none has arrived for quiet. A deadline on ctx
// ends collection with the error; a closed session ends it with
// ErrSessionClosed after the remaining output.
func collect(ctx context.Context, reg *session.Registry, id string, quiet time.Duration) ([]byte, error) {
	var buf []byte
	last := time.Now()
	ticker := time.NewTicker(collectPoll)
	defer ticker.Stop()
	for {
		data, err := reg.ReadOutput(id)
		if len(data) > 0 {
			buf = append(buf, data...)
			last = time.Now()
		}
		if err != nil {
			return buf, err
		}
		if time.Since(last) >= quiet {
			return buf, nil
		}
		select {
		case <-ctx.Done():
			return buf, fmt.Errorf("waiting for output: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

type frameJSON struct {
	Target        string     `json:"target"`
	Cols          int        `json:"cols"`
	Rows          int        `json:"rows"`
	Cursor        cursorJSON `json:"cursor"`
	CursorVisible bool       `json:"cursor_visible"`
	Prompt        string     `json:"prompt,omitempty"`
	Lines         []lineJSON `json:"lines"`
}

type cursorJSON struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type lineJSON struct {
	Text     string        `json:"text"`
	Wrapped  bool          `json:"wrapped,omitempty"`
	Segments []segmentJSON `json:"segments"`
}

type segmentJSON struct {
	Text      string `json:"text"`
	Fg        string `json:"fg,omitempty"`
	Bg        string `json:"bg,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Inverse   bool   `json:"inverse,omitempty"`
}

func newFrameJSON(target string, f extract.FrameResult) frameJSON {
	out := frameJSON{
		Target:        target,
		Cols:          f.Cols,
		Rows:          f.Rows,
		Cursor:        cursorJSON{Row: f.Cursor.Row, Col: f.Cursor.Col},
		CursorVisible: f.CursorVisible,
		Prompt:        f.Prompt,
		Lines:         make([]lineJSON, 0, len(f.Lines)),
	}
	for _, l := range f.Lines {
		line := lineJSON{Text: l.Text(), Wrapped: l.Wrapped, Segments: make([]segmentJSON, 0, len(l.Segments))}
		for _, s := range l.Segments {
			fg, bg := s.Hex()
			line.Segments = append(line.Segments, segmentJSON{
				Text:      s.Text,
				Fg:        fg,
				Bg:        bg,
				Bold:      s.Bold(),
				Italic:    s.Italic(),
				Underline: s.Underline(),
				Inverse:   s.Inverse(),
			})
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}
