package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/config/watcher"
	"github.com/dshills/termlink/internal/emulator"
	"github.com/dshills/termlink/internal/session"
	"github.com/dshills/termlink/internal/shell"
	"github.com/dshills/termlink/internal/view"
)

func newConnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <name|user@host[:port]>",
		Short: "Open an interactive SSH session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.resolveTarget(args[0])
			if err != nil {
				return err
			}
			return a.interactive(cmd.Context(), cfg)
		},
	}
}

func newLocalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "local [shell]",
		Short: "Open an interactive session on a local pseudo-terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.ConnectionConfig{Name: "local", Transport: config.TransportLocal}
			if len(args) == 1 {
				cfg.Shell = args[0]
			}
			return a.interactive(cmd.Context(), cfg)
		},
	}
}

// interactive connects cfg and shows it full screen until the user detaches.
// The session is opened before the screen is taken over so password prompts
// reach the real terminal.
func (a *app) interactive(ctx context.Context, cfg config.ConnectionConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	cols, rows := a.termSize()
	if rows > 1 {
		rows-- // status line
	}

	a.quiet()
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

	r, err := view.NewTerminal()
	if err != nil {
		return fmt.Errorf("opening terminal: %w", err)
	}
	defer r.Close()
	return a.attach(ctx, reg, id, cfg.DisplayName(), r)
}

// attach shows an open session on r until the user detaches or the session
// ends.
func (a *app) attach(ctx context.Context, reg *session.Registry, id, target string, r *view.Renderer) error {
	r.SetStatus(" " + target)
	cols, rows := r.ContentSize()
	if cols < 1 || rows < 1 {
		return fmt.Errorf("terminal too small: %dx%d", cols, rows)
	}
	if err := reg.Resize(id, cols, rows); err != nil && !errors.Is(err, session.ErrSessionClosed) {
		return err
	}

	settings := a.currentBook().Settings
	emu := emulator.New(cols, rows,
		emulator.WithScrollback(settings.Scrollback),
		emulator.WithNoise(settings.PromptNoise...),
	)
	v := newViewer(reg, id, target, emu, r, a.log)

	if w, err := a.watchBook(ctx, v); err != nil {
		a.log.Debug("config watch disabled", "error", err)
	} else {
		defer w.Close()
	}

	err := v.run(ctx)
	if derr := reg.Disconnect(id); derr != nil {
		a.log.Debug("disconnect", "error", derr)
	}
	return err
}

// termSize returns the size of stdout when it is a terminal, or the book's
// default size.
func (a *app) termSize() (cols, rows int) {
	if f, ok := a.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	s := a.currentBook().Settings
	return s.Cols, s.Rows
}

// watchBook reloads the connection book while a session is shown. The open
// session keeps its settings; the reload affects the next command.
func (a *app) watchBook(ctx context.Context, v *viewer) (*watcher.Watcher, error) {
	w, err := watcher.New(a.configPath)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(ev watcher.Event) {
		book, err := config.Load(a.configPath)
		if err != nil {
			a.log.Warn("reload failed", "path", ev.Path, "error", err)
			v.setNotice("config error")
			return
		}
		a.setBook(book)
		a.log.Info("connection book reloaded", "path", ev.Path, "op", ev.Op.String())
		v.setNotice("config reloaded")
	})
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Debug("config watcher stopped", "error", err)
		}
	}()
	return w, nil
}
