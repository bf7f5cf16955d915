package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/termlink/internal/emulator"
	"github.com/dshills/termlink/internal/keys"
	"github.com/dshills/termlink/internal/logging"
	"github.com/dshills/termlink/internal/session"
	"github.com/dshills/termlink/internal/view"
)

// detachByte is Ctrl-], which leaves the viewer instead of reaching the shell.
const detachByte = 0x1d

const defaultPoll = 10 * time.Millisecond

// viewer connects a session to a tcell screen: output is fed through the
// emulator and drawn, key events are encoded and executed.
type viewer struct {
	reg    *session.Registry
	id     string
	target string
	emu    *emulator.Emulator
	view   *view.Renderer
	log    *logging.Logger
	poll   time.Duration

	mu     sync.Mutex
	notice string

	pasting bool
	paste   strings.Builder
}

func newViewer(reg *session.Registry, id, target string, emu *emulator.Emulator, r *view.Renderer, log *logging.Logger) *viewer {
	return &viewer{
		reg:    reg,
		id:     id,
		target: target,
		emu:    emu,
		view:   r,
		log:    log,
		poll:   defaultPoll,
	}
}

// setNotice shows a message in the status line until the next one.
func (v *viewer) setNotice(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notice = msg
}

func (v *viewer) statusLine() string {
	v.mu.Lock()
	notice := v.notice
	v.mu.Unlock()

	parts := []string{" " + v.target}
	if title := v.emu.Title(); title != "" {
		parts = append(parts, title)
	}
	if notice != "" {
		parts = append(parts, notice)
	}
	parts = append(parts, "Ctrl-] quit")
	return strings.Join(parts, " | ")
}

func (v *viewer) draw() {
	v.view.SetStatus(v.statusLine())
	v.view.Draw(v.emu.Frame())
	v.view.Bell(v.emu.Bells())
}

// run blocks until the user detaches, the session ends or ctx is done.
func (v *viewer) run(ctx context.Context) error {
	screen := v.view.Screen()
	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(v.poll)
	defer ticker.Stop()

	v.draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			done, err := v.handle(ev)
			if err != nil || done {
				return err
			}

		case <-ticker.C:
			data, err := v.reg.ReadOutput(v.id)
			if len(data) > 0 {
				v.emu.Feed(data)
				v.draw()
			}
			if errors.Is(err, session.ErrSessionClosed) {
				v.log.Info("session ended", "session", v.id)
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// handle processes one terminal event. It reports true when the viewer
// should exit.
func (v *viewer) handle(ev tcell.Event) (bool, error) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		b := keys.Encode(e, v.emu.Modes())
		if len(b) == 1 && b[0] == detachByte {
			return true, nil
		}
		if v.pasting {
			if e.Key() == tcell.KeyRune {
				v.paste.WriteRune(e.Rune())
			} else if len(b) > 0 {
				v.paste.Write(b)
			}
			return false, nil
		}
		if len(b) == 0 {
			return false, nil
		}
		return false, v.send(b)

	case *tcell.EventPaste:
		if e.Start() {
			v.pasting = true
			v.paste.Reset()
			return false, nil
		}
		v.pasting = false
		return false, v.send(keys.Paste(v.paste.String(), v.emu.Modes().BracketedPaste))

	case *tcell.EventResize:
		v.resize()
	}
	return false, nil
}

func (v *viewer) send(b []byte) error {
	err := v.reg.Write(v.id, b)
	if errors.Is(err, session.ErrQueueFull) {
		v.setNotice("input dropped: session busy")
		v.draw()
		return nil
	}
	if errors.Is(err, session.ErrSessionClosed) {
		return nil
	}
	return err
}

func (v *viewer) resize() {
	cols, rows := v.view.ContentSize()
	if cols < 1 || rows < 1 {
		return
	}
	if c, r := v.emu.Size(); c == cols && r == rows {
		v.view.Screen().Sync()
		v.draw()
		return
	}
	v.emu.Resize(cols, rows)
	if err := v.reg.Resize(v.id, cols, rows); err != nil {
		v.log.Warn("resize failed", "session", v.id, "error", err)
		v.setNotice(fmt.Sprintf("resize failed: %v", err))
	}
	v.view.Screen().Sync()
	v.draw()
}
