package session

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/shell"
)

// fakeChannel records writes and serves queued reads.
type fakeChannel struct {
	mu       sync.Mutex
	writes   [][]byte
	resizes  []shell.Size
	writeErr error
	readErr  error

	reads  chan []byte
	alive  atomic.Bool
	closed atomic.Bool
}

func newFakeChannel() *fakeChannel {
	f := &fakeChannel{reads: make(chan []byte, 64)}
	f.alive.Store(true)
	return f
}

func (f *fakeChannel) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		f.alive.Store(false)
		return f.writeErr
	}
	if !f.alive.Load() {
		return shell.ErrChannelClosed
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeChannel) ReadNonBlocking() ([]byte, error) {
	select {
	case b := <-f.reads:
		return b, nil
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr; err != nil {
		f.readErr = nil
		f.alive.Store(false)
		return nil, err
	}
	return nil, nil
}

func (f *fakeChannel) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, shell.Size{Cols: cols, Rows: rows})
	return nil
}

func (f *fakeChannel) IsAlive() bool { return f.alive.Load() }

func (f *fakeChannel) Close() error {
	f.closed.Store(true)
	f.alive.Store(false)
	return nil
}

// hangup simulates the peer closing after any queued output.
func (f *fakeChannel) hangup() { f.alive.Store(false) }

func (f *fakeChannel) failWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeChannel) written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bytes.Join(f.writes, nil)
}

func (f *fakeChannel) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeChannel) resizeLog() []shell.Size {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shell.Size(nil), f.resizes...)
}

// fakeOpener hands out fake channels and remembers them by host.
type fakeOpener struct {
	mu       sync.Mutex
	channels []*fakeChannel
	err      error
	gate     chan struct{} // when set, Open waits for it
}

func (o *fakeOpener) Open(ctx context.Context, cfg config.ConnectionConfig, size shell.Size) (shell.Channel, error) {
	if o.gate != nil {
		select {
		case <-o.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	ch := newFakeChannel()
	o.channels = append(o.channels, ch)
	return ch, nil
}

func (o *fakeOpener) last() *fakeChannel {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.channels) == 0 {
		return nil
	}
	return o.channels[len(o.channels)-1]
}

type eventLog struct {
	mu     sync.Mutex
	events []string
	ids    map[string]bool
}

func (l *eventLog) Publish(eventType string, data map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, eventType+":"+data["id"].(string))
	if l.ids == nil {
		l.ids = make(map[string]bool)
	}
	if id, ok := data["event_id"].(string); ok {
		l.ids[id] = true
	}
}

func (l *eventLog) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == entry {
			return true
		}
	}
	return false
}

// stuckChannel blocks every Write, like an SSH channel whose peer window is
// full. Close unblocks it unless holdAfterClose is set, in which case only
// release does.
type stuckChannel struct {
	writing     chan struct{}
	writingOnce sync.Once
	closed      chan struct{}
	closeOnce   sync.Once
	release     chan struct{}

	holdAfterClose bool
}

func newStuckChannel() *stuckChannel {
	return &stuckChannel{
		writing: make(chan struct{}),
		closed:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *stuckChannel) Write(p []byte) error {
	c.writingOnce.Do(func() { close(c.writing) })
	if c.holdAfterClose {
		<-c.release
	} else {
		select {
		case <-c.closed:
		case <-c.release:
		}
	}
	return shell.ErrChannelClosed
}

func (c *stuckChannel) ReadNonBlocking() ([]byte, error) { return nil, nil }
func (c *stuckChannel) Resize(cols, rows int) error      { return nil }

func (c *stuckChannel) IsAlive() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *stuckChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *stuckChannel) isClosed() bool { return !c.IsAlive() }
