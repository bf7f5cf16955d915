// Package shell provides interactive shell channels over SSH or a local
// pseudo-terminal, with non-blocking reads.
package shell

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Channel is an interactive byte stream to a shell on a terminal.
//
// A Channel is owned by a single goroutine. ReadNonBlocking never blocks: it
// returns (nil, nil) when nothing is pending. When the peer hangs up it marks
// the channel dead and returns (nil, nil); a genuine I/O failure is returned
// as an error and also marks the channel dead.
//
// Close is the exception to single ownership: it may be called from another
// goroutine, more than once, and makes a blocked Write return an error.
type Channel interface {
	Write(p []byte) error
	ReadNonBlocking() ([]byte, error)
	Resize(cols, rows int) error
	IsAlive() bool
	Close() error
}

// Size is a terminal size in cells.
type Size struct {
	Cols int
	Rows int
}

// Valid reports whether s can be sent to a PTY.
func (s Size) Valid() bool {
	return s.Cols > 0 && s.Rows > 0 && s.Cols <= 0xFFFF && s.Rows <= 0xFFFF
}

const (
	defaultReadBuffer = 32 * 1024
	pumpDepth         = 64
)

// pump turns a blocking reader into a queue of chunks. It owns the only
// goroutine that touches the reader.
type pump struct {
	data chan []byte
	quit chan struct{}
	once sync.Once
	err  error // written before data is closed
}

func startPump(r io.Reader, bufSize int) *pump {
	if bufSize <= 0 {
		bufSize = defaultReadBuffer
	}
	p := &pump{data: make(chan []byte, pumpDepth), quit: make(chan struct{})}
	go p.run(r, bufSize)
	return p
}

func (p *pump) run(r io.Reader, bufSize int) {
	defer close(p.data)
	buf := make([]byte, bufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.data <- chunk:
			case <-p.quit:
				return
			}
		}
		if err != nil {
			if IsTemporary(err) {
				continue
			}
			p.err = err
			return
		}
	}
}

func (p *pump) stop() {
	p.once.Do(func() { close(p.quit) })
}

// stream implements the shared half of Channel over a reader and writer.
type stream struct {
	wmu   sync.Mutex
	w     io.Writer
	pump  *pump
	alive atomic.Bool
	ended bool // pump observed closed; touched only by the reading goroutine
}

func newStream(r io.Reader, w io.Writer, bufSize int) *stream {
	s := &stream{w: w, pump: startPump(r, bufSize)}
	s.alive.Store(true)
	return s
}

// Write sends p in full. Any failure kills the channel.
func (s *stream) Write(p []byte) error {
	if !s.alive.Load() {
		return ErrChannelClosed
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for len(p) > 0 {
		n, err := s.w.Write(p)
		if err != nil {
			s.alive.Store(false)
			return fmt.Errorf("shell: write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// ReadNonBlocking returns the next pending chunk, if any. Chunks already
// queued are still returned after a write failure.
func (s *stream) ReadNonBlocking() ([]byte, error) {
	if s.ended {
		return nil, nil
	}
	select {
	case chunk, ok := <-s.pump.data:
		if ok {
			return chunk, nil
		}
		s.ended = true
		s.alive.Store(false)
		if err := s.pump.err; err != nil && !isHangup(err) {
			return nil, fmt.Errorf("shell: read: %w", err)
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// IsAlive reports whether the channel can still carry data.
func (s *stream) IsAlive() bool {
	return s.alive.Load()
}

// shutdown marks the channel dead and releases the pump goroutine once the
// underlying reader has been closed.
func (s *stream) shutdown() {
	s.alive.Store(false)
	s.pump.stop()
}
