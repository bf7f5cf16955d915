package shell

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// reader is the read half of a Channel.
type reader interface {
	ReadNonBlocking() ([]byte, error)
}

// readUntil polls ch until the accumulated output contains want.
func readUntil(t *testing.T, ch reader, want string, timeout time.Duration) string {
	t.Helper()
	var got bytes.Buffer
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := ch.ReadNonBlocking()
		if err != nil {
			t.Fatalf("ReadNonBlocking() error = %v (output so far %q)", err, got.String())
		}
		got.Write(data)
		if strings.Contains(got.String(), want) {
			return got.String()
		}
		if len(data) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("timed out waiting for %q, got %q", want, got.String())
	return ""
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, unix.EPIPE }

func TestStream_ReadNonBlockingEmpty(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := newStream(r, io.Discard, 0)

	start := time.Now()
	data, err := s.ReadNonBlocking()
	if err != nil || len(data) != 0 {
		t.Fatalf("ReadNonBlocking() = %q, %v; want empty", data, err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("ReadNonBlocking blocked for %v", time.Since(start))
	}
	if !s.IsAlive() {
		t.Error("channel should be alive")
	}
}

func TestStream_DeliversInOrderThenHangsUp(t *testing.T) {
	r, w := io.Pipe()
	s := newStream(r, io.Discard, 0)

	go func() {
		_, _ = w.Write([]byte("one "))
		_, _ = w.Write([]byte("two"))
		w.Close()
	}()

	out := readUntil(t, s, "one two", 2*time.Second)
	if out != "one two" {
		t.Errorf("output = %q", out)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.IsAlive() && time.Now().Before(deadline) {
		if _, err := s.ReadNonBlocking(); err != nil {
			t.Fatalf("hangup should not be an error, got %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if s.IsAlive() {
		t.Fatal("channel still alive after EOF")
	}
}

func TestStream_ReadFailureIsReported(t *testing.T) {
	r, w := io.Pipe()
	s := newStream(r, io.Discard, 0)
	boom := errors.New("boom")
	w.CloseWithError(boom)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err := s.ReadNonBlocking()
		if err != nil {
			if !errors.Is(err, boom) {
				t.Errorf("error = %v, want boom", err)
			}
			if s.IsAlive() {
				t.Error("channel alive after read failure")
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("read failure never surfaced")
}

func TestStream_WriteFailureKillsChannel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := newStream(r, failWriter{}, 0)

	if err := s.Write([]byte("x")); !errors.Is(err, unix.EPIPE) {
		t.Fatalf("Write() = %v, want EPIPE", err)
	}
	if s.IsAlive() {
		t.Error("IsAlive() should be false after a failed write")
	}
	if err := s.Write([]byte("y")); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("second Write() = %v, want ErrChannelClosed", err)
	}
}

func TestStream_ShutdownReleasesPump(t *testing.T) {
	r, w := io.Pipe()
	s := newStream(r, io.Discard, 0)

	// Fill the queue so the pump blocks on send.
	go func() {
		for i := 0; i < pumpDepth+8; i++ {
			if _, err := w.Write([]byte("x")); err != nil {
				return
			}
		}
	}()
	time.Sleep(20 * time.Millisecond)
	s.shutdown()
	w.Close()
	if s.IsAlive() {
		t.Error("alive after shutdown")
	}
}

func TestIsFatal(t *testing.T) {
	fatal := []error{io.EOF, io.ErrClosedPipe, os.ErrClosed, unix.EPIPE, unix.ECONNRESET, unix.EIO, ErrChannelClosed}
	for _, err := range fatal {
		if !IsFatal(err) {
			t.Errorf("IsFatal(%v) = false", err)
		}
	}
	for _, err := range []error{nil, unix.EAGAIN, errors.New("other")} {
		if IsFatal(err) {
			t.Errorf("IsFatal(%v) = true", err)
		}
	}
}

func TestIsTemporary(t *testing.T) {
	for _, err := range []error{unix.EAGAIN, unix.EINTR, os.ErrDeadlineExceeded} {
		if !IsTemporary(err) {
			t.Errorf("IsTemporary(%v) = false", err)
		}
	}
	if IsTemporary(io.EOF) {
		t.Error("EOF is not temporary")
	}
}

func TestSize_Valid(t *testing.T) {
	tests := []struct {
		s    Size
		want bool
	}{
		{Size{80, 24}, true},
		{Size{0, 24}, false},
		{Size{80, -1}, false},
		{Size{70000, 24}, false},
	}
	for _, tt := range tests {
		if got := tt.s.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.s, got, tt.want)
		}
	}
}
