package shell

import (
	"errors"
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

var (
	// ErrChannelClosed is returned by Write and Resize on a dead channel.
	ErrChannelClosed = errors.New("shell channel is closed")

	// ErrInvalidSize is returned for non-positive or oversized dimensions.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrShellNotFound is returned when a local shell cannot be located.
	ErrShellNotFound = errors.New("shell not found")
)

// IsFatal reports whether err means the channel can no longer carry data.
// EIO is what a PTY master returns once the child side is gone.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, os.ErrClosed),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, ErrChannelClosed),
		errors.Is(err, unix.EPIPE),
		errors.Is(err, unix.ECONNRESET),
		errors.Is(err, unix.EIO),
		errors.Is(err, unix.EBADF):
		return true
	}
	return false
}

// IsTemporary reports whether a read may simply be retried.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isHangup reports errors that mean the stream ended rather than failed:
// end of stream, EIO from a PTY whose child exited, or our own Close.
func isHangup(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, unix.EIO) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, net.ErrClosed)
}
