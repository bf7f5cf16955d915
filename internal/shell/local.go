package shell

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// LocalChannel is a shell process on a local PTY.
type LocalChannel struct {
	*stream
	cmd  *exec.Cmd
	ptmx *os.File

	exited    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// ResolveShell picks shell, then $SHELL, then /bin/sh.
func ResolveShell(shell string) (string, error) {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	path, err := exec.LookPath(shell)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrShellNotFound, shell)
	}
	return path, nil
}

// StartLocal starts opts.Command (or the user's shell) on a new PTY.
func StartLocal(opts Options, args ...string) (*LocalChannel, error) {
	opts = opts.withDefaults()
	if !opts.Size.Valid() {
		return nil, ErrInvalidSize
	}
	path, err := ResolveShell(opts.Command)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), "TERM="+opts.Term)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Size.Rows),
		Cols: uint16(opts.Size.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("shell: start pty: %w", err)
	}

	c := &LocalChannel{
		stream: newStream(ptmx, ptmx, opts.ReadBuffer),
		cmd:    cmd,
		ptmx:   ptmx,
		exited: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(c.exited)
	}()
	return c, nil
}

// Resize sets the PTY window size; the child receives SIGWINCH.
func (c *LocalChannel) Resize(cols, rows int) error {
	if !(Size{Cols: cols, Rows: rows}).Valid() {
		return ErrInvalidSize
	}
	if !c.IsAlive() {
		return ErrChannelClosed
	}
	if err := pty.Setsize(c.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("shell: setsize: %w", err)
	}
	return nil
}

// Pid returns the shell's process id.
func (c *LocalChannel) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Exited is closed when the shell process has been reaped.
func (c *LocalChannel) Exited() <-chan struct{} {
	return c.exited
}

// ExitCode returns the exit status, or -1 while running.
func (c *LocalChannel) ExitCode() int {
	select {
	case <-c.exited:
		return c.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Close kills the process and releases the PTY.
func (c *LocalChannel) Close() error {
	c.closeOnce.Do(func() {
		c.shutdown()
		select {
		case <-c.exited:
		default:
			if c.cmd.Process != nil {
				_ = c.cmd.Process.Kill()
			}
		}
		c.closeErr = c.ptmx.Close()
		select {
		case <-c.exited:
		case <-time.After(2 * time.Second):
		}
	})
	return c.closeErr
}

var _ Channel = (*LocalChannel)(nil)
