package shell

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Options describe the terminal requested for a shell.
type Options struct {
	Term string // e.g. "xterm-256color"
	Size Size
	// Command replaces the login shell when set.
	Command    string
	ReadBuffer int
}

func (o Options) withDefaults() Options {
	if o.Term == "" {
		o.Term = "xterm-256color"
	}
	if o.Size.Cols <= 0 {
		o.Size.Cols = 80
	}
	if o.Size.Rows <= 0 {
		o.Size.Rows = 24
	}
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = defaultReadBuffer
	}
	return o
}

// SSHChannel is a shell on a remote PTY. It owns the SSH client.
type SSHChannel struct {
	*stream
	client  *ssh.Client
	session *ssh.Session

	closeOnce sync.Once
	closeErr  error
}

// OpenSSH requests a PTY on client and starts a shell. On failure the
// client is closed.
func OpenSSH(client *ssh.Client, opts Options) (*SSHChannel, error) {
	opts = opts.withDefaults()
	if !opts.Size.Valid() {
		client.Close()
		return nil, ErrInvalidSize
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("shell: new session: %w", err)
	}
	fail := func(step string, err error) (*SSHChannel, error) {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("shell: %s: %w", step, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty(opts.Term, opts.Size.Rows, opts.Size.Cols, modes); err != nil {
		return fail("request pty", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		return fail("stdin pipe", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return fail("stdout pipe", err)
	}
	if opts.Command != "" {
		err = sess.Start(opts.Command)
	} else {
		err = sess.Shell()
	}
	if err != nil {
		return fail("start shell", err)
	}

	return &SSHChannel{
		stream:  newStream(stdout, stdin, opts.ReadBuffer),
		client:  client,
		session: sess,
	}, nil
}

// Resize sends a window-change request.
func (c *SSHChannel) Resize(cols, rows int) error {
	if !(Size{Cols: cols, Rows: rows}).Valid() {
		return ErrInvalidSize
	}
	if !c.IsAlive() {
		return ErrChannelClosed
	}
	if err := c.session.WindowChange(rows, cols); err != nil {
		return fmt.Errorf("shell: window change: %w", err)
	}
	return nil
}

// Close ends the session and the connection.
func (c *SSHChannel) Close() error {
	c.closeOnce.Do(func() {
		c.shutdown()
		_ = c.session.Close()
		c.closeErr = c.client.Close()
	})
	return c.closeErr
}

var _ Channel = (*SSHChannel)(nil)
