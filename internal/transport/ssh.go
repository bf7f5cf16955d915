// Package transport dials SSH servers and authenticates, reporting failures
// as TransportError, HandshakeError or AuthError.
package transport

import (
	"context"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/logging"
)

// DefaultDialTimeout bounds the TCP connect and the SSH handshake.
const DefaultDialTimeout = 10 * time.Second

// Dialer opens authenticated SSH client connections.
type Dialer struct {
	// Timeout bounds the TCP connect and the handshake separately.
	Timeout time.Duration
	// HostKeyCallback verifies the server key. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback
	// ReadFile loads key files. Nil uses os.ReadFile.
	ReadFile func(string) ([]byte, error)
	Logger   *logging.Logger
}

// NewDialer returns a dialer using the settings' dial timeout.
func NewDialer(settings config.Settings, logger *logging.Logger) *Dialer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dialer{
		Timeout: settings.DialTimeout,
		Logger:  logger.WithComponent("transport"),
	}
}

// Connect dials cfg and authenticates. There are no retries. The caller owns
// the returned client.
func (d *Dialer) Connect(ctx context.Context, cfg config.ConnectionConfig) (*ssh.Client, error) {
	addr := cfg.Addr()
	log := d.logger().WithField("addr", addr).WithField("user", cfg.Username)

	auth, err := authMethods(cfg, d.ReadFile)
	if err != nil {
		return nil, &AuthError{Addr: addr, User: cfg.Username, Err: err}
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	hostKey := d.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec // host keys are not pinned by the connection book
	}
	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}

	log.Debug("dialing")
	nd := net.Dialer{Timeout: timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Warn("dial failed", "error", err)
		return nil, &TransportError{Addr: addr, Err: err}
	}

	// The handshake has no context support. Run it aside so cancellation
	// closes the socket and unblocks it.
	type result struct {
		c     ssh.Conn
		chans <-chan ssh.NewChannel
		reqs  <-chan *ssh.Request
		err   error
	}
	ch := make(chan result, 1)
	_ = conn.SetDeadline(time.Now().Add(timeout))
	go func() {
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
		ch <- result{c, chans, reqs, err}
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		<-ch
		return nil, &TransportError{Addr: addr, Err: ctx.Err()}
	case r := <-ch:
		if r.err != nil {
			conn.Close()
			cerr := Classify(addr, cfg.Username, r.err)
			log.Warn("handshake failed", "error", cerr)
			return nil, cerr
		}
		_ = conn.SetDeadline(time.Time{})
		log.Info("connected")
		return ssh.NewClient(r.c, r.chans, r.reqs), nil
	}
}

func (d *Dialer) logger() *logging.Logger {
	if d.Logger == nil {
		return logging.Nop()
	}
	return d.Logger
}

// Connect dials with a default Dialer built from settings.
func Connect(ctx context.Context, cfg config.ConnectionConfig, settings config.Settings, logger *logging.Logger) (*ssh.Client, error) {
	return NewDialer(settings, logger).Connect(ctx, cfg)
}
