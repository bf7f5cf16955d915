package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"
)

// TransportError reports that the server could not be reached: name
// resolution, refused or timed out connections, unreachable networks.
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: cannot reach %s: %v", e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Hint returns guidance for the user.
func (e *TransportError) Hint() string {
	return "check the host name, port and any firewall between you and the server"
}

// HandshakeError reports that a connection was made but the SSH protocol
// exchange failed before authentication.
type HandshakeError struct {
	Addr string
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("transport: ssh handshake with %s failed: %v", e.Addr, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Hint returns guidance for the user.
func (e *HandshakeError) Hint() string {
	return "the server does not speak a compatible SSH protocol; check the port and server algorithms"
}

// AuthError reports rejected or unusable credentials.
type AuthError struct {
	Addr string
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("transport: authentication as %q to %s failed: %v", e.User, e.Addr, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Hint returns guidance for the user.
func (e *AuthError) Hint() string {
	return "check the username and password, or the key file and passphrase"
}

// Hint returns the guidance attached to a connect error, or "".
func Hint(err error) string {
	var h interface{ Hint() string }
	if errors.As(err, &h) {
		return h.Hint()
	}
	return ""
}

// Classify maps a raw error from dialing or the SSH client handshake onto
// TransportError, HandshakeError or AuthError. Errors that are already
// classified are returned unchanged.
func Classify(addr, user string, err error) error {
	if err == nil {
		return nil
	}

	var (
		te *TransportError
		he *HandshakeError
		ae *AuthError
	)
	if errors.As(err, &te) || errors.As(err, &he) || errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Addr: addr, Err: err}
	}

	var pme *ssh.PassphraseMissingError
	if errors.As(err, &pme) {
		return &AuthError{Addr: addr, User: user, Err: err}
	}

	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain") {
		return &AuthError{Addr: addr, User: user, Err: err}
	}

	var (
		dnsErr *net.DNSError
		opErr  *net.OpError
	)
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return &TransportError{Addr: addr, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Addr: addr, Err: err}
	}

	return &HandshakeError{Addr: addr, Err: err}
}
