// Package config describes connection targets and engine settings and loads
// them from a connection book.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// AuthMode selects how credentials are presented to the server.
type AuthMode string

const (
	AuthPassword  AuthMode = "password"
	AuthPublicKey AuthMode = "publickey"
)

// TransportKind selects the channel behind a session.
type TransportKind string

const (
	TransportSSH   TransportKind = "ssh"
	TransportLocal TransportKind = "local"
)

// DefaultSSHPort is used when a connection omits the port.
const DefaultSSHPort = 22

// ConnectionConfig describes one target. It is treated as immutable once a
// session starts; sessions keep their own copy.
type ConnectionConfig struct {
	Name        string
	Host        string
	Port        uint16
	Username    string
	Auth        AuthMode
	Password    string
	KeyFile     string
	Passphrase  string
	Description string
	Transport   TransportKind
	// Shell overrides the login shell. For ssh it is run as the remote
	// command; for local it is the program started on the PTY.
	Shell string
}

// Addr returns host:port.
func (c ConnectionConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(int(port)))
}

// Kind returns the transport, defaulting to ssh.
func (c ConnectionConfig) Kind() TransportKind {
	if c.Transport == "" {
		return TransportSSH
	}
	return c.Transport
}

// DisplayName returns Name, or user@host when Name is empty.
func (c ConnectionConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Kind() == TransportLocal {
		return "local"
	}
	if c.Username == "" {
		return c.Host
	}
	return c.Username + "@" + c.Host
}

// String describes the target without secrets.
func (c ConnectionConfig) String() string {
	if c.Kind() == TransportLocal {
		return fmt.Sprintf("%s (local)", c.DisplayName())
	}
	return fmt.Sprintf("%s (%s@%s, %s)", c.DisplayName(), c.Username, c.Addr(), c.Auth)
}

// Validate checks that the config can be used to open a session.
func (c ConnectionConfig) Validate() error {
	switch c.Kind() {
	case TransportLocal:
		return nil
	case TransportSSH:
	default:
		return invalid("transport", "must be ssh or local", c.Transport)
	}

	if strings.TrimSpace(c.Host) == "" {
		return invalid("host", "is required", nil)
	}
	if c.Username == "" {
		return invalid("username", "is required", nil)
	}
	switch c.Auth {
	case AuthPassword:
	case AuthPublicKey:
		if c.KeyFile == "" {
			return invalid("key_file", "is required for publickey auth", nil)
		}
	default:
		return invalid("auth", "must be password or publickey", c.Auth)
	}
	return nil
}

// ParseTarget parses "user@host[:port]" into a password-auth ssh config.
func ParseTarget(target string) (ConnectionConfig, error) {
	user, hostport, ok := strings.Cut(target, "@")
	if !ok || user == "" || hostport == "" {
		return ConnectionConfig{}, invalid("target", "must look like user@host[:port]", target)
	}

	cfg := ConnectionConfig{
		Username:  user,
		Host:      hostport,
		Port:      DefaultSSHPort,
		Auth:      AuthPassword,
		Transport: TransportSSH,
	}
	if host, port, err := net.SplitHostPort(hostport); err == nil {
		p, err := strconv.ParseUint(port, 10, 16)
		if err != nil || p == 0 {
			return ConnectionConfig{}, invalid("target", "invalid port", port)
		}
		cfg.Host = host
		cfg.Port = uint16(p)
	}
	return cfg, nil
}
