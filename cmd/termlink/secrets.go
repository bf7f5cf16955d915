package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/session"
	"github.com/dshills/termlink/internal/shell"
	"github.com/dshills/termlink/internal/transport"
)

// promptSecret reads a line without echo when stdin is a terminal.
func (a *app) promptSecret(prompt string) (string, error) {
	fmt.Fprint(a.errOut, prompt)
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// resolveTarget finds arg in the book, or parses it as user@host[:port].
func (a *app) resolveTarget(arg string) (config.ConnectionConfig, error) {
	cfg, err := a.currentBook().Lookup(arg)
	if err == nil {
		return cfg, nil
	}
	if strings.Contains(arg, "@") {
		return config.ParseTarget(arg)
	}
	return config.ConnectionConfig{}, err
}

// open creates a session, prompting for a password the book omits and for
// a key passphrase when the key turns out to be encrypted.
func (a *app) open(ctx context.Context, reg *session.Registry, id string, cfg config.ConnectionConfig, size shell.Size) error {
	if cfg.Kind() == config.TransportSSH && cfg.Auth == config.AuthPassword && cfg.Password == "" {
		pw, err := a.readSecret(fmt.Sprintf("%s@%s's password: ", cfg.Username, cfg.Host))
		if err != nil {
			return err
		}
		cfg.Password = pw
	}

	err := reg.CreateWithSize(ctx, id, cfg, size)
	if errors.Is(err, transport.ErrPassphraseRequired) && cfg.Passphrase == "" {
		pass, perr := a.readSecret(fmt.Sprintf("Enter passphrase for key '%s': ", cfg.KeyFile))
		if perr != nil {
			return perr
		}
		cfg.Passphrase = pass
		err = reg.CreateWithSize(ctx, id, cfg, size)
	}
	return err
}
