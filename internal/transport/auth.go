package transport

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/dshills/termlink/internal/config"
)

// ErrPassphraseRequired is wrapped in an AuthError when an encrypted key
// has no passphrase configured.
var ErrPassphraseRequired = errors.New("key file is encrypted and no passphrase was given")

// authMethods builds the client auth methods for cfg. Password auth also
// answers keyboard-interactive challenges with the password, since many
// servers only enable that method.
func authMethods(cfg config.ConnectionConfig, readFile func(string) ([]byte, error)) ([]ssh.AuthMethod, error) {
	switch cfg.Auth {
	case config.AuthPassword:
		password := cfg.Password
		return []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		}, nil

	case config.AuthPublicKey:
		if readFile == nil {
			readFile = os.ReadFile
		}
		pem, err := readFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file %s: %w", cfg.KeyFile, err)
		}
		signer, err := parseKey(pem, cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("key file %s: %w", cfg.KeyFile, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth)
	}
}

func parseKey(pem []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		var pme *ssh.PassphraseMissingError
		if errors.As(err, &pme) {
			return nil, fmt.Errorf("%w: %v", ErrPassphraseRequired, err)
		}
		return nil, err
	}
	return signer, nil
}
