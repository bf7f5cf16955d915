package session

import (
	"context"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/logging"
	"github.com/dshills/termlink/internal/shell"
)

// Opener establishes the shell channel for a new session. It performs the
// transport connect, authentication and PTY setup.
type Opener interface {
	Open(ctx context.Context, cfg config.ConnectionConfig, size shell.Size) (shell.Channel, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, cfg config.ConnectionConfig, size shell.Size) (shell.Channel, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, cfg config.ConnectionConfig, size shell.Size) (shell.Channel, error) {
	return f(ctx, cfg, size)
}

// ShellOpener opens real SSH or local channels.
func ShellOpener(settings config.Settings, logger *logging.Logger) Opener {
	return OpenerFunc(func(ctx context.Context, cfg config.ConnectionConfig, size shell.Size) (shell.Channel, error) {
		return shell.Open(ctx, cfg, settings, size, logger)
	})
}
