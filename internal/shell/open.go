package shell

import (
	"context"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/logging"
	"github.com/dshills/termlink/internal/transport"
)

// Open connects cfg and starts its shell at size. SSH targets go through
// transport.Connect, so connect failures keep their transport error types.
func Open(ctx context.Context, cfg config.ConnectionConfig, settings config.Settings, size Size, logger *logging.Logger) (Channel, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	opts := Options{
		Term:       settings.TermType,
		Size:       size,
		Command:    cfg.Shell,
		ReadBuffer: settings.ReadBuffer,
	}
	log := logger.WithComponent("shell").WithField("target", cfg.DisplayName())

	if cfg.Kind() == config.TransportLocal {
		ch, err := StartLocal(opts)
		if err != nil {
			log.Warn("local shell failed", "error", err)
			return nil, err
		}
		log.Info("local shell started", "pid", ch.Pid(), "cols", size.Cols, "rows", size.Rows)
		return ch, nil
	}

	client, err := transport.Connect(ctx, cfg, settings, logger)
	if err != nil {
		return nil, err
	}
	ch, err := OpenSSH(client, opts)
	if err != nil {
		log.Warn("remote shell failed", "error", err)
		return nil, err
	}
	log.Info("remote shell started", "term", opts.Term, "cols", size.Cols, "rows", size.Rows)
	return ch, nil
}
