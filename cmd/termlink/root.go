package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/logging"
	"github.com/dshills/termlink/internal/session"
	"github.com/dshills/termlink/internal/transport"
)

// Version information (set via ldflags during build).
var version = "dev"

// shutdownTimeout bounds how long the CLI waits for sessions to close.
const shutdownTimeout = 3 * time.Second

// app holds state shared by every command.
type app struct {
	configPath string
	logLevel   string
	logFile    string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// readSecret prompts for a password or passphrase.
	readSecret func(prompt string) (string, error)

	mu        sync.Mutex
	book      *config.Book
	base      *logging.Logger
	log       *logging.Logger
	logCloser io.Closer
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{in: in, out: out, errOut: errOut}
	a.readSecret = a.promptSecret
	return a
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	defer a.close()

	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := transport.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "termlink",
		Short: "Terminal sessions over SSH or a local PTY",
		Long: `termlink opens interactive shell sessions on remote hosts over SSH, or on
a local pseudo-terminal, and renders them through a VT100 emulator.

Connections are read from a connection book (TOML or YAML). Targets not in
the book can be given as user@host[:port].`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", config.DefaultPath(), "path to the connection book")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr")

	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(
		newListCmd(a),
		newConnectCmd(a),
		newLocalCmd(a),
		newRunCmd(a),
	)
	return root
}

// setup loads the book and builds the logger. Flags override the book.
func (a *app) setup() error {
	book, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	level := book.Settings.LogLevel
	if a.logLevel != "" {
		switch strings.ToLower(a.logLevel) {
		case "debug", "info", "warn", "error":
			level = a.logLevel
		default:
			return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", a.logLevel)
		}
	}

	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(level)
	cfg.Output = a.errOut
	path := a.logFile
	if path == "" {
		path = book.Settings.LogFile
	}
	if path != "" {
		f, err := logging.OpenFile(path)
		if err != nil {
			return err
		}
		cfg.Output = f
		a.logCloser = f
	}

	a.base = logging.New(cfg)
	a.log = a.base.WithComponent("cli")
	a.setBook(book)
	a.log.Debug("loaded connection book", "path", a.configPath, "connections", len(book.Connections))
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func (a *app) currentBook() *config.Book {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.book
}

func (a *app) setBook(b *config.Book) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.book = b
}

// quiet sends logs nowhere unless a log file is configured. Interactive
// commands call it before deriving any other logger so log lines do not
// land on the drawn screen.
func (a *app) quiet() {
	if a.logCloser == nil {
		a.base.SetOutput(io.Discard)
		a.log = a.base.WithComponent("cli")
	}
}

func (a *app) newRegistry() *session.Registry {
	book := a.currentBook()
	return session.NewRegistry(book.Settings,
		session.WithLogger(a.base),
		session.WithEvents(session.EventPublisherFunc(func(eventType string, data map[string]any) {
			a.log.Debug("session event", "type", eventType, "id", data["id"])
		})),
	)
}
