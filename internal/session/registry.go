// Package session runs one actor goroutine per shell channel and exposes
// them through a thread-safe Registry keyed by caller-chosen ids.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dshills/termlink/internal/config"
	"github.com/dshills/termlink/internal/logging"
	"github.com/dshills/termlink/internal/shell"
)

// handle is the registry's record of one session. actor is nil while the
// session is connecting.
type handle struct {
	id      string
	cfg     config.ConnectionConfig
	state   *atomicState
	actor   *actor
	created time.Time
}

// Info describes a registered session.
type Info struct {
	ID      string
	Target  string
	State   State
	Created time.Time
}

// Registry maps session ids to actors. Its lock is never held across I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*handle
	// stopping holds actors removed from sessions that have not exited yet,
	// so Shutdown can still wait for them.
	stopping map[*actor]struct{}
	closed   bool

	opener   Opener
	settings config.Settings
	events   EventPublisher
	base     *logging.Logger
	log      *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithOpener replaces the channel opener.
func WithOpener(o Opener) Option {
	return func(r *Registry) { r.opener = o }
}

// WithEvents sets the lifecycle event sink.
func WithEvents(p EventPublisher) Option {
	return func(r *Registry) { r.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.base = l
		}
	}
}

// NewRegistry creates an empty registry. Without WithOpener, sessions are
// opened with shell.Open.
func NewRegistry(settings config.Settings, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*handle),
		stopping: make(map[*actor]struct{}),
		settings: settings,
		base:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.opener == nil {
		r.opener = ShellOpener(settings, r.base)
	}
	r.log = r.base.WithComponent("registry")
	return r
}

// Create connects cfg and starts a session under id at the default size.
func (r *Registry) Create(ctx context.Context, id string, cfg config.ConnectionConfig) error {
	return r.CreateWithSize(ctx, id, cfg, shell.Size{Cols: r.settings.Cols, Rows: r.settings.Rows})
}

// CreateWithSize connects cfg and starts a session under id. It blocks for
// the connect and handshake; every other Registry method returns promptly.
// A closed session under the same id is replaced. A connecting or open one
// makes Create fail with ErrSessionExists.
func (r *Registry) CreateWithSize(ctx context.Context, id string, cfg config.ConnectionConfig, size shell.Size) error {
	if !size.Valid() {
		return ErrInvalidSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := r.log.WithSession(id)

	h := &handle{id: id, cfg: cfg, state: &atomicState{}, created: time.Now()}
	var replaced *actor

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if prev, ok := r.sessions[id]; ok {
		if prev.state.Load() != StateClosed {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrSessionExists, id)
		}
		replaced = prev.actor
		r.retire(replaced)
	}
	r.sessions[id] = h
	r.mu.Unlock()

	if replaced != nil {
		replaced.shutdown()
	}

	log.Info("connecting", "target", cfg.String())
	ch, err := r.opener.Open(ctx, cfg, size)
	if err != nil {
		r.mu.Lock()
		if r.sessions[id] == h {
			delete(r.sessions, id)
		}
		r.mu.Unlock()
		h.state.advance(StateClosed)
		log.Warn("connect failed", "error", err)
		r.publish(EventFailed, map[string]any{"id": id, "target": cfg.DisplayName(), "error": err.Error()})
		return err
	}

	a := newActor(id, ch, h.state, actorConfig{
		drainLimit:   r.settings.DrainLimit,
		idleSleep:    r.settings.IdleSleep,
		commandQueue: r.settings.CommandQueue,
		outputQueue:  r.settings.OutputQueue,
	}, r.base.WithComponent("session").WithSession(id))
	a.onExit = func(reason error) {
		r.publish(EventClosed, map[string]any{"id": id, "reason": reason.Error()})
	}

	r.mu.Lock()
	if r.sessions[id] != h {
		// Disconnected or shut down while connecting.
		r.mu.Unlock()
		h.state.advance(StateClosed)
		_ = ch.Close()
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	h.actor = a
	h.state.advance(StateOpen)
	r.mu.Unlock()

	go a.run()
	log.Info("session open")
	r.publish(EventCreated, map[string]any{"id": id, "target": cfg.DisplayName()})
	return nil
}

// lookup returns the actor for id once the session has opened.
func (r *Registry) lookup(id string) (*actor, error) {
	r.mu.Lock()
	var a *actor
	if h, ok := r.sessions[id]; ok {
		a = h.actor
	}
	r.mu.Unlock()
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return a, nil
}

// Execute queues input for the session's shell. It does not wait for the
// write or for output. Calls on one session are written in call order.
func (r *Registry) Execute(id, input string) error {
	return r.Write(id, []byte(input))
}

// Write is Execute for raw bytes.
func (r *Registry) Write(id string, data []byte) error {
	a, err := r.lookup(id)
	if err != nil {
		return err
	}
	if a.state.Load() == StateClosed {
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return a.enqueue(command{kind: cmdWrite, data: buf})
}

// ReadOutput returns all output queued since the last call, or empty if
// none is pending. After the session closes, remaining output is returned
// first and then ErrSessionClosed.
func (r *Registry) ReadOutput(id string) ([]byte, error) {
	a, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	data, closed := a.drain()
	if closed {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	return data, nil
}

// Resize queues a terminal size change.
func (r *Registry) Resize(id string, cols, rows int) error {
	size := shell.Size{Cols: cols, Rows: rows}
	if !size.Valid() {
		return ErrInvalidSize
	}
	a, err := r.lookup(id)
	if err != nil {
		return err
	}
	if a.state.Load() == StateClosed {
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	return a.enqueue(command{kind: cmdResize, size: size})
}

// Disconnect removes the session and tells its actor to stop. It does not
// wait for the actor to exit, so id is free for Create immediately.
func (r *Registry) Disconnect(id string) error {
	r.mu.Lock()
	h, ok := r.sessions[id]
	var a *actor
	if ok {
		a = h.actor
		delete(r.sessions, id)
		r.retire(a)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if a != nil {
		a.shutdown()
	}
	r.log.WithSession(id).Debug("disconnect requested")
	return nil
}

// retire tracks a removed actor until it exits. r.mu must be held.
func (r *Registry) retire(a *actor) {
	if a == nil {
		return
	}
	r.stopping[a] = struct{}{}
	go func() {
		<-a.done
		r.mu.Lock()
		delete(r.stopping, a)
		r.mu.Unlock()
	}()
}

// IsConnected reports whether id is registered and open.
func (r *Registry) IsConnected(id string) bool {
	r.mu.Lock()
	h, ok := r.sessions[id]
	r.mu.Unlock()
	return ok && h.state.Load() == StateOpen
}

// State returns the state of id.
func (r *Registry) State(id string) (State, error) {
	r.mu.Lock()
	h, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return StateClosed, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return h.state.Load(), nil
}

// List returns the registered session ids in sorted order.
func (r *Registry) List() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Sessions describes every registered session, sorted by id.
func (r *Registry) Sessions() []Info {
	r.mu.Lock()
	infos := make([]Info, 0, len(r.sessions))
	for _, h := range r.sessions {
		infos = append(infos, Info{
			ID:      h.id,
			Target:  h.cfg.DisplayName(),
			State:   h.state.Load(),
			Created: h.created,
		})
	}
	r.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Shutdown disconnects every session, rejects further Creates, and waits up
// to timeout for the actors to exit, including those already disconnected.
func (r *Registry) Shutdown(timeout time.Duration) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	count := len(r.sessions)
	var actors []*actor
	for _, h := range r.sessions {
		if h.actor != nil {
			actors = append(actors, h.actor)
		}
	}
	for a := range r.stopping {
		actors = append(actors, a)
	}
	r.sessions = make(map[string]*handle)
	r.mu.Unlock()

	for _, a := range actors {
		a.shutdown()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for i, a := range actors {
		select {
		case <-a.done:
		case <-deadline.C:
			remaining := len(actors) - i
			r.log.Warn("shutdown timed out", "remaining", remaining)
			return fmt.Errorf("session: %d actors still running after %s", remaining, timeout)
		}
	}
	r.log.Info("registry shut down", "sessions", count)
	return nil
}
