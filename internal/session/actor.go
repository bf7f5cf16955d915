package session

import (
	"errors"
	"sync"
	"time"

	"github.com/dshills/termlink/internal/logging"
	"github.com/dshills/termlink/internal/shell"
)

type commandKind int

const (
	cmdWrite commandKind = iota
	cmdResize
)

type command struct {
	kind commandKind
	data []byte
	size shell.Size
}

// actor owns one shell channel. Only its goroutine reads, writes or resizes
// the channel; shutdown may close it from outside to unblock a stuck write.
type actor struct {
	id    string
	ch    shell.Channel
	cmds  chan command
	out   chan []byte
	state *atomicState

	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once

	drainLimit int
	idleSleep  time.Duration
	log        *logging.Logger

	// onExit runs on the actor goroutine after the channel is closed.
	onExit func(reason error)
}

type actorConfig struct {
	drainLimit   int
	idleSleep    time.Duration
	commandQueue int
	outputQueue  int
}

func newActor(id string, ch shell.Channel, state *atomicState, cfg actorConfig, log *logging.Logger) *actor {
	if cfg.drainLimit < 1 {
		cfg.drainLimit = 10
	}
	if cfg.idleSleep <= 0 {
		cfg.idleSleep = 5 * time.Millisecond
	}
	if cfg.commandQueue < 1 {
		cfg.commandQueue = 256
	}
	if cfg.outputQueue < 1 {
		cfg.outputQueue = 1024
	}
	return &actor{
		id:         id,
		ch:         ch,
		cmds:       make(chan command, cfg.commandQueue),
		out:        make(chan []byte, cfg.outputQueue),
		state:      state,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		drainLimit: cfg.drainLimit,
		idleSleep:  cfg.idleSleep,
		log:        log,
	}
}

// enqueue hands c to the actor without blocking.
func (a *actor) enqueue(c command) error {
	select {
	case <-a.stop:
		return ErrSessionClosed
	default:
	}
	select {
	case a.cmds <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// drain returns everything queued for the reader. closed is true once the
// actor has exited and no output remains.
func (a *actor) drain() (data []byte, closed bool) {
	for {
		select {
		case chunk, ok := <-a.out:
			if !ok {
				return data, len(data) == 0
			}
			data = append(data, chunk...)
		default:
			return data, false
		}
	}
}

// shutdown asks the actor to stop and closes its channel, which fails any
// write the actor is blocked in. It does not wait for either.
func (a *actor) shutdown() {
	a.stopOnce.Do(func() {
		close(a.stop)
		go a.closeChannel()
	})
}

func (a *actor) stopped() bool {
	select {
	case <-a.stop:
		return true
	default:
		return false
	}
}

func (a *actor) closeChannel() {
	a.closeOnce.Do(func() {
		if err := a.ch.Close(); err != nil {
			a.log.Debug("close channel", "error", err)
		}
	})
}

func (a *actor) run() {
	defer close(a.done)

	reason := a.loop()
	if a.stopped() {
		// A write failing because shutdown closed the channel is still a disconnect.
		reason = errDisconnected
	}
	a.state.advance(StateClosed)

	if !errors.Is(reason, errDisconnected) {
		a.flush()
	}
	a.closeChannel()
	close(a.out)

	if errors.Is(reason, errDisconnected) {
		a.log.Info("session disconnected")
	} else {
		a.log.Warn("session closed", "reason", reason)
	}
	if a.onExit != nil {
		a.onExit(reason)
	}
}

// loop runs ticks until the session should end and returns why.
func (a *actor) loop() error {
	timer := time.NewTimer(a.idleSleep)
	defer timer.Stop()

	for {
		select {
		case <-a.stop:
			return errDisconnected
		default:
		}

		worked, err := a.tick()
		if err != nil {
			return err
		}
		if worked {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(a.idleSleep)
		select {
		case <-a.stop:
			return errDisconnected
		case <-timer.C:
		}
	}
}

// tick applies at most drainLimit commands and performs one read. Nothing
// more is written once the actor has been told to stop.
func (a *actor) tick() (worked bool, err error) {
drain:
	for i := 0; i < a.drainLimit; i++ {
		if a.stopped() {
			return worked, errDisconnected
		}
		select {
		case c := <-a.cmds:
			worked = true
			if err := a.apply(c); err != nil {
				return worked, err
			}
		default:
			break drain
		}
	}

	data, err := a.ch.ReadNonBlocking()
	if len(data) > 0 {
		worked = true
		if !a.emit(data) {
			return worked, errDisconnected
		}
	}
	if err != nil {
		return worked, err
	}
	if !a.ch.IsAlive() {
		return worked, ErrSessionClosed
	}
	return worked, nil
}

func (a *actor) apply(c command) error {
	switch c.kind {
	case cmdWrite:
		if err := a.ch.Write(c.data); err != nil {
			return err
		}
	case cmdResize:
		if err := a.ch.Resize(c.size.Cols, c.size.Rows); err != nil {
			if shell.IsFatal(err) {
				return err
			}
			a.log.Warn("resize failed", "cols", c.size.Cols, "rows", c.size.Rows, "error", err)
		}
	}
	return nil
}

// emit queues data for the reader, waiting while the queue is full.
// It reports false if the actor was stopped while waiting.
func (a *actor) emit(data []byte) bool {
	select {
	case a.out <- data:
		return true
	default:
	}
	select {
	case a.out <- data:
		return true
	case <-a.stop:
		return false
	}
}

// flush forwards output the channel had already read before it died.
func (a *actor) flush() {
	for {
		data, err := a.ch.ReadNonBlocking()
		if len(data) == 0 || err != nil {
			return
		}
		if !a.emit(data) {
			return
		}
	}
}
