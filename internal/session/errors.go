package session

import "errors"

var (
	// ErrSessionNotFound is returned for ids with no registered session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned once a session's channel has died.
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionExists is returned by Create while the id is connecting or open.
	ErrSessionExists = errors.New("session already exists")

	// ErrQueueFull is returned when a session's command queue is full.
	ErrQueueFull = errors.New("session command queue is full")

	// ErrRegistryClosed is returned after Shutdown.
	ErrRegistryClosed = errors.New("session registry is closed")

	// ErrInvalidSize is returned for non-positive or oversized dimensions.
	ErrInvalidSize = errors.New("invalid terminal size")

	// errDisconnected is the close reason for a requested disconnect.
	errDisconnected = errors.New("disconnected")
)
