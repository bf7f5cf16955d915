package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionNotFound is returned when a name is not in the book.
	ErrConnectionNotFound = errors.New("connection not found")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	// Field is the dotted path of the field, e.g. "connections[2].port".
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

func invalid(field, msg string, value any) error {
	return &ValidationError{Field: field, Message: msg, Value: value}
}
