package libemit

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidConfiguration = errors.New("invalid emitter configuration")
	ErrUnknownEventType     = errors.New("unknown event type")
	ErrInvalidListener      = errors.New("listener cannot be nil")

	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrAlreadyOpened    = errors.New("connection already opened")
	ErrTerminated       = errors.New("program exit")
	ErrRateLimit        = errors.New("rate limit exceeded")
)

// UnknownEventTypeError is returned by On and Off when the event name is not part of the
// emitter's allow-set. It unwraps to ErrUnknownEventType.
type UnknownEventTypeError struct {
	EventType any
	Allowed   []any
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("%s: %v (allowed: %v)", ErrUnknownEventType, e.EventType, e.Allowed)
}

func (e *UnknownEventTypeError) Unwrap() error { return ErrUnknownEventType }

func newUnknownEventTypeError[K comparable](event K, allowed []K) *UnknownEventTypeError {
	names := make([]any, len(allowed))
	for i, name := range allowed {
		names[i] = name
	}
	return &UnknownEventTypeError{EventType: event, Allowed: names}
}
