package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kadoshita/SkyWayMultiVoiceChat/internal/route"
)

var (
	ErrNoRoom     = route.ErrNoRoom
	ErrSignaling  = errors.New("signaling server error")
	ErrMicrophone = errors.New("microphone unavailable")
	ErrTimeout    = errors.New("timeout")
	ErrClosed     = errors.New("session closed")
	ErrNotJoined  = errors.New("not joined to a room")
	ErrStarted    = errors.New("session already started")
)

// Error records which step of a session failed.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// classify maps a failure of a bootstrap step onto the session sentinels,
// keeping the underlying message as details.
func classify(op string, kind, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(op, ErrTimeout, err.Error())
	}
	return WrapError(op, kind, err.Error())
}
